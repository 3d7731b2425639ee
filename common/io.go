package common

import (
	"context"
	"fmt"
	"sync"

	"github.com/whosonfirst/go-reader/v2"
	"github.com/whosonfirst/go-writer/v3"
)

var readers = make(map[string]reader.Reader)
var readers_mu = new(sync.Mutex)

var writers = make(map[string]writer.Writer)
var writers_mu = new(sync.Mutex)

// NewReader returns a whosonfirst/go-reader.Reader instance for uri, used
// for marker assets supplied from local sources. Instances are cached in
// memory for repeat lookups.
func NewReader(ctx context.Context, uri string) (reader.Reader, error) {

	readers_mu.Lock()
	defer readers_mu.Unlock()

	r, ok := readers[uri]

	if ok {
		return r, nil
	}

	r, err := reader.NewReader(ctx, uri)

	if err != nil {
		return nil, fmt.Errorf("Failed to create reader for '%s', %w", uri, err)
	}

	readers[uri] = r
	return r, nil
}

// NewWriter returns a whosonfirst/go-writer.Writer instance for uri, used
// for publishing batch processing reports. Instances are cached in memory
// for repeat lookups.
func NewWriter(ctx context.Context, uri string) (writer.Writer, error) {

	writers_mu.Lock()
	defer writers_mu.Unlock()

	wr, ok := writers[uri]

	if ok {
		return wr, nil
	}

	wr, err := writer.NewWriter(ctx, uri)

	if err != nil {
		return nil, fmt.Errorf("Failed to create writer for '%s', %w", uri, err)
	}

	writers[uri] = wr
	return wr, nil
}
