package marker

// Acquire the shared fan (marker) image for a batch. This is the only
// network operation in the pipeline and it happens exactly once, before any
// per-photo processing; the result is shared read-only across the batch.

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aaronland/go-image-tools/imaging"
	"github.com/aaronland/go-image-tools/util"
	"github.com/jgdrummond1980/KMZ-Generator/common"
)

// FetchOptions describe where the fan image comes from and how patiently to
// retrieve it.
type FetchOptions struct {
	// A HTTP(S) URL to fetch the fan image from. Mutually exclusive with
	// ReaderURI.
	URL string
	// A whosonfirst/go-reader URI (for example fs:///path/to/dir) naming a
	// local source for the fan image.
	ReaderURI string
	// The path of the fan image relative to ReaderURI.
	Path string
	// Per-attempt timeout for URL fetches. Defaults to 30s.
	Timeout time.Duration
	// Total number of URL fetch attempts. Defaults to 3.
	Attempts int
	// Optional fixed rotation, in degrees counter-clockwise, applied to
	// the fan image once before it is reused across the whole batch.
	PreRotate float64
}

// Fetch retrieves the fan image bytes. URL fetches are bounded by an
// explicit timeout and a fixed number of attempts with linear backoff; the
// remote asset being unreachable after that is a batch-level hard failure
// for fan-overlay runs.
func Fetch(ctx context.Context, opts *FetchOptions) ([]byte, error) {

	var body []byte
	var err error

	switch {
	case opts.URL != "":
		body, err = fetchURL(ctx, opts)
	case opts.ReaderURI != "":
		body, err = fetchReader(ctx, opts)
	default:
		err = fmt.Errorf("Missing marker source")
	}

	if err != nil {
		return nil, err
	}

	if opts.PreRotate != 0 {
		return preRotate(body, opts.PreRotate)
	}

	return body, nil
}

func fetchURL(ctx context.Context, opts *FetchOptions) ([]byte, error) {

	timeout := opts.Timeout

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	attempts := opts.Attempts

	if attempts <= 0 {
		attempts = 3
	}

	cl := &http.Client{
		Timeout: timeout,
	}

	var last_err error

	for i := 0; i < attempts; i++ {

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			// pass
		}

		if i > 0 {
			slog.Warn("Retrying marker fetch", "url", opts.URL, "attempt", i+1, "error", last_err)
			time.Sleep(time.Duration(i) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)

		if err != nil {
			return nil, fmt.Errorf("Failed to create request for %s, %w", opts.URL, err)
		}

		rsp, err := cl.Do(req)

		if err != nil {
			last_err = err
			continue
		}

		if rsp.StatusCode != http.StatusOK {
			rsp.Body.Close()
			last_err = fmt.Errorf("Unexpected status %s", rsp.Status)
			continue
		}

		body, err := io.ReadAll(rsp.Body)
		rsp.Body.Close()

		if err != nil {
			last_err = err
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("Failed to fetch marker from %s after %d attempts, %w", opts.URL, attempts, last_err)
}

func fetchReader(ctx context.Context, opts *FetchOptions) ([]byte, error) {

	r, err := common.NewReader(ctx, opts.ReaderURI)

	if err != nil {
		return nil, fmt.Errorf("Failed to create reader for '%s', %w", opts.ReaderURI, err)
	}

	fh, err := r.Read(ctx, opts.Path)

	if err != nil {
		return nil, fmt.Errorf("Failed to read marker from %s, %w", opts.Path, err)
	}

	defer fh.Close()

	return io.ReadAll(fh)
}

func preRotate(body []byte, degrees float64) ([]byte, error) {

	br := bytes.NewReader(body)

	im, format, err := util.DecodeImageFromReader(br)

	if err != nil {
		return nil, fmt.Errorf("Failed to decode marker image, %w", err)
	}

	im2 := imaging.Rotate(im, degrees, color.Transparent)

	var buf bytes.Buffer

	err = util.EncodeImage(im2, format, &buf)

	if err != nil {
		return nil, fmt.Errorf("Failed to encode rotated marker image, %w", err)
	}

	return buf.Bytes(), nil
}
