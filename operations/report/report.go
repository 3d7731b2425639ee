package report

// A per-batch JSON processing report. One entry per candidate photo with
// its outcome (packaged, skipped, failed), the reason when it was not
// packaged, a SHA-1 fingerprint and optional perceptual hashes. Front-ends
// use this to tell a user "9 of 12 photos made it" without parsing logs.

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jgdrummond1980/KMZ-Generator/common"
	"github.com/tidwall/sjson"
	"github.com/whosonfirst/go-ioutil"
)

// Status labels for report entries.
const (
	StatusPackaged = "packaged"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Entry records the outcome for one candidate photo.
type Entry struct {
	Path        string
	Status      string
	Reason      string
	TimeSource  string
	Fingerprint string
	ImageHashes []*common.ImageHashRsp
}

// Report accumulates entries for one batch run.
type Report struct {
	body []byte
}

func NewReport(output string) (*Report, error) {

	body := []byte(`{}`)

	body, err := sjson.SetBytes(body, "output", output)

	if err != nil {
		return nil, fmt.Errorf("Failed to initialize report, %w", err)
	}

	body, err = sjson.SetBytes(body, "created", time.Now().Format(time.RFC3339))

	if err != nil {
		return nil, fmt.Errorf("Failed to initialize report, %w", err)
	}

	r := &Report{
		body: body,
	}

	return r, nil
}

// Add appends e to the report.
func (r *Report) Add(e *Entry) error {

	entry := map[string]interface{}{
		"path":   e.Path,
		"status": e.Status,
	}

	if e.Reason != "" {
		entry["reason"] = e.Reason
	}

	if e.TimeSource != "" {
		entry["time_source"] = e.TimeSource
	}

	if e.Fingerprint != "" {
		entry["fingerprint"] = e.Fingerprint
	}

	for _, h := range e.ImageHashes {
		entry[fmt.Sprintf("imagehash_%s", h.Approach)] = h.Hash
	}

	body, err := sjson.SetBytes(r.body, "entries.-1", entry)

	if err != nil {
		return fmt.Errorf("Failed to append report entry for %s, %w", e.Path, err)
	}

	r.body = body
	return nil
}

// Bytes returns the report as JSON.
func (r *Report) Bytes() []byte {
	return r.body
}

// Publish writes the report to path using a whosonfirst/go-writer URI
// (fs://, stdout://, null:// and friends).
func (r *Report) Publish(ctx context.Context, writer_uri string, path string) error {

	wr, err := common.NewWriter(ctx, writer_uri)

	if err != nil {
		return err
	}

	br := bytes.NewReader(r.body)
	fh, err := ioutil.NewReadSeekCloser(br)

	if err != nil {
		return fmt.Errorf("Failed to wrap report body, %w", err)
	}

	_, err = wr.Write(ctx, path, fh)

	if err != nil {
		return fmt.Errorf("Failed to publish report to %s, %w", path, err)
	}

	return nil
}
