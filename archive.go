package kmz

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aaronland/go-string/random"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"gocloud.dev/blob"
)

// Asset names one archive entry backed by a staged image in the scratch
// bucket. Name is the flat archive entry name (the photo's base filename);
// Key is where the bytes live in the scratch bucket.
type Asset struct {
	Name string
	Key  string
}

// ArchiveOptions configure WriteArchive.
type ArchiveOptions struct {
	// The scratch bucket holding staged asset bytes for this batch.
	Scratch *blob.Bucket
	// The shared fan image, written under MarkerName when non-nil.
	Marker []byte
}

// WriteArchive serializes doc and writes the complete compressed container
// to w: the KML under DocumentName, one entry per asset, and the fan image
// under MarkerName when present. The serialized KML is staged in the
// scratch bucket and removed again no matter how this returns. No entry is
// written twice and every name the document references must exist in the
// archive.
func WriteArchive(ctx context.Context, w io.Writer, doc *Document, assets []*Asset, opts *ArchiveOptions) error {

	names := map[string]bool{
		DocumentName: true,
	}

	if opts.Marker != nil {
		names[MarkerName] = true
	}

	for _, a := range assets {

		if names[a.Name] {
			return fmt.Errorf("Duplicate archive entry '%s'", a.Name)
		}

		names[a.Name] = true
	}

	for _, ref := range doc.References() {

		if !names[ref] {
			return fmt.Errorf("Document references '%s' but the archive has no such entry", ref)
		}
	}

	// Stage the serialized document the way the original staged doc.kml on
	// disk: written, zipped, removed.

	rand_opts := random.DefaultOptions()
	rand_opts.AlphaNumeric = true

	suffix, err := random.String(rand_opts)

	if err != nil {
		return fmt.Errorf("Failed to derive staging name, %w", err)
	}

	kml_key := fmt.Sprintf("doc-%s.kml", suffix)

	var kml_buf bytes.Buffer

	err = doc.MarshalKML(&kml_buf)

	if err != nil {
		return err
	}

	err = opts.Scratch.WriteAll(ctx, kml_key, kml_buf.Bytes(), nil)

	if err != nil {
		return fmt.Errorf("Failed to stage KML document, %w", err)
	}

	defer func() {

		err := opts.Scratch.Delete(ctx, kml_key)

		if err != nil {
			slog.Warn("Failed to remove staged KML document", "key", kml_key, "error", err)
		}
	}()

	zw := zip.NewWriter(w)

	err = copyEntry(ctx, zw, DocumentName, opts.Scratch, kml_key)

	if err != nil {
		return err
	}

	for _, a := range assets {

		err = copyEntry(ctx, zw, a.Name, opts.Scratch, a.Key)

		if err != nil {
			return err
		}
	}

	if opts.Marker != nil {

		fw, err := zw.Create(MarkerName)

		if err != nil {
			return fmt.Errorf("Failed to create archive entry '%s', %w", MarkerName, err)
		}

		_, err = fw.Write(opts.Marker)

		if err != nil {
			return fmt.Errorf("Failed to write archive entry '%s', %w", MarkerName, err)
		}
	}

	err = zw.Close()

	if err != nil {
		return fmt.Errorf("Failed to finalize archive, %w", err)
	}

	return nil
}

// WriteArchiveToBucket writes a finished archive body to key in bucket. S3
// targets are written with a public-read ACL when public is true, the same
// BeforeWrite hook the rest of the media tooling uses.
func WriteArchiveToBucket(ctx context.Context, bucket *blob.Bucket, key string, body []byte, public bool) error {

	var wr_opts *blob.WriterOptions

	if public {

		before := func(asFunc func(interface{}) bool) error {

			s3_req := &s3manager.UploadInput{}
			ok := asFunc(&s3_req)

			if ok {
				s3_req.ACL = aws.String("public-read")
			}

			return nil
		}

		wr_opts = &blob.WriterOptions{
			BeforeWrite: before,
		}
	}

	err := bucket.WriteAll(ctx, key, body, wr_opts)

	if err != nil {
		return fmt.Errorf("Failed to write archive to %s, %w", key, err)
	}

	return nil
}

func copyEntry(ctx context.Context, zw *zip.Writer, name string, bucket *blob.Bucket, key string) error {

	fh, err := bucket.NewReader(ctx, key, nil)

	if err != nil {
		return fmt.Errorf("Failed to open staged entry '%s', %w", key, err)
	}

	defer fh.Close()

	fw, err := zw.Create(name)

	if err != nil {
		return fmt.Errorf("Failed to create archive entry '%s', %w", name, err)
	}

	_, err = io.Copy(fw, fh)

	if err != nil {
		return fmt.Errorf("Failed to write archive entry '%s', %w", name, err)
	}

	return nil
}
