package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	kmz "github.com/jgdrummond1980/KMZ-Generator"
	"github.com/jgdrummond1980/KMZ-Generator/operations/assemble"
	"github.com/jgdrummond1980/KMZ-Generator/operations/marker"
	"github.com/jgdrummond1980/KMZ-Generator/operations/overlay"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
)

func main() {

	source_uri := flag.String("source-uri", "", "A valid gocloud.dev/blob URI for the bucket containing the input photos.")
	output := flag.String("output", "photos.kmz", "The path the finished KMZ archive is written to.")
	target_uri := flag.String("target-uri", "", "An optional gocloud.dev/blob URI for a bucket to write the finished archive to. When set the archive is written there under the base name of -output, instead of to the local filesystem.")
	public := flag.Bool("public", false, "When -target-uri names an S3 bucket, write the archive with a public-read ACL.")

	fan := flag.Bool("fan", false, "Add one directional fan ground-overlay per photo.")
	fan_source := flag.String("fan-image", "", "Where the fan image comes from. A http(s):// URL or a local path.")
	fan_rotate := flag.Float64("fan-rotate", 0.0, "Fixed rotation, in degrees, applied to the fan image before reuse.")

	annotate := flag.Bool("annotate", false, "Stamp a bearing indicator on each embedded photo copy.")
	altitude := flag.Bool("altitude", false, "Carry altitude in to coordinates and descriptions.")
	half_width := flag.Float64("half-width", overlay.DefaultHalfWidth, "Angular half-width, in degrees, of each overlay box.")

	report_uri := flag.String("report-writer-uri", "", "An optional whosonfirst/go-writer URI to publish the processing report to.")
	hash_images := flag.Bool("hash-images", false, "Record perceptual image hashes in the processing report.")

	flag.Parse()

	if *source_uri == "" {
		log.Fatalf("Missing -source-uri")
	}

	ctx := context.Background()

	opts := &assemble.Options{
		IncludeFanOverlay: *fan,
		AnnotateImage:     *annotate,
		IncludeAltitude:   *altitude,
		HalfWidth:         *half_width,
		HashImages:        *hash_images,
		ReportWriterURI:   *report_uri,
		OutputName:        *output,
	}

	if *fan {

		if *fan_source == "" {
			log.Fatalf("Fan overlays enabled but -fan-image is not set")
		}

		fetch_opts := &marker.FetchOptions{
			Timeout:   30 * time.Second,
			Attempts:  3,
			PreRotate: *fan_rotate,
		}

		if strings.HasPrefix(*fan_source, "http://") || strings.HasPrefix(*fan_source, "https://") {
			fetch_opts.URL = *fan_source
		} else {

			abs, err := filepath.Abs(*fan_source)

			if err != nil {
				log.Fatalf("Failed to resolve %s, %v", *fan_source, err)
			}

			fetch_opts.ReaderURI = "fs://" + filepath.Dir(abs)
			fetch_opts.Path = filepath.Base(abs)
		}

		m, err := marker.Fetch(ctx, fetch_opts)

		if err != nil {
			log.Fatalf("Failed to fetch fan image, %v", err)
		}

		opts.Marker = m
	}

	bucket, err := blob.OpenBucket(ctx, *source_uri)

	if err != nil {
		log.Fatalf("Failed to open %s, %v", *source_uri, err)
	}

	defer bucket.Close()

	body, err := assemble.Assemble(ctx, bucket, opts)

	if err != nil {
		log.Fatalf("Failed to assemble archive, %v", err)
	}

	if *target_uri != "" {

		target, err := blob.OpenBucket(ctx, *target_uri)

		if err != nil {
			log.Fatalf("Failed to open %s, %v", *target_uri, err)
		}

		defer target.Close()

		key := filepath.Base(*output)

		err = kmz.WriteArchiveToBucket(ctx, target, key, body, *public)

		if err != nil {
			log.Fatalf("Failed to write %s to %s, %v", key, *target_uri, err)
		}

		log.Printf("Wrote %s to %s (%d bytes)", key, *target_uri, len(body))
		return
	}

	err = os.WriteFile(*output, body, 0644)

	if err != nil {
		log.Fatalf("Failed to write %s, %v", *output, err)
	}

	log.Printf("Wrote %s (%d bytes)", *output, len(body))
}
