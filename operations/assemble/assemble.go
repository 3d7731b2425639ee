package assemble

// Drive the per-photo pipeline across a bucket of candidate images and
// produce the finished KMZ archive. Photos that fail individually are
// skipped and logged; a batch in which nothing succeeds fails outright and
// produces no archive bytes at all.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	kmz "github.com/jgdrummond1980/KMZ-Generator"
	"github.com/jgdrummond1980/KMZ-Generator/common"
	"github.com/jgdrummond1980/KMZ-Generator/exif"
	"github.com/jgdrummond1980/KMZ-Generator/operations/orient"
	"github.com/jgdrummond1980/KMZ-Generator/operations/overlay"
	"github.com/jgdrummond1980/KMZ-Generator/operations/report"
	wof_ioutil "github.com/whosonfirst/go-ioutil"
	"gocloud.dev/blob"
)

// ErrNoGeotaggedImages is the batch-level hard failure returned when zero
// candidate photos yield usable location data. It is deliberately distinct
// from any single photo being bad; those are tolerated and skipped.
var ErrNoGeotaggedImages = errors.New("no valid GPS metadata found in the uploaded images")

// ErrDuplicateBasename is returned when two distinct inputs share a base
// filename. Archive entry names are a flat namespace so a silent overwrite
// would lose a photo.
var ErrDuplicateBasename = errors.New("duplicate base filename")

// Options is the single feature-configuration for a batch run. One
// pipeline, parameterized; there are no parallel variants.
type Options struct {
	// Add one fan ground-overlay per photo. Requires Marker.
	IncludeFanOverlay bool
	// Stamp a bearing indicator on each embedded photo copy.
	AnnotateImage bool
	// Carry altitude in to coordinates and descriptions.
	IncludeAltitude bool
	// Angular half-width of each overlay box. Zero means
	// overlay.DefaultHalfWidth.
	HalfWidth float64
	// The shared fan image for this batch.
	Marker []byte
	// Record perceptual image hashes in the processing report.
	HashImages bool
	// Optional whosonfirst/go-writer URI to publish the processing report
	// to. Empty disables publication.
	ReportWriterURI string
	// The name the finished archive will be known by, recorded in the
	// report and used to derive its filename.
	OutputName string
}

// GeoTaggedAsset pairs one photo's metadata with the scratch-bucket key of
// the (corrected, possibly annotated) copy that will be embedded in the
// archive. One per successfully processed input; never created for photos
// lacking usable location data.
type GeoTaggedAsset struct {
	Metadata *exif.PhotoMetadata
	Key      string
}

// recognized image extensions, lower-cased.
var extensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Assemble runs the whole pipeline over the images in source and returns
// the finished KMZ archive bytes. Nothing is returned on failure; there is
// never a partial archive. The scratch working area is scoped to this call
// and released on every exit path.
func Assemble(ctx context.Context, source *blob.Bucket, opts *Options) ([]byte, error) {

	if opts.IncludeFanOverlay && opts.Marker == nil {
		return nil, fmt.Errorf("Fan overlays enabled but no marker image supplied")
	}

	candidates, err := listCandidates(ctx, source)

	if err != nil {
		return nil, fmt.Errorf("Failed to list candidate images, %w", err)
	}

	err = checkBasenames(candidates)

	if err != nil {
		return nil, err
	}

	scratch, err := common.NewScratchBucket(ctx)

	if err != nil {
		return nil, err
	}

	defer common.CloseScratchBucket(ctx, scratch)

	rpt, err := report.NewReport(opts.OutputName)

	if err != nil {
		return nil, err
	}

	doc := kmz.NewDocument()
	assets := make([]*kmz.Asset, 0)

	for _, path := range candidates {

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			// pass
		}

		asset, entry, err := processPhoto(ctx, source, scratch, path, doc, opts)

		if err != nil {
			// Unexpected fault, not a soft skip.
			return nil, err
		}

		rpt_err := rpt.Add(entry)

		if rpt_err != nil {
			slog.Warn("Failed to record report entry", "path", path, "error", rpt_err)
		}

		if asset != nil {
			assets = append(assets, asset)
		}
	}

	if len(assets) == 0 {

		publishReport(ctx, rpt, opts)
		return nil, fmt.Errorf("%w (%d candidates)", ErrNoGeotaggedImages, len(candidates))
	}

	archive_opts := &kmz.ArchiveOptions{
		Scratch: scratch,
	}

	if opts.IncludeFanOverlay {
		archive_opts.Marker = opts.Marker
	}

	var buf bytes.Buffer

	err = kmz.WriteArchive(ctx, &buf, doc, assets, archive_opts)

	if err != nil {
		return nil, err
	}

	publishReport(ctx, rpt, opts)

	return buf.Bytes(), nil
}

// processPhoto runs extraction, correction, geometry and staging for one
// candidate. A nil asset with a nil error means the photo was skipped; the
// report entry says why. A non-nil error is an unexpected fault that
// terminates the batch.
func processPhoto(ctx context.Context, source *blob.Bucket, scratch *blob.Bucket, path string, doc *kmz.Document, opts *Options) (*kmz.Asset, *report.Entry, error) {

	entry := &report.Entry{
		Path: path,
	}

	body, err := source.ReadAll(ctx, path)

	if err != nil {
		return nil, nil, fmt.Errorf("Failed to read %s, %w", path, err)
	}

	fh, err := wof_ioutil.NewReadSeekCloser(bytes.NewReader(body))

	if err != nil {
		return nil, nil, fmt.Errorf("Failed to wrap %s, %w", path, err)
	}

	defer fh.Close()

	m, err := exif.Extract(fh, path)

	if err != nil {

		if errors.Is(err, exif.ErrNoLocation) {
			slog.Warn("Skipping photo without location metadata", "path", path)
			entry.Status = report.StatusSkipped
		} else {
			slog.Warn("Skipping photo with malformed location metadata", "path", path, "error", err)
			entry.Status = report.StatusFailed
		}

		entry.Reason = err.Error()
		return nil, entry, nil
	}

	if m.CapturedAt.IsZero() {

		// Lossy fallback: the object's modification time is when the file
		// was last touched, not when the photo was taken. The report
		// carries the provenance so consumers can see the gap.

		attrs, err := source.Attributes(ctx, path)

		if err == nil && !attrs.ModTime.IsZero() {
			m.CapturedAt = attrs.ModTime
			m.TimeSource = exif.TimeSourceModTime
		}
	}

	corrected := orient.Correct(body, path)

	if opts.AnnotateImage && m.HasBearing {
		corrected = orient.Annotate(corrected, m.Bearing, path)
	}

	name := filepath.Base(path)

	if name == kmz.DocumentName || name == kmz.MarkerName {
		return nil, nil, fmt.Errorf("Input photo '%s' collides with a reserved archive name", name)
	}

	err = scratch.WriteAll(ctx, name, corrected, nil)

	if err != nil {
		return nil, nil, fmt.Errorf("Failed to stage %s, %w", path, err)
	}

	pm := &kmz.Placemark{
		Name:       name,
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		Bearing:    m.Bearing,
		HasBearing: m.HasBearing,
		CapturedAt: m.CapturedAt,
		ImageRef:   name,
	}

	if opts.IncludeAltitude && m.HasAltitude {
		pm.Altitude = m.Altitude
		pm.HasAltitude = true
	}

	doc.AddPlacemark(pm)

	if opts.IncludeFanOverlay {

		// In fan mode an unknown bearing contractually defaults to zero
		// so that every packaged photo carries exactly one overlay.

		bearing := 0.0

		if m.HasBearing {
			bearing = m.Bearing
		}

		box, err := overlay.Compute(m.Latitude, m.Longitude, bearing, opts.HalfWidth)

		if err != nil {
			return nil, nil, fmt.Errorf("Failed to compute overlay for %s, %w", path, err)
		}

		doc.AddGroundOverlay(&kmz.GroundOverlay{
			Name:     fmt.Sprintf("Overlay - %s", name),
			IconHref: kmz.MarkerName,
			North:    box.North,
			South:    box.South,
			East:     box.East,
			West:     box.West,
			Rotation: box.Rotation,
		})
	}

	entry.Status = report.StatusPackaged
	entry.TimeSource = m.TimeSource
	entry.Fingerprint = common.Fingerprint(body)

	if opts.HashImages {

		hashes, err := common.ImageHashes(corrected)

		if err != nil {
			slog.Warn("Failed to hash image", "path", path, "error", err)
		} else {
			entry.ImageHashes = hashes
		}
	}

	asset := &kmz.Asset{
		Name: name,
		Key:  name,
	}

	return asset, entry, nil
}

// listCandidates walks source and returns the keys of recognized image
// files sorted lexicographically. Bucket listing order is not guaranteed
// stable across providers so deterministic output depends on sorting here.
func listCandidates(ctx context.Context, source *blob.Bucket) ([]string, error) {

	candidates := make([]string, 0)

	iter := source.List(nil)

	for {
		obj, err := iter.Next(ctx)

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, err
		}

		if obj.IsDir {
			continue
		}

		ext := strings.ToLower(filepath.Ext(obj.Key))

		if !extensions[ext] {
			continue
		}

		candidates = append(candidates, obj.Key)
	}

	sort.Strings(candidates)
	return candidates, nil
}

// checkBasenames rejects batches in which two distinct inputs would map to
// the same flat archive entry name.
func checkBasenames(candidates []string) error {

	seen := make(map[string]string)

	for _, path := range candidates {

		name := filepath.Base(path)

		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w: '%s' and '%s'", ErrDuplicateBasename, prev, path)
		}

		seen[name] = path
	}

	return nil
}

func publishReport(ctx context.Context, rpt *report.Report, opts *Options) {

	if opts.ReportWriterURI == "" {
		return
	}

	name := fmt.Sprintf("%s-report.json", strings.TrimSuffix(opts.OutputName, ".kmz"))

	if opts.OutputName == "" {
		name = "report.json"
	}

	err := rpt.Publish(ctx, opts.ReportWriterURI, name)

	if err != nil {
		slog.Warn("Failed to publish processing report", "error", err)
	}
}
