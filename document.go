package kmz

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/twpayne/go-kml/v2"
)

// DocumentName is the reserved archive entry name for the serialized KML
// document.
const DocumentName = "doc.kml"

// MarkerName is the reserved archive entry name for the shared fan image.
const MarkerName = "Fan.png"

// PlacemarkIcon is the marker-icon style applied to every placemark.
const PlacemarkIcon = "http://maps.google.com/mapfiles/kml/paddle/blu-circle.png"

// Placemark is one photo's point feature: a name (the archive entry name of
// the photo), its coordinate and the description block embedding the photo.
type Placemark struct {
	Name        string
	Latitude    float64
	Longitude   float64
	Altitude    float64
	HasAltitude bool
	Bearing     float64
	HasBearing  bool
	CapturedAt  time.Time
	// ImageRef is the archive entry name embedded in the description. It
	// must resolve to an entry in the produced archive.
	ImageRef string
}

// GroundOverlay drapes the shared fan image over a bounding box, rotated to
// the photo's bearing.
type GroundOverlay struct {
	Name     string
	IconHref string
	North    float64
	South    float64
	East     float64
	West     float64
	Rotation float64
}

// Document is the accumulated markup for one batch. It is built
// incrementally by the assembler and serialized exactly once per run.
type Document struct {
	placemarks []*Placemark
	overlays   []*GroundOverlay
}

func NewDocument() *Document {

	d := &Document{
		placemarks: make([]*Placemark, 0),
		overlays:   make([]*GroundOverlay, 0),
	}

	return d
}

func (d *Document) AddPlacemark(p *Placemark) {
	d.placemarks = append(d.placemarks, p)
}

func (d *Document) AddGroundOverlay(o *GroundOverlay) {
	d.overlays = append(d.overlays, o)
}

// Count returns the number of placemarks accumulated so far.
func (d *Document) Count() int {
	return len(d.placemarks)
}

// References returns every archive entry name the serialized document will
// point at. Each one must exist verbatim in the archive; a broken reference
// is a correctness bug, not something a consumer can recover from.
func (d *Document) References() []string {

	refs := make([]string, 0)

	for _, p := range d.placemarks {

		if p.ImageRef != "" {
			refs = append(refs, p.ImageRef)
		}
	}

	for _, o := range d.overlays {

		if o.IconHref != "" {
			refs = append(refs, o.IconHref)
		}
	}

	return refs
}

// description renders the human-readable block for a placemark: bearing,
// altitude and capture time when known, plus the inline image reference.
func description(p *Placemark) string {

	var b strings.Builder

	if p.HasBearing {
		fmt.Fprintf(&b, "Orientation: %.1f<br/>", p.Bearing)
	}

	if p.HasAltitude {
		fmt.Fprintf(&b, "Altitude: %.1f m<br/>", p.Altitude)
	}

	if !p.CapturedAt.IsZero() {
		fmt.Fprintf(&b, "Captured: %s<br/>", p.CapturedAt.Format(time.RFC3339))
	}

	fmt.Fprintf(&b, `<img src="%s" alt="%s" width="800" />`, p.ImageRef, p.Name)

	return b.String()
}

// MarshalKML serializes the document to w.
func (d *Document) MarshalKML(w io.Writer) error {

	doc := kml.Document()

	for _, p := range d.placemarks {

		coord := kml.Coordinate{
			Lon: p.Longitude,
			Lat: p.Latitude,
		}

		if p.HasAltitude {
			coord.Alt = p.Altitude
		}

		doc.Add(
			kml.Placemark(
				kml.Name(p.Name),
				kml.Description(description(p)),
				kml.Style(
					kml.IconStyle(
						kml.Icon(
							kml.Href(PlacemarkIcon),
						),
					),
				),
				kml.Point(
					kml.Coordinates(coord),
				),
			),
		)
	}

	for _, o := range d.overlays {

		doc.Add(
			kml.GroundOverlay(
				kml.Name(o.Name),
				kml.Icon(
					kml.Href(o.IconHref),
				),
				kml.LatLonBox(
					kml.North(o.North),
					kml.South(o.South),
					kml.East(o.East),
					kml.West(o.West),
					kml.Rotation(o.Rotation),
				),
			),
		)
	}

	k := kml.KML(doc)

	err := k.WriteIndent(w, "", "  ")

	if err != nil {
		return fmt.Errorf("Failed to serialize KML document, %w", err)
	}

	return nil
}
