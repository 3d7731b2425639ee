package overlay

import (
	"fmt"
)

// DefaultHalfWidth is the angular half-width, in degrees, of the square
// ground-overlay box drawn for each photo. At typical zoom this renders the
// fan at a few tens of pixels.
const DefaultHalfWidth = 0.0002

// Box is the derived placement for one directional fan overlay: a square
// bounding box centred on the photo's coordinate plus the rotation to apply
// to the fan artwork. Boxes are recomputed per asset, never stored.
type Box struct {
	North    float64
	South    float64
	East     float64
	West     float64
	Rotation float64
}

// Compute derives the Box for a validated coordinate and a compass bearing
// (0 = north, increasing clockwise). The rotation is bearing - 90 because
// the fan artwork points east in its un-rotated form; subtracting 90 aligns
// its default heading with north-relative bearing semantics. That offset is
// a fixed property of the artwork and must move with it.
func Compute(lat float64, lon float64, bearing float64, half_width float64) (*Box, error) {

	if lat < -90.0 || lat > 90.0 {
		return nil, fmt.Errorf("Latitude %f out of range", lat)
	}

	if lon < -180.0 || lon > 180.0 {
		return nil, fmt.Errorf("Longitude %f out of range", lon)
	}

	if half_width <= 0 {
		half_width = DefaultHalfWidth
	}

	b := &Box{
		North:    lat + half_width,
		South:    lat - half_width,
		East:     lon + half_width,
		West:     lon - half_width,
		Rotation: bearing - 90.0,
	}

	return b, nil
}
