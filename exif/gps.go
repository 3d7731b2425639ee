package exif

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/tiff"
)

// GpsFields is the typed, closed representation of the GPS sub-block of an
// EXIF tag set. It is populated by a single decode step; nothing downstream
// ever touches raw tag maps.
type GpsFields struct {
	Latitude     [3]float64
	LatitudeRef  string
	Longitude    [3]float64
	LongitudeRef string
	Altitude     float64
	AltitudeRef  int
	HasAltitude  bool
	Direction    float64
	HasDirection bool
}

// DecimalDegrees converts a degrees/minutes/seconds triplet and a hemisphere
// reference in to signed decimal degrees. An empty reference is treated as
// "N"/"E", that is non-negative.
func DecimalDegrees(dms [3]float64, ref string) float64 {

	dd := dms[0] + dms[1]/60.0 + dms[2]/3600.0

	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		dd = -dd
	default:
		// pass
	}

	return dd
}

// NormalizeBearing folds a compass bearing in to the [0, 360) range.
// Non-finite input yields NaN; callers are expected to have rejected it
// already.
func NormalizeBearing(b float64) float64 {

	b = math.Mod(b, 360.0)

	if b < 0 {
		b += 360.0
	}

	return b
}

// ParseRationalString parses a "numerator/denominator" pair or a plain
// decimal string in to a float64.
func ParseRationalString(raw string) (float64, error) {

	raw = strings.TrimSpace(raw)

	if strings.Contains(raw, "/") {

		parts := strings.SplitN(raw, "/", 2)

		num, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)

		if err != nil {
			return 0, fmt.Errorf("Invalid numerator '%s', %w", parts[0], err)
		}

		den, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)

		if err != nil {
			return 0, fmt.Errorf("Invalid denominator '%s', %w", parts[1], err)
		}

		if den == 0 {
			return 0, fmt.Errorf("Zero denominator in '%s'", raw)
		}

		return num / den, nil
	}

	v, err := strconv.ParseFloat(raw, 64)

	if err != nil {
		return 0, fmt.Errorf("Invalid rational '%s', %w", raw, err)
	}

	return v, nil
}

// tagComponent extracts the i-th component of a tag as a float64, accepting
// rational, integer, float and string encodings. Cameras disagree about how
// GPS components are stored so all of the forms goexif can hand back are
// normalized here.
func tagComponent(tag *tiff.Tag, i int) (float64, error) {

	switch tag.Format() {

	case tiff.RatVal:

		num, den, err := tag.Rat2(i)

		if err != nil {
			return 0, err
		}

		if den == 0 {
			return 0, fmt.Errorf("Zero denominator in component %d", i)
		}

		return float64(num) / float64(den), nil

	case tiff.IntVal:

		v, err := tag.Int(i)

		if err != nil {
			return 0, err
		}

		return float64(v), nil

	case tiff.FloatVal:

		return tag.Float(i)

	case tiff.StringVal:

		str, err := tag.StringVal()

		if err != nil {
			return 0, err
		}

		parts := strings.Split(str, ",")

		if i >= len(parts) {
			return 0, fmt.Errorf("Missing component %d in '%s'", i, str)
		}

		return ParseRationalString(parts[i])

	default:
		return 0, fmt.Errorf("Unsupported tag format for component %d", i)
	}
}

// tagTriplet extracts up to three components from a tag. Tags with fewer
// than three components are padded with zeroes; some cameras store a single
// pre-reduced decimal-degrees rational.
func tagTriplet(tag *tiff.Tag) ([3]float64, error) {

	var dms [3]float64

	count := int(tag.Count)

	if tag.Format() == tiff.StringVal {
		str, err := tag.StringVal()

		if err != nil {
			return dms, err
		}

		count = len(strings.Split(str, ","))
	}

	if count > 3 {
		count = 3
	}

	if count == 0 {
		return dms, fmt.Errorf("Empty tag")
	}

	for i := 0; i < count; i++ {

		v, err := tagComponent(tag, i)

		if err != nil {
			return dms, err
		}

		dms[i] = v
	}

	return dms, nil
}
