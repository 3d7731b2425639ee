package exif

// Extract a normalized geolocation record from the EXIF block of a single
// photo. A photo with no EXIF block, no GPS sub-block or a GPS sub-block
// missing either latitude or longitude yields ErrNoLocation, never a
// partially populated record. These are expected, high-frequency outcomes
// across a batch and are not treated as faults.

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

func init() {
	exif.RegisterParsers(mknote.All...)
}

// ErrNoLocation signals that an image carries no usable location metadata.
var ErrNoLocation = errors.New("no location metadata")

// TimeSourceExif and TimeSourceModTime label where a PhotoMetadata capture
// time came from. The mod-time fallback is a known accuracy gap; it records
// when the file was last touched, not when the photo was taken.
const (
	TimeSourceExif    = "exif"
	TimeSourceModTime = "mod-time"
)

// PhotoMetadata is the normalized geolocation record for one photo.
type PhotoMetadata struct {
	// Signed decimal degrees, latitude in [-90, 90].
	Latitude float64
	// Signed decimal degrees, longitude in [-180, 180].
	Longitude float64
	// Meters above (positive) or below (negative) sea level.
	Altitude    float64
	HasAltitude bool
	// Compass direction the camera was pointed, [0, 360) clockwise from north.
	Bearing    float64
	HasBearing bool
	// Best-effort capture time. See TimeSource for provenance.
	CapturedAt time.Time
	TimeSource string
	// The original file, immutable once extracted.
	SourcePath string
}

// Extract reads the EXIF block from r and returns a PhotoMetadata for path.
// It returns an error wrapping ErrNoLocation when the image has no usable
// location data and a descriptive error when the data is present but
// malformed (zero denominators, out-of-range coordinates). It never panics
// and has no side effects.
func Extract(r io.Reader, path string) (*PhotoMetadata, error) {

	x, err := exif.Decode(r)

	if err != nil {
		// No tag block at all, or one we can not parse. Same outcome
		// either way: this photo has nothing for us.
		return nil, fmt.Errorf("%w (%s)", ErrNoLocation, path)
	}

	gps, err := decodeGpsFields(x)

	if err != nil {
		return nil, err
	}

	if gps == nil {
		return nil, fmt.Errorf("%w (%s)", ErrNoLocation, path)
	}

	lat := DecimalDegrees(gps.Latitude, gps.LatitudeRef)
	lon := DecimalDegrees(gps.Longitude, gps.LongitudeRef)

	if lat < -90.0 || lat > 90.0 {
		return nil, fmt.Errorf("Latitude %f out of range for %s", lat, path)
	}

	if lon < -180.0 || lon > 180.0 {
		return nil, fmt.Errorf("Longitude %f out of range for %s", lon, path)
	}

	m := &PhotoMetadata{
		Latitude:   lat,
		Longitude:  lon,
		SourcePath: path,
	}

	if gps.HasAltitude {

		alt := gps.Altitude

		// GPSAltitudeRef 1 means below sea level.
		if gps.AltitudeRef == 1 {
			alt = -alt
		}

		m.Altitude = alt
		m.HasAltitude = true
	}

	if gps.HasDirection {

		// Some cameras store the direction as an IEEE double so Inf and
		// NaN are representable on the wire. They are not bearings.

		if math.IsNaN(gps.Direction) || math.IsInf(gps.Direction, 0) {
			return nil, fmt.Errorf("Non-finite GPSImgDirection for %s", path)
		}

		m.Bearing = NormalizeBearing(gps.Direction)
		m.HasBearing = true
	}

	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {

		if str, err := tag.StringVal(); err == nil {

			if t, err := time.Parse("2006:01:02 15:04:05", str); err == nil {
				m.CapturedAt = t
				m.TimeSource = TimeSourceExif
			}
		}
	}

	// A DateTimeOriginal that is absent or fails to parse falls through to
	// the plain DateTime tag.

	if m.CapturedAt.IsZero() {

		if tag, err := x.Get(exif.DateTime); err == nil {

			if str, err := tag.StringVal(); err == nil {

				if t, err := time.Parse("2006:01:02 15:04:05", str); err == nil {
					m.CapturedAt = t
					m.TimeSource = TimeSourceExif
				}
			}
		}
	}

	return m, nil
}

// decodeGpsFields populates a GpsFields from a decoded EXIF block. A nil
// GpsFields (with a nil error) means the GPS sub-block is absent or is
// missing either latitude or longitude.
func decodeGpsFields(x *exif.Exif) (*GpsFields, error) {

	lat_tag, lat_err := x.Get(exif.GPSLatitude)
	lon_tag, lon_err := x.Get(exif.GPSLongitude)

	// Half a coordinate is no coordinate.

	if lat_err != nil || lon_err != nil {
		return nil, nil
	}

	lat_dms, err := tagTriplet(lat_tag)

	if err != nil {
		return nil, fmt.Errorf("Malformed GPSLatitude, %w", err)
	}

	lon_dms, err := tagTriplet(lon_tag)

	if err != nil {
		return nil, fmt.Errorf("Malformed GPSLongitude, %w", err)
	}

	gps := &GpsFields{
		Latitude:  lat_dms,
		Longitude: lon_dms,
	}

	if tag, err := x.Get(exif.GPSLatitudeRef); err == nil {

		if str, err := tag.StringVal(); err == nil {
			gps.LatitudeRef = str
		}
	}

	if tag, err := x.Get(exif.GPSLongitudeRef); err == nil {

		if str, err := tag.StringVal(); err == nil {
			gps.LongitudeRef = str
		}
	}

	if tag, err := x.Get(exif.GPSAltitude); err == nil {

		if alt, err := tagComponent(tag, 0); err == nil {

			gps.Altitude = alt
			gps.HasAltitude = true

			if ref_tag, err := x.Get(exif.GPSAltitudeRef); err == nil {

				if ref, err := ref_tag.Int(0); err == nil {
					gps.AltitudeRef = ref
				}
			}
		}
	}

	if tag, err := x.Get(exif.GPSImgDirection); err == nil {

		if dir, err := tagComponent(tag, 0); err == nil {
			gps.Direction = dir
			gps.HasDirection = true
		}
	}

	return gps, nil
}
