package exif_test

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/jgdrummond1980/KMZ-Generator/exif"
	"github.com/jgdrummond1980/KMZ-Generator/exif/exiftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {

	dir := exiftest.Rational{Num: 135, Den: 1}
	alt := exiftest.Rational{Num: 1234, Den: 10}

	body := exiftest.Encode(&exiftest.GPS{
		LatRef:    "N",
		Lat:       exiftest.Degrees(40, 26, 46),
		LonRef:    "W",
		Lon:       exiftest.Degrees(79, 58, 56),
		Direction: &dir,
		Altitude:  &alt,
	})

	m, err := exif.Extract(bytes.NewReader(body), "photo.jpg")
	require.NoError(t, err)

	assert.InDelta(t, 40.446111, m.Latitude, 1e-4)
	assert.InDelta(t, -79.982222, m.Longitude, 1e-4)

	require.True(t, m.HasBearing)
	assert.InDelta(t, 135.0, m.Bearing, 1e-9)

	require.True(t, m.HasAltitude)
	assert.InDelta(t, 123.4, m.Altitude, 1e-9)

	assert.Equal(t, "photo.jpg", m.SourcePath)
	assert.True(t, m.CapturedAt.IsZero())
}

func TestExtractBelowSeaLevel(t *testing.T) {

	alt := exiftest.Rational{Num: 42, Den: 1}

	body := exiftest.Encode(&exiftest.GPS{
		LatRef:   "S",
		Lat:      exiftest.Degrees(31, 46, 0),
		LonRef:   "E",
		Lon:      exiftest.Degrees(35, 30, 0),
		Altitude: &alt,
		AltRef:   1,
	})

	m, err := exif.Extract(bytes.NewReader(body), "photo.jpg")
	require.NoError(t, err)

	assert.True(t, m.Latitude < 0)
	assert.True(t, m.Longitude > 0)

	require.True(t, m.HasAltitude)
	assert.InDelta(t, -42.0, m.Altitude, 1e-9)

	assert.False(t, m.HasBearing)
}

func TestExtractNoExif(t *testing.T) {

	// A perfectly good image with no tag block at all.

	im := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, im))

	_, err := exif.Extract(&buf, "plain.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, exif.ErrNoLocation)
}

func TestExtractGarbage(t *testing.T) {

	_, err := exif.Extract(bytes.NewReader([]byte("this is not an image")), "garbage.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, exif.ErrNoLocation)
}

func TestExtractHalfCoordinate(t *testing.T) {

	// Latitude without longitude is no coordinate at all.

	body := exiftest.Encode(&exiftest.GPS{
		LatRef: "N",
		Lat:    exiftest.Degrees(40, 26, 46),
	})

	_, err := exif.Extract(bytes.NewReader(body), "half.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, exif.ErrNoLocation)
}

func TestExtractDoubleDirection(t *testing.T) {

	// GPSImgDirection stored as an IEEE double rather than a rational.

	dir := 215.5

	body := exiftest.Encode(&exiftest.GPS{
		LatRef:          "N",
		Lat:             exiftest.Degrees(40, 26, 46),
		LonRef:          "W",
		Lon:             exiftest.Degrees(79, 58, 56),
		DirectionDouble: &dir,
	})

	m, err := exif.Extract(bytes.NewReader(body), "photo.jpg")
	require.NoError(t, err)

	require.True(t, m.HasBearing)
	assert.InDelta(t, 215.5, m.Bearing, 1e-9)
}

func TestExtractNonFiniteDirection(t *testing.T) {

	// An Inf or NaN direction must fail that photo promptly rather than
	// wedge the batch. Each case runs under a deadline so a regression
	// here fails instead of hanging the suite.

	for _, dir := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {

		dir := dir

		body := exiftest.Encode(&exiftest.GPS{
			LatRef:          "N",
			Lat:             exiftest.Degrees(40, 26, 46),
			LonRef:          "W",
			Lon:             exiftest.Degrees(79, 58, 56),
			DirectionDouble: &dir,
		})

		done := make(chan error, 1)

		go func() {
			_, err := exif.Extract(bytes.NewReader(body), "spinner.jpg")
			done <- err
		}()

		select {
		case err := <-done:
			require.Error(t, err)
			// Malformed is not the same thing as absent.
			assert.NotErrorIs(t, err, exif.ErrNoLocation)
		case <-time.After(2 * time.Second):
			t.Fatalf("Extract did not return for direction %f", dir)
		}
	}
}

func TestExtractCaptureTime(t *testing.T) {

	body := exiftest.Encode(&exiftest.GPS{
		LatRef:           "N",
		Lat:              exiftest.Degrees(40, 26, 46),
		LonRef:           "W",
		Lon:              exiftest.Degrees(79, 58, 56),
		DateTimeOriginal: "2024:06:01 12:30:00",
		DateTime:         "2025:01:01 00:00:00",
	})

	m, err := exif.Extract(bytes.NewReader(body), "photo.jpg")
	require.NoError(t, err)

	// DateTimeOriginal wins when both are present.
	assert.Equal(t, time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC), m.CapturedAt)
	assert.Equal(t, exif.TimeSourceExif, m.TimeSource)
}

func TestExtractCaptureTimeFallback(t *testing.T) {

	// A DateTimeOriginal that does not parse must not shadow a good
	// DateTime tag.

	body := exiftest.Encode(&exiftest.GPS{
		LatRef:           "N",
		Lat:              exiftest.Degrees(40, 26, 46),
		LonRef:           "W",
		Lon:              exiftest.Degrees(79, 58, 56),
		DateTimeOriginal: "not a timestamp",
		DateTime:         "2025:01:01 00:00:00",
	})

	m, err := exif.Extract(bytes.NewReader(body), "photo.jpg")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), m.CapturedAt)
	assert.Equal(t, exif.TimeSourceExif, m.TimeSource)
}

func TestExtractZeroDenominator(t *testing.T) {

	body := exiftest.Encode(&exiftest.GPS{
		LatRef: "N",
		Lat: []exiftest.Rational{
			{Num: 40, Den: 0},
			{Num: 26, Den: 1},
			{Num: 46, Den: 1},
		},
		LonRef: "W",
		Lon:    exiftest.Degrees(79, 58, 56),
	})

	_, err := exif.Extract(bytes.NewReader(body), "broken.jpg")
	require.Error(t, err)

	// Malformed is not the same thing as absent.
	assert.NotErrorIs(t, err, exif.ErrNoLocation)
}
