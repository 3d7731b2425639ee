package orient

// Rotate image pixels so that visual "up" matches true vertical, according
// to the EXIF Orientation tag. Dimensions may change (width and height swap)
// under the 90 degree corrections so callers must not assume fixed
// dimensions post-correction.

import (
	"bytes"
	"image"
	"log/slog"

	"github.com/aaronland/go-image-tools/imaging"
	"github.com/aaronland/go-image-tools/util"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/whosonfirst/go-ioutil"
)

// Apply returns a copy of im rotated for the given EXIF Orientation value.
// Only the plain-rotation members of the enumeration are corrected; the
// mirrored values and anything unrecognized are returned unchanged.
func Apply(im image.Image, orientation int) image.Image {

	switch orientation {
	case 3:
		return imaging.Rotate180(im)
	case 6:
		// Stored rotated 90 CCW, so rotate 90 CW to correct. The
		// imaging rotations are counter-clockwise.
		return imaging.Rotate270(im)
	case 8:
		return imaging.Rotate90(im)
	default:
		return im
	}
}

// Correct reads the EXIF Orientation tag from body and returns a re-encoded
// copy whose pixels are upright. A missing or unrecognized tag, or pixel
// data the decoder rejects, degrades to returning body unmodified with a
// recorded warning. It never fails the caller.
func Correct(body []byte, path string) []byte {

	br := bytes.NewReader(body)
	fh, err := ioutil.NewReadSeekCloser(br)

	if err != nil {
		slog.Warn("Failed to wrap image for orientation correction", "path", path, "error", err)
		return body
	}

	defer fh.Close()

	orientation := 1

	x, err := exif.Decode(fh)

	if err == nil {

		tag, err := x.Get(exif.Orientation)

		if err == nil {

			if o, err := tag.Int(0); err == nil {
				orientation = o
			}
		}
	}

	switch orientation {
	case 3, 6, 8:
		// pass
	default:
		return body
	}

	_, err = fh.Seek(0, 0)

	if err != nil {
		slog.Warn("Failed to rewind image for orientation correction", "path", path, "error", err)
		return body
	}

	im, format, err := util.DecodeImageFromReader(fh)

	if err != nil {
		slog.Warn("Failed to decode image for orientation correction", "path", path, "error", err)
		return body
	}

	im = Apply(im, orientation)

	var buf bytes.Buffer

	err = util.EncodeImage(im, format, &buf)

	if err != nil {
		slog.Warn("Failed to encode corrected image", "path", path, "error", err)
		return body
	}

	return buf.Bytes()
}
