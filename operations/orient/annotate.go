package orient

import (
	"bytes"
	"image/color"
	"log/slog"
	"math"

	"github.com/aaronland/go-image-tools/imaging"
	"github.com/aaronland/go-image-tools/util"
)

// Annotate stamps a bearing indicator on a copy of body: a line radiating
// from the image centre in the compass direction the camera was pointed,
// with 0 degrees at the top of the frame. Anything that prevents stamping
// degrades to returning body unmodified with a recorded warning.
func Annotate(body []byte, bearing float64, path string) []byte {

	br := bytes.NewReader(body)

	im, format, err := util.DecodeImageFromReader(br)

	if err != nil {
		slog.Warn("Failed to decode image for annotation", "path", path, "error", err)
		return body
	}

	stamped := imaging.Clone(im)

	bounds := stamped.Bounds()
	cx := float64(bounds.Dx()) / 2.0
	cy := float64(bounds.Dy()) / 2.0

	length := math.Min(cx, cy) * 0.8

	// Screen y grows downward, so north is -y.
	rad := bearing * math.Pi / 180.0
	dx := math.Sin(rad)
	dy := -math.Cos(rad)

	c := color.NRGBA{R: 255, G: 0, B: 0, A: 255}

	for step := 0.0; step <= length; step += 0.5 {

		x := int(cx + dx*step)
		y := int(cy + dy*step)

		for ox := -1; ox <= 1; ox++ {
			for oy := -1; oy <= 1; oy++ {
				stamped.Set(x+ox, y+oy, c)
			}
		}
	}

	var buf bytes.Buffer

	err = util.EncodeImage(stamped, format, &buf)

	if err != nil {
		slog.Warn("Failed to encode annotated image", "path", path, "error", err)
		return body
	}

	return buf.Bytes()
}
