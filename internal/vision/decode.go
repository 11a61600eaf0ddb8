//go:build !gocv

package vision

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
)

// DecodeBinary decodes a camera frame, crops the vertical middle half where
// the tape sits, and binarizes it with the fixed intensity threshold.
// Pure-Go fallback used when the gocv build tag is not enabled.
func DecodeBinary(data []byte) (*image.Gray, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ProcessingError{Reason: "cannot decode image data"}
	}

	bounds := src.Bounds()
	segment := bounds.Dy() / 4
	if segment == 0 {
		return nil, &ProcessingError{Reason: "frame too small to crop"}
	}

	width := bounds.Dx()
	top := bounds.Min.Y + segment
	out := image.NewGray(image.Rect(0, 0, width, 2*segment))

	for y := 0; y < 2*segment; y++ {
		for x := 0; x < width; x++ {
			g := color.GrayModel.Convert(src.At(bounds.Min.X+x, top+y)).(color.Gray)
			if g.Y >= brightThreshold {
				out.SetGray(x, y, color.Gray{Y: brightLevel})
			}
		}
	}
	return out, nil
}
