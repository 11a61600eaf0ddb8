//go:build gocv

package vision

import (
	"image"
	"image/draw"

	"gocv.io/x/gocv"
)

// DecodeBinary decodes a camera frame with OpenCV, crops the vertical middle
// half where the tape sits, and binarizes it with the fixed intensity
// threshold.
func DecodeBinary(data []byte) (*image.Gray, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		if !mat.Empty() {
			mat.Close()
		}
		return nil, &ProcessingError{Reason: "cannot decode image data"}
	}
	defer mat.Close()

	segment := mat.Rows() / 4
	if segment == 0 {
		return nil, &ProcessingError{Reason: "frame too small to crop"}
	}

	cropped := mat.Region(image.Rect(0, segment, mat.Cols(), 3*segment))
	defer cropped.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(cropped, &gray, gocv.ColorBGRToGray)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, float32(brightThreshold), brightLevel, gocv.ThresholdBinary)

	img, err := binary.ToImage()
	if err != nil {
		return nil, &ProcessingError{Reason: "cannot convert frame"}
	}
	if grayImg, ok := img.(*image.Gray); ok {
		return grayImg, nil
	}

	out := image.NewGray(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out, nil
}
