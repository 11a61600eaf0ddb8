package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay colors. The camera frame is binarized, so saturated primaries stay
// visible on both levels.
var (
	scanLineColor = color.RGBA{G: 255, A: 255}
	segmentColor  = color.RGBA{R: 255, A: 255}
	labelColor    = color.RGBA{B: 255, A: 255}
	statusColor   = color.RGBA{R: 80, G: 80, B: 255, A: 255}
)

const overlayJPEGQuality = 90

// renderOverlay draws the scan line, the detected segment, and a pixel-length
// label onto a copy of the binarized frame.
func renderOverlay(binary *image.Gray, seg Segment) ([]byte, error) {
	img := grayToRGBA(binary)
	width := img.Bounds().Dx()

	drawHLine(img, 0, width-1, seg.Row, scanLineColor, 1)
	drawHLine(img, seg.Start, seg.End, seg.Row, segmentColor, 2)

	text := fmt.Sprintf("%dpx", seg.Length())
	textWidth := basicfont.Face7x13.Advance * len(text)
	x := (seg.Start+seg.End)/2 - textWidth/2
	y := seg.Row - 10
	if y < 20 {
		y = 20
	}
	drawText(img, x, y, text, labelColor)

	return encodeJPEG(img)
}

// renderFailureOverlay draws the scan line plus a status banner explaining why
// no segment was measured this cycle.
func renderFailureOverlay(binary *image.Gray, scanRow int, message string) ([]byte, error) {
	img := grayToRGBA(binary)
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if scanRow >= 0 && scanRow < height {
		drawHLine(img, 0, width-1, scanRow, scanLineColor, 1)
	}

	// Darkened banner along the bottom edge.
	bannerTop := height - 40
	if bannerTop < 0 {
		bannerTop = 0
	}
	for y := bannerTop; y < height; y++ {
		for x := 0; x < width; x++ {
			p := img.RGBAAt(x, y)
			p.R = uint8(float64(p.R) * 0.4)
			p.G = uint8(float64(p.G) * 0.4)
			p.B = uint8(float64(p.B) * 0.4)
			img.SetRGBA(x, y, p)
		}
	}
	drawText(img, 10, height-15, message, statusColor)

	return encodeJPEG(img)
}

func grayToRGBA(src *image.Gray) *image.RGBA {
	bounds := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			v := src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
			out.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

func drawHLine(img *image.RGBA, x0, x1, y int, c color.RGBA, thickness int) {
	bounds := img.Bounds()
	for dy := 0; dy < thickness; dy++ {
		row := y + dy
		if row < bounds.Min.Y || row >= bounds.Max.Y {
			continue
		}
		for x := x0; x <= x1; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			img.SetRGBA(x, row, c)
		}
	}
}

func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: overlayJPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
