// Package vision implements the measurement pipeline: it crops and binarizes
// camera frames, locates the dominant bright segment near a configurable scan
// row, and renders the annotated preview frame.
package vision

import (
	"math"
	"time"

	"github.com/ba7lgj-dev/tape-width-monitor/pkg/types"
)

const (
	// brightThreshold separates tape (bright) from background on the 0-255
	// intensity scale.
	brightThreshold = 90

	// defaultLineRatio places the scan line slightly below the vertical
	// center of the cropped frame.
	defaultLineRatio = 0.6
)

// Measure runs one capture cycle over a raw JPEG frame.
//
// A missing or undecodable frame is a ProcessingError. A locator miss is not:
// the pipeline degrades to a zero-length measurement with a status banner on
// the overlay so the caller's display loop keeps running.
func Measure(data []byte, lineRatio float64) (*types.Measurement, error) {
	if len(data) == 0 {
		return nil, &ProcessingError{Reason: "no frame data"}
	}

	binary, err := DecodeBinary(data)
	if err != nil {
		return nil, err
	}

	row := ResolveScanRow(binary.Bounds().Dy(), lineRatio)
	m := &types.Measurement{CapturedAt: time.Now()}

	seg, err := Locate(binary, row)
	if err != nil {
		m.Status = err.Error()
		if overlay, encErr := renderFailureOverlay(binary, row, m.Status); encErr == nil {
			m.Overlay = overlay
		}
		return m, nil
	}

	m.PixelLength = seg.Length()
	m.Row = seg.Row
	if overlay, encErr := renderOverlay(binary, seg); encErr == nil {
		m.Overlay = overlay
	}
	return m, nil
}

// ResolveScanRow maps a line position ratio onto a row of a frame with the
// given height. Invalid ratios fall back to the default; out-of-range values
// are clamped to [0, 1].
func ResolveScanRow(height int, ratio float64) int {
	if math.IsNaN(ratio) {
		ratio = defaultLineRatio
	}
	ratio = math.Max(0, math.Min(1, ratio))
	if height <= 1 {
		return 0
	}
	return int(math.Round(ratio * float64(height-1)))
}
