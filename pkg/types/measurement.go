package types

import "time"

// Measurement is the result of one capture cycle.
type Measurement struct {
	PixelLength int       // Width of the dominant bright segment in pixels (0 = nothing found)
	WidthMM     float64   // Physical width, pixel length times the calibration rate (0 until calibrated)
	Row         int       // Row the segment was found on, relative to the cropped frame
	Status      string    // Human-readable reason when PixelLength is 0
	Overlay     []byte    // Annotated preview frame, JPEG encoded
	CapturedAt  time.Time // Capture timestamp
	FrameNum    uint64    // Sequential capture number
}

// Found reports whether this cycle produced a usable width.
func (m *Measurement) Found() bool {
	return m != nil && m.PixelLength > 0
}
