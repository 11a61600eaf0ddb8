package vision

import (
	"errors"
	"image"
)

const (
	// brightLevel is the "on" intensity produced by binarization.
	brightLevel = 255

	// edgeMarginRatio excludes columns near the left and right edges where
	// sensor vignetting and enclosure shadows produce spurious bright pixels.
	edgeMarginRatio = 0.05
)

// ErrNoSegment is returned when no row in the search order contains a usable
// bright run.
var ErrNoSegment = errors.New("no bright segment found near the scan row")

// Segment is an inclusive run of contiguous bright columns on one row.
type Segment struct {
	Start int
	End   int
	Row   int
}

// Length returns the number of columns the segment spans.
func (s Segment) Length() int { return s.End - s.Start + 1 }

// Locate finds the widest contiguous bright run near nominalRow in a
// binarized frame.
//
// The nominal row is tried first, then rows at alternating offsets
// +1, -1, +2, -2, ... bounded by the frame edges. A single fixed scan row is
// brittle when the tape vibrates or the camera shifts; the outward search
// tolerates transient occlusion on the nominal row at the cost of a little
// vertical ambiguity. Equal-length runs on one row resolve to the leftmost.
func Locate(img *image.Gray, nominalRow int) (Segment, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return Segment{}, ErrNoSegment
	}

	target := nominalRow
	if target < 0 {
		target = 0
	}
	if target > height-1 {
		target = height - 1
	}

	margin := int(float64(width) * edgeMarginRatio)

	if seg, ok := widestRun(img, target, margin); ok {
		return seg, nil
	}
	for step := 1; step < height; step++ {
		if target+step < height {
			if seg, ok := widestRun(img, target+step, margin); ok {
				return seg, nil
			}
		}
		if target-step >= 0 {
			if seg, ok := widestRun(img, target-step, margin); ok {
				return seg, nil
			}
		}
	}

	return Segment{}, ErrNoSegment
}

// widestRun scans one row for the widest run of bright columns inside the
// edge margin. Both margin bounds are inclusive.
func widestRun(img *image.Gray, row, margin int) (Segment, bool) {
	bounds := img.Bounds()
	width := bounds.Dx()

	lo := margin
	hi := width - margin
	if hi > width-1 {
		hi = width - 1
	}

	best := Segment{Row: row}
	found := false
	runStart := -1

	flush := func(end int) {
		length := end - runStart + 1
		if !found || length > best.Length() {
			best.Start = runStart
			best.End = end
			found = true
		}
		runStart = -1
	}

	for x := lo; x <= hi; x++ {
		if img.GrayAt(bounds.Min.X+x, bounds.Min.Y+row).Y == brightLevel {
			if runStart < 0 {
				runStart = x
			}
			continue
		}
		if runStart >= 0 {
			flush(x - 1)
		}
	}
	if runStart >= 0 {
		flush(hi)
	}

	return best, found
}
