package vision

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

// grayFrame builds a binarized frame with bright runs painted on selected
// rows. runs maps row -> list of inclusive [start, end] column spans.
func grayFrame(t *testing.T, width, height int, runs map[int][][2]int) *image.Gray {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for row, spans := range runs {
		for _, span := range spans {
			for x := span[0]; x <= span[1]; x++ {
				img.Pix[row*img.Stride+x] = brightLevel
			}
		}
	}
	return img
}

func TestLocateFindsRunOnNominalRow(t *testing.T) {
	img := grayFrame(t, 200, 50, map[int][][2]int{
		25: {{60, 90}},
	})

	seg, err := Locate(img, 25)
	require.NoError(t, err)
	require.Equal(t, Segment{Start: 60, End: 90, Row: 25}, seg)
	require.Equal(t, 31, seg.Length())
}

func TestLocateSearchesOutward(t *testing.T) {
	// Nothing on the nominal row; runs two rows below and three rows above.
	img := grayFrame(t, 200, 50, map[int][][2]int{
		27: {{60, 90}},
		22: {{30, 120}},
	})

	seg, err := Locate(img, 25)
	require.NoError(t, err)
	// +2 is visited before -3, even though the run at -3 is wider.
	require.Equal(t, 27, seg.Row)
}

func TestLocatePrefersBelowAtEqualDistance(t *testing.T) {
	img := grayFrame(t, 200, 50, map[int][][2]int{
		26: {{60, 70}},
		24: {{30, 120}},
	})

	seg, err := Locate(img, 25)
	require.NoError(t, err)
	require.Equal(t, 26, seg.Row)
}

func TestLocatePicksWidestRun(t *testing.T) {
	img := grayFrame(t, 200, 50, map[int][][2]int{
		25: {{20, 30}, {50, 100}, {140, 150}},
	})

	seg, err := Locate(img, 25)
	require.NoError(t, err)
	require.Equal(t, Segment{Start: 50, End: 100, Row: 25}, seg)
}

func TestLocateTieResolvesLeftmost(t *testing.T) {
	img := grayFrame(t, 200, 50, map[int][][2]int{
		25: {{40, 60}, {100, 120}},
	})

	seg, err := Locate(img, 25)
	require.NoError(t, err)
	require.Equal(t, 40, seg.Start)
}

func TestLocateNoBrightPixels(t *testing.T) {
	img := grayFrame(t, 200, 50, nil)

	_, err := Locate(img, 25)
	require.ErrorIs(t, err, ErrNoSegment)
}

func TestLocateIgnoresMarginOnlyRun(t *testing.T) {
	// width 200 -> margin 10. A run living entirely inside the left margin
	// must not count as a segment.
	img := grayFrame(t, 200, 50, map[int][][2]int{
		25: {{0, 9}},
	})

	_, err := Locate(img, 25)
	require.ErrorIs(t, err, ErrNoSegment)
}

func TestLocateRunCrossingMarginIsTruncated(t *testing.T) {
	img := grayFrame(t, 200, 50, map[int][][2]int{
		25: {{0, 14}},
	})

	seg, err := Locate(img, 25)
	require.NoError(t, err)
	// Only the columns from the margin bound inward are considered.
	require.Equal(t, Segment{Start: 10, End: 14, Row: 25}, seg)
}

func TestLocateMarginBoundsInclusive(t *testing.T) {
	// Bright exactly at column margin and column width-margin.
	img := grayFrame(t, 200, 50, map[int][][2]int{
		25: {{10, 10}, {185, 190}},
	})

	seg, err := Locate(img, 25)
	require.NoError(t, err)
	require.Equal(t, Segment{Start: 185, End: 190, Row: 25}, seg)
}

func TestLocateClampsNominalRow(t *testing.T) {
	img := grayFrame(t, 200, 50, map[int][][2]int{
		49: {{60, 90}},
	})

	seg, err := Locate(img, 500)
	require.NoError(t, err)
	require.Equal(t, 49, seg.Row)
}
