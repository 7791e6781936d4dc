package layout_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/kpark/examsplit/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blankPage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func drawVerticalLine(img *image.Gray, x, width int) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for dx := 0; dx < width; dx++ {
			img.SetGray(x+dx, y, color.Gray{Y: 0})
		}
	}
}

func TestAnalyzeSplitsOnSeparatorLine(t *testing.T) {
	img := blankPage(2339, 3309)
	drawVerticalLine(img, 1169, 3)

	strips := layout.Analyze(img, layout.DefaultOptions())
	require.Len(t, strips, 2)
	assert.Equal(t, 0, strips[0].Index)
	assert.Equal(t, 0, strips[0].Rect.X)
	assert.InDelta(t, 1169, strips[0].Rect.W, 5)
	assert.Equal(t, 1, strips[1].Index)
	assert.InDelta(t, 1169, strips[1].Rect.X, 5)
	assert.InDelta(t, 2339, strips[1].Rect.Right(), 5)
}

func TestAnalyzeFallsBackToFullPageWithNoSeparator(t *testing.T) {
	img := blankPage(1000, 2000)
	strips := layout.Analyze(img, layout.DefaultOptions())
	require.Len(t, strips, 1)
	assert.Equal(t, 0, strips[0].Rect.X)
	assert.Equal(t, 1000, strips[0].Rect.W)
	assert.Equal(t, 2000, strips[0].Rect.H)
}

func TestAnalyzeIgnoresSeparatorOutsideInteriorBand(t *testing.T) {
	img := blankPage(1000, 2000)
	// x=50 is within the outer 20% band (<200), must be ignored.
	drawVerticalLine(img, 50, 3)

	strips := layout.Analyze(img, layout.DefaultOptions())
	require.Len(t, strips, 1)
}

func TestAnalyzeMergesThickSeparator(t *testing.T) {
	img := blankPage(1000, 2000)
	// Two rules 20 px apart: a thick separator drawn as a line pair.
	// They must collapse into one split near x=285, never a spurious
	// 20 px-wide column between them.
	drawVerticalLine(img, 275, 2)
	drawVerticalLine(img, 295, 2)

	strips := layout.Analyze(img, layout.DefaultOptions())
	require.Len(t, strips, 2)
	assert.InDelta(t, 285, strips[0].Rect.Right(), 10)
	assert.InDelta(t, 285, strips[1].Rect.X, 10)
}

func TestAnalyzeCapsAtThreeColumns(t *testing.T) {
	img := blankPage(4000, 2000)
	drawVerticalLine(img, 1000, 3)
	drawVerticalLine(img, 2000, 3)
	drawVerticalLine(img, 3000, 3)

	strips := layout.Analyze(img, layout.DefaultOptions())
	assert.LessOrEqual(t, len(strips), layout.DefaultMaxColumns)
}

func TestAnalyzeHandlesEmptyImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 0, 0))
	strips := layout.Analyze(img, layout.DefaultOptions())
	assert.Empty(t, strips)
}
