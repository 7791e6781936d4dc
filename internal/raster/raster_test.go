package raster

import (
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
)

func TestParsePageNumber(t *testing.T) {
	n, ok := parsePageNumber("page_3_image_1.png")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = parsePageNumber("notes.txt")
	assert.False(t, ok)

	_, ok = parsePageNumber("page_x_image_1.png")
	assert.False(t, ok)
}

func TestBlankCanvasSize(t *testing.T) {
	dims := []types.Dim{{Width: 612, Height: 792}}

	w, h := blankCanvasSize(dims, 0, 72)
	assert.Equal(t, 612, w)
	assert.Equal(t, 792, h)

	w, h = blankCanvasSize(dims, 0, 200)
	assert.InDelta(t, 1700, w, 1)
	assert.InDelta(t, 2200, h, 1)

	// Out-of-range page index falls back to US letter.
	w, h = blankCanvasSize(dims, 5, 72)
	assert.Equal(t, 612, w)
	assert.Equal(t, 792, h)
}

func TestRasterizeRejectsBadDPI(t *testing.T) {
	r := NewPDFCPURasterizer()
	_, err := r.Rasterize(t.Context(), "irrelevant.pdf", 0)
	assert.Error(t, err)
}
