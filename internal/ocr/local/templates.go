package local

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// glyphSet is the alphabet the local engine can recognize: digits plus
// the punctuation the marker grammar needs. Circled-digit markers are
// outside a cheap template matcher's reach and are left to the remote
// engine.
var glyphSet = []rune{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '(', ')', '[', ']'}

const (
	templateW = 7
	templateH = 13
)

// template is a single glyph's binary ink mask at the reference size.
type template struct {
	ch   rune
	mask []bool // row-major, len == templateW*templateH
}

// buildTemplates renders glyphSet with the basicfont bitmap face, the
// same face the engine's test fixtures are drawn with, so the
// recognition alphabet and the images that exercise it share one
// source of truth.
func buildTemplates() []template {
	face := basicfont.Face7x13
	out := make([]template, 0, len(glyphSet))
	for _, ch := range glyphSet {
		img := image.NewGray(image.Rect(0, 0, templateW, templateH))
		draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
		d := font.Drawer{Dst: img, Src: image.Black, Face: face, Dot: fixed.P(0, templateH-3)}
		d.DrawString(string(ch))
		mask := make([]bool, templateW*templateH)
		for y := 0; y < templateH; y++ {
			for x := 0; x < templateW; x++ {
				_, _, _, a := img.At(x, y).RGBA()
				g := img.GrayAt(x, y)
				mask[y*templateW+x] = g.Y < 128 && a > 0
			}
		}
		out = append(out, template{ch: ch, mask: mask})
	}
	return out
}

// resizeMaskNearest resamples a binary mask of size (w,h) to the
// reference template size using nearest-neighbor, the simplest resize
// strategy and adequate for single-glyph crops.
func resizeMaskNearest(src []bool, w, h int) []bool {
	out := make([]bool, templateW*templateH)
	if w <= 0 || h <= 0 {
		return out
	}
	for y := 0; y < templateH; y++ {
		sy := y * h / templateH
		if sy >= h {
			sy = h - 1
		}
		for x := 0; x < templateW; x++ {
			sx := x * w / templateW
			if sx >= w {
				sx = w - 1
			}
			out[y*templateW+x] = src[sy*w+sx]
		}
	}
	return out
}

// matchScore returns the fraction of pixels that agree between a
// (resized) candidate mask and a template, in [0,1].
func matchScore(candidate, tmpl []bool) float64 {
	if len(candidate) != len(tmpl) || len(tmpl) == 0 {
		return 0
	}
	agree := 0
	for i := range tmpl {
		if candidate[i] == tmpl[i] {
			agree++
		}
	}
	return float64(agree) / float64(len(tmpl))
}
