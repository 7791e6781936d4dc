// Package local implements the synchronous, no-network, low-cost OCR
// engine: a binarize → connected-components → per-glyph template match
// → line-grouping pipeline. It always reports bounding boxes in the
// input image's own pixel space.
package local

import (
	"context"
	"fmt"
	"image"
	"sort"
	"time"

	"github.com/kpark/examsplit/internal/geometry"
	"github.com/kpark/examsplit/internal/mempool"
	"github.com/kpark/examsplit/internal/ocr"
)

const engineID = "local-template"

// Config tunes the local engine's binarization and line-grouping.
type Config struct {
	// Threshold is the grayscale cut point (0-255) below which a pixel
	// is considered ink.
	Threshold uint8
	// MinComponentArea drops specks smaller than this many pixels.
	MinComponentArea int
	// MinMatchScore is the template-match floor a glyph must clear to
	// be reported at all; below it the component is dropped rather
	// than reported as low-confidence noise.
	MinMatchScore float64
	// LineYOverlapRatio is the minimum fraction of a component's height
	// that must overlap another's for them to be grouped on one line.
	LineYOverlapRatio float64
	// MaxCharGapFactor bounds the horizontal gap (as a multiple of the
	// shorter component's width) allowed between two components still
	// considered part of the same token.
	MaxCharGapFactor float64
}

// DefaultConfig returns tuned defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:         160,
		MinComponentArea:  4,
		MinMatchScore:     0.72,
		LineYOverlapRatio: 0.4,
		MaxCharGapFactor:  1.5,
	}
}

// Engine is the local OCR engine.
type Engine struct {
	cfg       Config
	templates []template
}

// New constructs a local engine with the given configuration.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, templates: buildTemplates()}
}

// ID implements ocr.Engine.
func (e *Engine) ID() string { return engineID }

// Run implements ocr.Engine. It never returns a permanent/transient
// error for unrecognized content; an empty block list is valid.
func (e *Engine) Run(ctx context.Context, img image.Image, _ ocr.Hints, _ int) (ocr.Response, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return ocr.Response{}, ocr.NewError(ocr.FailureTransient, fmt.Errorf("local engine: context: %w", err))
	}
	if img == nil {
		return ocr.Response{}, ocr.NewError(ocr.FailurePermanent, fmt.Errorf("local engine: nil image"))
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mask := binarize(img, e.cfg.Threshold)
	defer mempool.PutBool(mask)

	comps := findComponents(mask, w, h)
	glyphs := make([]glyph, 0, len(comps))
	for _, c := range comps {
		if c.count < e.cfg.MinComponentArea {
			continue
		}
		ch, score := e.recognizeComponent(mask, w, c)
		if score < e.cfg.MinMatchScore {
			continue
		}
		glyphs = append(glyphs, glyph{comp: c, ch: ch, score: score})
	}

	blocks := e.groupIntoLines(glyphs, bounds.Min.X, bounds.Min.Y)

	return ocr.Response{
		Blocks:   blocks,
		EngineID: engineID,
		PageDims: geometry.Dims{W: w, H: h},
		Elapsed:  time.Since(start),
	}, nil
}

// binarize converts img to a row-major true==ink mask at the
// threshold, using Rec. 601 luminance.
func binarize(img image.Image, threshold uint8) []bool {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mask := mempool.GetBool(w * h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// Rec. 601 luma, downshifted from 16-bit to 8-bit channels.
			lum := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
			mask[y*w+x] = uint8(lum) < threshold
		}
	}
	return mask
}

func (e *Engine) recognizeComponent(mask []bool, w int, c component) (rune, float64) {
	cw, ch := c.w(), c.h()
	crop := make([]bool, cw*ch)
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			crop[y*cw+x] = mask[(c.minY+y)*w+(c.minX+x)]
		}
	}
	resized := resizeMaskNearest(crop, cw, ch)

	var best rune
	var bestScore float64
	for _, t := range e.templates {
		s := matchScore(resized, t.mask)
		if s > bestScore {
			bestScore = s
			best = t.ch
		}
	}
	return best, bestScore
}

// glyph is a recognized component awaiting line-grouping.
type glyph struct {
	comp  component
	ch    rune
	score float64
}

// groupIntoLines clusters glyphs sharing a y-band into TextBlocks,
// ordering glyphs left-to-right within each line and lines top-to-bottom.
func (e *Engine) groupIntoLines(glyphs []glyph, originX, originY int) []ocr.TextBlock {
	if len(glyphs) == 0 {
		return nil
	}
	sort.Slice(glyphs, func(i, j int) bool {
		if glyphs[i].comp.minY != glyphs[j].comp.minY {
			return glyphs[i].comp.minY < glyphs[j].comp.minY
		}
		return glyphs[i].comp.minX < glyphs[j].comp.minX
	})

	var lines [][]glyph
	for _, g := range glyphs {
		placed := false
		for i, line := range lines {
			if e.sameLine(line[len(line)-1], g) {
				lines[i] = append(lines[i], g)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, []glyph{g})
		}
	}

	blocks := make([]ocr.TextBlock, 0, len(lines))
	for _, line := range lines {
		sort.Slice(line, func(i, j int) bool { return line[i].comp.minX < line[j].comp.minX })
		blocks = append(blocks, e.lineToBlock(line, originX, originY))
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Box.Y < blocks[j].Box.Y })
	return blocks
}

func (e *Engine) sameLine(last, candidate glyph) bool {
	a, b := last.comp, candidate.comp
	overlap := min(a.maxY, b.maxY) - max(a.minY, b.minY)
	if overlap <= 0 {
		return false
	}
	shorter := min(a.h(), b.h())
	if float64(overlap)/float64(shorter) < e.cfg.LineYOverlapRatio {
		return false
	}
	gap := b.minX - a.maxX
	maxGap := float64(min(a.w(), b.w())) * e.cfg.MaxCharGapFactor
	return float64(gap) <= maxGap
}

func (e *Engine) lineToBlock(line []glyph, originX, originY int) ocr.TextBlock {
	minX, minY := line[0].comp.minX, line[0].comp.minY
	maxX, maxY := line[0].comp.maxX, line[0].comp.maxY
	var sb []rune
	var scoreSum float64
	for _, g := range line {
		sb = append(sb, g.ch)
		scoreSum += g.score
		minX = min(minX, g.comp.minX)
		minY = min(minY, g.comp.minY)
		maxX = max(maxX, g.comp.maxX)
		maxY = max(maxY, g.comp.maxY)
	}
	rect, err := geometry.NewRect(originX+minX, originY+minY, maxX-minX+1, maxY-minY+1)
	if err != nil {
		rect = geometry.Rect{X: originX + minX, Y: originY + minY, W: 1, H: 1}
	}
	return ocr.TextBlock{
		Text:       string(sb),
		Box:        rect,
		Confidence: scoreSum / float64(len(line)),
		Engine:     ocr.EngineLocal,
	}
}
