// Package support holds the godog step-definition world for the
// acceptance scenarios: a per-scenario state struct plus a step
// registration function, driving internal/orchestrator in process.
package support

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/kpark/examsplit/internal/config"
	"github.com/kpark/examsplit/internal/geometry"
	"github.com/kpark/examsplit/internal/manifest"
	"github.com/kpark/examsplit/internal/ocr"
	"github.com/kpark/examsplit/internal/ocr/ocrtest"
	"github.com/kpark/examsplit/internal/orchestrator"
	"github.com/kpark/examsplit/internal/raster"
)

// World holds one scenario's accumulated state between steps.
type World struct {
	page     image.Image
	localByC map[int][]ocr.TextBlock

	expectedCount   int
	credsConfigured bool

	remoteResp        ocr.Response
	remoteUnavailable bool
	remoteConfigured  bool

	localEngine  *ocrtest.Mock
	remoteEngine *ocrtest.Mock

	result orchestrator.JobResult
	runErr error
	outDir string
}

// NewWorld builds a fresh, empty World for one scenario.
func NewWorld() *World {
	return &World{localByC: map[int][]ocr.TextBlock{}}
}

// fakeRasterizer always returns a single canned page.
type fakeRasterizer struct{ page image.Image }

func (f *fakeRasterizer) Rasterize(context.Context, string, int) ([]raster.Page, error) {
	return []raster.Page{{Index: 0, Image: f.page}}, nil
}

func markerBlock(n, x, y, w, h int) ocr.TextBlock {
	rect, err := geometry.NewRect(x, y, w, h)
	if err != nil {
		panic(err)
	}
	return ocr.TextBlock{Text: fmt.Sprintf("%d.", n), Box: rect, Confidence: 0.9, Engine: ocr.EngineLocal}
}

// SetPageWithSeparator builds a blank w×h page with a full-height dark
// vertical rule at x, enough to trip layout.Analyze's vertical-line
// detection.
func (w *World) SetPageWithSeparator(width, height, x int) {
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.Gray{Y: 255}}, image.Point{}, draw.Src)
	for yy := 0; yy < height; yy++ {
		img.Set(x, yy, color.Gray{Y: 0})
	}
	w.page = img
}

// SetBlankPage builds a blank w×h page with no separators, so
// layout.Analyze falls back to a single full-width strip.
func (w *World) SetBlankPage(width, height int) {
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.Gray{Y: 255}}, image.Point{}, draw.Src)
	w.page = img
}

// AddLocalFinds records that the local engine should report the given
// problem numbers, in order, for column col. Markers are spaced 500 px
// apart so a remote-recovered marker reconciled into the strip
// interleaves at a realistic position between its neighbors.
func (w *World) AddLocalFinds(col int, numbers []int) {
	blocks := make([]ocr.TextBlock, len(numbers))
	for i, n := range numbers {
		blocks[i] = markerBlock(n, 5, 10+500*i, 15, 12)
	}
	w.localByC[col] = blocks
}

// SetExpectedCount records the job's configured expected-problem-count.
func (w *World) SetExpectedCount(n int) { w.expectedCount = n }

// SetRemoteCredentialsConfigured records that the job should carry
// non-empty remote credentials.
func (w *World) SetRemoteCredentialsConfigured() { w.credsConfigured = true }

// SetRemoteFinds records the single text block the remote engine
// should report, in its own page-space dims.
func (w *World) SetRemoteFinds(n, x, y, bw, bh, pageW, pageH int) {
	w.remoteConfigured = true
	w.remoteResp = ocr.Response{
		Blocks:   []ocr.TextBlock{markerBlock(n, x, y, bw, bh)},
		PageDims: geometry.Dims{W: pageW, H: pageH},
	}
}

// SetRemoteUnavailable records that the remote engine should fail
// every call with ocr.FailureUnavailable.
func (w *World) SetRemoteUnavailable() { w.remoteUnavailable = true }

// Process builds the orchestrator's dependencies from everything
// recorded so far and runs one job.
func (w *World) Process(outDir string) error {
	w.outDir = outDir

	maxCol := 0
	for c := range w.localByC {
		if c > maxCol {
			maxCol = c
		}
	}
	localScript := make([]ocrtest.Call, maxCol+1)
	for c := 0; c <= maxCol; c++ {
		localScript[c] = ocrtest.Call{Response: ocr.Response{
			Blocks:   w.localByC[c],
			PageDims: geometry.Dims{W: w.page.Bounds().Dx(), H: w.page.Bounds().Dy()},
		}}
	}
	w.localEngine = &ocrtest.Mock{IDTag: "local-mock", Script: localScript}

	switch {
	case w.remoteUnavailable:
		w.remoteEngine = &ocrtest.Mock{IDTag: "remote-mock", Script: []ocrtest.Call{
			{Err: ocr.NewError(ocr.FailureUnavailable, fmt.Errorf("no credentials"))},
		}}
	case w.remoteConfigured:
		w.remoteEngine = &ocrtest.Mock{IDTag: "remote-mock", Script: []ocrtest.Call{{Response: w.remoteResp}}}
	default:
		w.remoteEngine = &ocrtest.Mock{IDTag: "remote-mock"}
	}

	cfg := config.DefaultJobConfig()
	cfg.Strategy = config.StrategyLocalThenRemote
	cfg.ExpectedProblemCount = w.expectedCount
	if w.credsConfigured {
		cfg.RemoteCredentials = &config.RemoteCredentials{AppID: "id", AppKey: "key"}
	}

	deps := orchestrator.Deps{
		Rasterizer:   &fakeRasterizer{page: w.page},
		LocalEngine:  w.localEngine,
		RemoteEngine: w.remoteEngine,
	}
	o := orchestrator.New(deps, cfg)

	result, err := o.ProcessJob(context.Background(), "scenario-job", "scenario.pdf", outDir)
	w.result = result
	w.runErr = err
	return nil
}

// Manifest returns the finished job's manifest.
func (w *World) Manifest() *manifest.Manifest { return w.result.Manifest }

// Column returns column index col of page 0, or an error if absent.
func (w *World) Column(col int) (manifest.Column, error) {
	if len(w.result.Manifest.Pages) == 0 {
		return manifest.Column{}, fmt.Errorf("manifest has no pages")
	}
	for _, c := range w.result.Manifest.Pages[0].Columns {
		if c.Column == col {
			return c, nil
		}
	}
	return manifest.Column{}, fmt.Errorf("column %d not found", col)
}

// RemoteCallCount reports how many times the remote engine was invoked.
func (w *World) RemoteCallCount() int {
	if w.remoteEngine == nil {
		return 0
	}
	return w.remoteEngine.CallCount()
}

// ParseIntList parses a comma-separated list like "1, 2, 3" into ints.
func ParseIntList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as int: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
