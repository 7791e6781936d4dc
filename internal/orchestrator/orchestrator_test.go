package orchestrator

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpark/examsplit/internal/config"
	"github.com/kpark/examsplit/internal/geometry"
	"github.com/kpark/examsplit/internal/manifest"
	"github.com/kpark/examsplit/internal/ocr"
	"github.com/kpark/examsplit/internal/ocr/ocrtest"
	"github.com/kpark/examsplit/internal/raster"
)

// fakeRasterizer returns a fixed set of pages regardless of the PDF path.
type fakeRasterizer struct {
	pages []raster.Page
	err   error
}

func (f *fakeRasterizer) Rasterize(context.Context, string, int) ([]raster.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

func blankPage(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

func pageWithSeparator(w, h, x int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for yy := 0; yy < h; yy++ {
		for xx := 0; xx < w; xx++ {
			v := uint8(255)
			if xx == x {
				v = 0
			}
			img.SetGray(xx, yy, color.Gray{Y: v})
		}
	}
	return img
}

func block(text string, x, y, w, h int, conf float64, tag ocr.EngineTag) ocr.TextBlock {
	rect, err := geometry.NewRect(x, y, w, h)
	if err != nil {
		panic(err)
	}
	return ocr.TextBlock{Text: text, Box: rect, Confidence: conf, Engine: tag}
}

func baseConfig() config.JobConfig {
	cfg := config.DefaultJobConfig()
	cfg.Strategy = config.StrategyLocalThenRemote
	cfg.MaxRetries = 1
	return cfg
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestProcessJob_CleanSingleColumnAllLocal(t *testing.T) {
	page := blankPage(50, 100)
	rasterizer := &fakeRasterizer{pages: []raster.Page{{Index: 0, Image: page}}}

	local := ocrtest.New("local-mock", ocr.Response{
		Blocks: []ocr.TextBlock{
			block("1.", 5, 10, 15, 12, 0.9, ocr.EngineLocal),
			block("2.", 5, 50, 15, 12, 0.9, ocr.EngineLocal),
		},
		PageDims: geometry.Dims{W: 50, H: 100},
	})
	remote := ocrtest.New("remote-mock", ocr.Response{})

	o := New(Deps{Rasterizer: rasterizer, LocalEngine: local, RemoteEngine: remote}, baseConfig())
	o.sleep = noSleep

	outputRoot := t.TempDir()
	result, err := o.ProcessJob(t.Context(), "job-1", "ignored.pdf", outputRoot)
	require.NoError(t, err)
	require.Equal(t, manifest.StatusOK, result.Manifest.Status)
	require.Len(t, result.Manifest.Pages, 1)
	require.Len(t, result.Manifest.Pages[0].Columns, 1)

	col := result.Manifest.Pages[0].Columns[0]
	require.Len(t, col.Problems, 2)
	assert.Equal(t, 1, col.Problems[0].Number)
	assert.Equal(t, 2, col.Problems[1].Number)
	assert.Empty(t, col.Missing)
	assert.Equal(t, 0, remote.CallCount(), "remote must not be invoked when stage 1 has no gaps")

	for _, p := range col.Problems {
		fullPath := filepath.Join(outputRoot, "job-1", p.File)
		_, statErr := os.Stat(fullPath)
		assert.NoError(t, statErr, "expected emitted file %s to exist", fullPath)
	}
	_, statErr := os.Stat(filepath.Join(outputRoot, "job-1.zip"))
	assert.NoError(t, statErr)
}

func TestProcessJob_MissingRecoveredByRemote(t *testing.T) {
	page := blankPage(50, 100)
	rasterizer := &fakeRasterizer{pages: []raster.Page{{Index: 0, Image: page}}}

	local := ocrtest.New("local-mock", ocr.Response{
		Blocks: []ocr.TextBlock{
			block("1.", 5, 10, 15, 12, 0.9, ocr.EngineLocal),
			block("2.", 5, 50, 15, 12, 0.9, ocr.EngineLocal),
		},
		PageDims: geometry.Dims{W: 50, H: 100},
	})
	// Remote page space is exactly double the strip's dims, s_x = s_y = 0.5.
	remote := ocrtest.New("remote-mock", ocr.Response{
		Blocks: []ocr.TextBlock{
			block("3.", 20, 140, 10, 10, 0.85, ocr.EngineRemote),
		},
		PageDims: geometry.Dims{W: 100, H: 200},
	})

	cfg := baseConfig()
	cfg.ExpectedProblemCount = 3
	cfg.RemoteCredentials = &config.RemoteCredentials{AppID: "id", AppKey: "key"}

	o := New(Deps{Rasterizer: rasterizer, LocalEngine: local, RemoteEngine: remote}, cfg)
	o.sleep = noSleep

	outputRoot := t.TempDir()
	result, err := o.ProcessJob(t.Context(), "job-2", "ignored.pdf", outputRoot)
	require.NoError(t, err)
	require.Equal(t, manifest.StatusOK, result.Manifest.Status)
	assert.Equal(t, 1, remote.CallCount(), "remote must be invoked exactly once for the gap column")

	col := result.Manifest.Pages[0].Columns[0]
	require.Len(t, col.Problems, 3)
	assert.Equal(t, 1, col.Problems[0].Number)
	assert.Equal(t, 2, col.Problems[1].Number)
	assert.Equal(t, 3, col.Problems[2].Number)
	assert.Equal(t, manifest.SourceRemote, col.Problems[2].Source)
	assert.Empty(t, col.Missing)
}

func TestProcessJob_AllRemoteFromEmptyLocal(t *testing.T) {
	page := blankPage(50, 100)
	rasterizer := &fakeRasterizer{pages: []raster.Page{{Index: 0, Image: page}}}

	local := ocrtest.New("local-mock", ocr.Response{PageDims: geometry.Dims{W: 50, H: 100}})
	remote := ocrtest.New("remote-mock", ocr.Response{
		Blocks: []ocr.TextBlock{
			block("1.", 5, 10, 10, 10, 0.9, ocr.EngineRemote),
			block("2.", 5, 80, 10, 10, 0.9, ocr.EngineRemote),
		},
		PageDims: geometry.Dims{W: 50, H: 100},
	})

	cfg := baseConfig()
	cfg.ExpectedProblemCount = 2
	cfg.RemoteCredentials = &config.RemoteCredentials{AppID: "id", AppKey: "key"}

	o := New(Deps{Rasterizer: rasterizer, LocalEngine: local, RemoteEngine: remote}, cfg)
	o.sleep = noSleep

	outputRoot := t.TempDir()
	result, err := o.ProcessJob(t.Context(), "job-8", "ignored.pdf", outputRoot)
	require.NoError(t, err)
	require.Equal(t, manifest.StatusOK, result.Manifest.Status)

	col := result.Manifest.Pages[0].Columns[0]
	require.Len(t, col.Problems, 2)
	for _, p := range col.Problems {
		assert.Equal(t, manifest.SourceRemote, p.Source)
	}
}

func TestProcessJob_RemoteUnavailableYieldsPartial(t *testing.T) {
	page := blankPage(50, 100)
	rasterizer := &fakeRasterizer{pages: []raster.Page{{Index: 0, Image: page}}}

	local := ocrtest.New("local-mock", ocr.Response{
		Blocks: []ocr.TextBlock{
			block("1.", 5, 10, 15, 12, 0.9, ocr.EngineLocal),
			block("2.", 5, 50, 15, 12, 0.9, ocr.EngineLocal),
		},
		PageDims: geometry.Dims{W: 50, H: 100},
	})
	remote := &ocrtest.Mock{
		IDTag:  "remote-mock",
		Script: []ocrtest.Call{{Err: ocr.NewError(ocr.FailureUnavailable, errors.New("no credentials"))}},
	}

	cfg := baseConfig()
	cfg.ExpectedProblemCount = 3

	o := New(Deps{Rasterizer: rasterizer, LocalEngine: local, RemoteEngine: remote}, cfg)
	o.sleep = noSleep

	outputRoot := t.TempDir()
	result, err := o.ProcessJob(t.Context(), "job-3", "ignored.pdf", outputRoot)
	require.NoError(t, err)
	require.Equal(t, manifest.StatusPartial, result.Manifest.Status)

	col := result.Manifest.Pages[0].Columns[0]
	assert.Equal(t, []int{3}, col.Missing)
	_, statErr := os.Stat(filepath.Join(outputRoot, "job-3.zip"))
	assert.NoError(t, statErr, "partial success still publishes a zip")
}

func TestProcessJob_RasterizeFailureProducesNoOutput(t *testing.T) {
	rasterizer := &fakeRasterizer{err: errors.New("corrupt pdf")}
	local := ocrtest.New("local-mock", ocr.Response{})
	remote := ocrtest.New("remote-mock", ocr.Response{})

	o := New(Deps{Rasterizer: rasterizer, LocalEngine: local, RemoteEngine: remote}, baseConfig())
	o.sleep = noSleep

	outputRoot := t.TempDir()
	result, err := o.ProcessJob(t.Context(), "job-4", "ignored.pdf", outputRoot)
	require.Error(t, err)
	assert.Equal(t, manifest.StatusFailed, result.Manifest.Status)

	entries, readErr := os.ReadDir(outputRoot)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "a FAILED job must leave no output in outputRoot")
}

// cancelingRemote simulates the per-job deadline expiring while a
// remote call is in flight: it kills the job context from inside Run,
// then reports the in-flight call as timed out.
type cancelingRemote struct{ cancel context.CancelFunc }

func (e *cancelingRemote) ID() string { return "remote-canceling" }

func (e *cancelingRemote) Run(context.Context, image.Image, ocr.Hints, int) (ocr.Response, error) {
	e.cancel()
	return ocr.Response{}, ocr.NewError(ocr.FailureTransient, context.DeadlineExceeded)
}

func TestProcessJob_DeadlineMidRemoteFailsWithNoOutput(t *testing.T) {
	page := blankPage(50, 100)
	rasterizer := &fakeRasterizer{pages: []raster.Page{{Index: 0, Image: page}}}

	local := ocrtest.New("local-mock", ocr.Response{
		Blocks: []ocr.TextBlock{
			block("1.", 5, 10, 15, 12, 0.9, ocr.EngineLocal),
		},
		PageDims: geometry.Dims{W: 50, H: 100},
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	remote := &cancelingRemote{cancel: cancel}

	cfg := baseConfig()
	cfg.ExpectedProblemCount = 2

	o := New(Deps{Rasterizer: rasterizer, LocalEngine: local, RemoteEngine: remote}, cfg)
	o.sleep = noSleep

	outputRoot := t.TempDir()
	result, err := o.ProcessJob(ctx, "job-6", "ignored.pdf", outputRoot)
	require.Error(t, err)
	assert.Equal(t, manifest.StatusFailed, result.Manifest.Status)
	require.NotEmpty(t, result.Manifest.Errors)
	assert.Equal(t, "deadline_exceeded", result.Manifest.Errors[0].Kind)

	entries, readErr := os.ReadDir(outputRoot)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "an expired job must leave no output in outputRoot")
}

func TestProcessJob_TwoColumnsInferExpectationsPerColumn(t *testing.T) {
	// A right-hand column detecting 5 and 6 must not be diagnosed as
	// missing 1..4, nor a left column detecting 3 and 4 as missing 1
	// and 2: expectations are inferred per column.
	page := pageWithSeparator(400, 600, 200)
	rasterizer := &fakeRasterizer{pages: []raster.Page{{Index: 0, Image: page}}}

	local := &ocrtest.Mock{IDTag: "local-mock", Script: []ocrtest.Call{
		{Response: ocr.Response{Blocks: []ocr.TextBlock{
			block("3.", 5, 10, 15, 12, 0.9, ocr.EngineLocal),
			block("4.", 5, 300, 15, 12, 0.9, ocr.EngineLocal),
		}}},
		{Response: ocr.Response{Blocks: []ocr.TextBlock{
			block("5.", 5, 10, 15, 12, 0.9, ocr.EngineLocal),
			block("6.", 5, 300, 15, 12, 0.9, ocr.EngineLocal),
		}}},
	}}
	remote := ocrtest.New("remote-mock", ocr.Response{})

	o := New(Deps{Rasterizer: rasterizer, LocalEngine: local, RemoteEngine: remote}, baseConfig())
	o.sleep = noSleep

	outputRoot := t.TempDir()
	result, err := o.ProcessJob(t.Context(), "job-7", "ignored.pdf", outputRoot)
	require.NoError(t, err)
	assert.Equal(t, manifest.StatusOK, result.Manifest.Status)
	assert.Equal(t, 0, remote.CallCount())
	require.Len(t, result.Manifest.Pages[0].Columns, 2)
	assert.Empty(t, result.Manifest.Pages[0].Columns[0].Missing)
	assert.Empty(t, result.Manifest.Pages[0].Columns[1].Missing)
}

func TestProcessJob_LocalOnlyStrategySkipsRemoteOnGaps(t *testing.T) {
	page := blankPage(50, 100)
	rasterizer := &fakeRasterizer{pages: []raster.Page{{Index: 0, Image: page}}}

	local := ocrtest.New("local-mock", ocr.Response{
		Blocks: []ocr.TextBlock{
			block("1.", 5, 10, 15, 12, 0.9, ocr.EngineLocal),
		},
		PageDims: geometry.Dims{W: 50, H: 100},
	})
	remote := ocrtest.New("remote-mock", ocr.Response{})

	cfg := baseConfig()
	cfg.Strategy = config.StrategyLocalOnly
	cfg.ExpectedProblemCount = 2

	o := New(Deps{Rasterizer: rasterizer, LocalEngine: local, RemoteEngine: remote}, cfg)
	o.sleep = noSleep

	outputRoot := t.TempDir()
	result, err := o.ProcessJob(t.Context(), "job-5", "ignored.pdf", outputRoot)
	require.NoError(t, err)
	assert.Equal(t, manifest.StatusPartial, result.Manifest.Status)
	assert.Equal(t, 0, remote.CallCount())
}
