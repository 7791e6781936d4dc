package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/kpark/examsplit/internal/boundary"
	"github.com/kpark/examsplit/internal/common"
	"github.com/kpark/examsplit/internal/config"
	"github.com/kpark/examsplit/internal/crop"
	"github.com/kpark/examsplit/internal/geometry"
	"github.com/kpark/examsplit/internal/layout"
	"github.com/kpark/examsplit/internal/manifest"
	"github.com/kpark/examsplit/internal/marker"
	"github.com/kpark/examsplit/internal/ocr"
	"github.com/kpark/examsplit/internal/raster"
	"github.com/kpark/examsplit/internal/validator"
	"github.com/kpark/examsplit/internal/zipper"
)

// Deps are the Orchestrator's required collaborators: the rasterizer
// and the two OCR engines.
type Deps struct {
	Rasterizer   raster.Rasterizer
	LocalEngine  ocr.Engine
	RemoteEngine ocr.Engine
}

// Orchestrator drives one job through the two-stage extraction state
// machine.
type Orchestrator struct {
	deps   Deps
	cfg    config.JobConfig
	format crop.Format

	progress          ProgressCallback
	logger            *slog.Logger
	remoteConcurrency int
	sleep             sleeper
}

// New constructs an Orchestrator with sane defaults; use the With*
// methods to override them before calling ProcessJob.
func New(deps Deps, cfg config.JobConfig) *Orchestrator {
	return &Orchestrator{
		deps:              deps,
		cfg:               cfg,
		format:            crop.FormatPNG,
		progress:          NoOpProgressCallback{},
		logger:            slog.Default(),
		remoteConcurrency: DefaultRemoteConcurrency,
		sleep:             realSleeper,
	}
}

func (o *Orchestrator) WithProgress(p ProgressCallback) *Orchestrator {
	if p != nil {
		o.progress = p
	}
	return o
}

func (o *Orchestrator) WithLogger(l *slog.Logger) *Orchestrator {
	if l != nil {
		o.logger = l
	}
	return o
}

func (o *Orchestrator) WithOutputFormat(f crop.Format) *Orchestrator {
	o.format = f
	return o
}

func (o *Orchestrator) WithRemoteConcurrency(n int) *Orchestrator {
	if n > 0 {
		o.remoteConcurrency = n
	}
	return o
}

// ProcessJob runs one job end to end: rasterize → layout → local OCR →
// validate → (remote OCR → reconcile → validate)? → crop → manifest →
// zip. Output is written to a scratch directory first and only
// published (renamed) into outputRoot/jobID on a non-FAILED outcome;
// a FAILED job leaves no trace in outputRoot.
func (o *Orchestrator) ProcessJob(ctx context.Context, jobID, pdfPath, outputRoot string) (JobResult, error) {
	m := manifest.New(jobID)
	o.progress.OnStage(jobID, StageRasterization)
	o.progress.OnProgress(jobID, pctRasterizeStart, StageRasterization)

	scratchDir, err := os.MkdirTemp("", "examcrop-job-*")
	if err != nil {
		m.SetFailed("internal_assert", fmt.Errorf("creating scratch directory: %w", err))
		o.progress.OnError(jobID, "internal_assert", err)
		return JobResult{Manifest: m}, err
	}
	defer func() { _ = os.RemoveAll(scratchDir) }()

	timer := common.NewNamedTimer("rasterize")
	pages, err := o.deps.Rasterizer.Rasterize(ctx, pdfPath, o.cfg.DPI)
	o.logger.Debug("rasterize done", "elapsed", timer.Stop())
	if err != nil {
		kind := "rasterize_failed"
		if errors.Is(err, context.DeadlineExceeded) {
			kind = "deadline_exceeded"
		}
		m.SetFailed(kind, err)
		o.progress.OnError(jobID, kind, err)
		return JobResult{Manifest: m}, err
	}
	if len(pages) == 0 {
		err := errors.New("pdf has zero pages")
		m.SetFailed("invalid_input", err)
		o.progress.OnError(jobID, "invalid_input", err)
		return JobResult{Manifest: m}, err
	}

	limiter := newRemoteLimiter(o.remoteConcurrency)

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			m.SetFailed("deadline_exceeded", err)
			o.progress.OnError(jobID, "deadline_exceeded", err)
			return JobResult{Manifest: m}, err
		}
		if err := o.processPage(ctx, jobID, page, limiter, m, scratchDir); err != nil {
			kind := failureKind(ctx, err)
			m.SetFailed(kind, err)
			o.progress.OnError(jobID, kind, err)
			return JobResult{Manifest: m}, err
		}
	}

	o.progress.OnStage(jobID, StageAssembly)
	o.progress.OnProgress(jobID, pctAssemblyStart, StageAssembly)
	m.Finalize()

	result, err := o.publish(m, scratchDir, outputRoot, jobID)
	o.progress.OnProgress(jobID, pctDone, StageAssembly)
	o.progress.OnComplete(jobID, string(m.Status))
	return result, err
}

// processPage lays out page's columns and drives each one through the
// per-column pipeline, recording results into m.
func (o *Orchestrator) processPage(ctx context.Context, jobID string, page raster.Page, limiter remoteLimiter, m *manifest.Manifest, scratchDir string) error {
	o.progress.OnStage(jobID, StageLayout)
	o.progress.OnProgress(jobID, pctLayoutStart, StageLayout)

	strips := layout.Analyze(page.Image, layout.DefaultOptions())
	for _, strip := range strips {
		colImg, err := crop.Crop(page.Image, strip.Rect)
		if err != nil {
			return fmt.Errorf("page %d column %d: cropping strip: %w", page.Index, strip.Index, err)
		}
		result, err := o.processColumn(ctx, jobID, page.Index, strip, colImg, limiter)
		if err != nil {
			return fmt.Errorf("page %d column %d: %w", page.Index, strip.Index, err)
		}
		if err := o.emitColumn(page.Index, strip, colImg, result, m, scratchDir); err != nil {
			return fmt.Errorf("page %d column %d: %w", page.Index, strip.Index, err)
		}
	}
	return nil
}

// processColumn runs stage 1 (and stage 2 if needed) for one column
// strip.
func (o *Orchestrator) processColumn(ctx context.Context, jobID string, pageIndex int, strip layout.Strip, colImg image.Image, limiter remoteLimiter) (ColumnResult, error) {
	result := ColumnResult{Page: pageIndex, Column: strip.Index, Sources: map[int]manifest.Source{}}

	o.progress.OnStage(jobID, StageLocalOCR)
	o.progress.OnProgress(jobID, pctLocalOCRStart, StageLocalOCR)

	localOpts := marker.DefaultOptions()
	localOpts.MaxMarkerXOffset = marker.ScaleOffsetForDPI(marker.DefaultMaxMarkerXOffset, o.cfg.DPI)
	localOpts.MinConfidence = o.cfg.MinLocalConfidence

	localBlocks, localMarkers, localErr := o.runLocalStage(ctx, colImg, localOpts)
	if localErr != nil {
		var engErr *ocr.Error
		if errors.As(localErr, &engErr) && engErr.Kind == ocr.FailurePermanent {
			result.State = StateFailed
			return result, fmt.Errorf("local OCR: %w", localErr)
		}
		result.State = StateFailed
		return result, fmt.Errorf("local OCR exhausted retries: %w", localErr)
	}
	result.State = StateLocalOCRDone

	expected := o.expectedSet(numbersOf(localMarkers))
	diagnosis := validator.Diagnose(numbersOf(localMarkers), expected)
	result.State = StateValidatedStage1

	// One relaxed-gate re-parse of the stage-1 blocks before escalating
	// to remote, skipped when no retry budget exists. The local engine
	// itself is deterministic, so only the marker gates move.
	if len(diagnosis.Missing) > 0 && o.cfg.MaxRetries > 0 {
		if relaxed := marker.Parse(localBlocks, 0, relaxOptions(localOpts)); len(relaxed) > len(localMarkers) {
			localMarkers = relaxed
			expected = o.expectedSet(numbersOf(localMarkers))
			diagnosis = validator.Diagnose(numbersOf(localMarkers), expected)
		}
	}

	finalMarkers := localMarkers
	if diagnosis.Status != validator.StatusOK && o.remoteAllowed() && len(diagnosis.Missing) > 0 {
		result.State = StateStage1Gaps
		merged, rc, rerr := o.runRemoteStage(ctx, jobID, colImg, strip, diagnosis.Missing, localMarkers, limiter)
		result.RemoteCalls = rc
		if rerr != nil {
			if ctx.Err() != nil {
				result.State = StateFailed
				return result, fmt.Errorf("remote OCR: %w", ctx.Err())
			}
			o.logger.Warn("remote OCR unavailable, completing partial", "page", pageIndex, "column", strip.Index, "error", rerr)
		} else {
			finalMarkers = sortMarkersByY(merged)
			result.State = StateReconciled
		}
		expected2 := expected
		if o.cfg.ExpectedProblemCount == 0 {
			expected2 = o.expectedSet(numbersOf(finalMarkers))
		}
		diagnosis = validator.Diagnose(numbersOf(finalMarkers), expected2)
		result.State = StateValidatedFinal
	}

	boundaries, err := boundary.Solve(finalMarkers, strip.Rect.W, strip.Rect.H)
	if err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("boundary solver: %w", err)
	}
	result.Boundaries = boundaries
	result.Missing = diagnosis.Missing
	for _, mk := range finalMarkers {
		if src := mk.Source; src == ocr.EngineRemote {
			result.Sources[mk.Number] = manifest.SourceRemote
		} else {
			result.Sources[mk.Number] = manifest.SourceLocal
		}
	}

	if diagnosis.Status == validator.StatusOK {
		result.State = StateCompleteOK
	} else {
		result.State = StateCompletePartial
	}
	return result, nil
}

func (o *Orchestrator) remoteAllowed() bool {
	return o.cfg.Strategy != config.StrategyLocalOnly
}

// expectedSet computes the numbers a column is expected to contain:
// the configured count's full range when expected_problem_count is
// set, otherwise the span {min(D), ..., max(D)} of this column's
// detected numbers (a right-hand column detecting 5..8 expects 5..8,
// not 1..8).
func (o *Orchestrator) expectedSet(detected []int) []int {
	if o.cfg.ExpectedProblemCount > 0 {
		return validator.ExpectedRange(o.cfg.ExpectedProblemCount)
	}
	return validator.ExpectedSpan(detected)
}

const (
	relaxedXOffsetBump     = 50
	relaxedConfidenceFloor = 0.2
)

// relaxOptions widens the stage-1 marker gates for the adjusted re-parse:
// +50 px on the position gate, -0.1 on the confidence floor, never
// dropping the floor below 0.2.
func relaxOptions(opts marker.Options) marker.Options {
	opts.MaxMarkerXOffset += relaxedXOffsetBump
	if opts.MinConfidence > relaxedConfidenceFloor {
		opts.MinConfidence -= 0.1
		if opts.MinConfidence < relaxedConfidenceFloor {
			opts.MinConfidence = relaxedConfidenceFloor
		}
	}
	return opts
}

func (o *Orchestrator) runLocalStage(ctx context.Context, colImg image.Image, opts marker.Options) ([]ocr.TextBlock, []marker.Marker, error) {
	resp, err := runWithRetry(ctx, func(ctx context.Context) (ocr.Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, LocalOCRTimeout)
		defer cancel()
		resp, err := o.deps.LocalEngine.Run(callCtx, colImg, ocr.DefaultHints(), o.cfg.DPI)
		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return resp, ocr.NewError(ocr.FailureTransient, fmt.Errorf("local engine: per-call timeout exceeded: %w", err))
		}
		return resp, err
	}, o.cfg.MaxRetries, o.sleep)
	if err != nil {
		return nil, nil, err
	}
	// colImg is the column strip already cropped out of the page, so the
	// local engine's blocks are reported column-relative (origin 0), not
	// in the full page's coordinate space.
	return resp.Blocks, marker.Parse(resp.Blocks, 0, opts), nil
}

// runRemoteStage runs the remote stage once for this column (transient
// engine failures are retried inside it by runWithRetry), reconciles
// its coordinates into the strip's pixel space, and merges the result
// with the surviving local markers. rc counts remote stages, not
// engine attempts, and is always 0 or 1.
func (o *Orchestrator) runRemoteStage(ctx context.Context, jobID string, colImg image.Image, strip layout.Strip, missing []int, localMarkers []marker.Marker, limiter remoteLimiter) ([]marker.Marker, int, error) {
	o.progress.OnStage(jobID, StageRemoteOCR)
	o.progress.OnProgress(jobID, pctRemoteOCRStart, StageRemoteOCR)

	if err := limiter.acquire(ctx); err != nil {
		return localMarkers, 0, fmt.Errorf("acquiring remote concurrency slot: %w", err)
	}
	defer limiter.release()

	missingSet := make(map[int]bool, len(missing))
	for _, n := range missing {
		missingSet[n] = true
	}

	resp, err := runWithRetry(ctx, func(ctx context.Context) (ocr.Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, RemoteOCRTimeout)
		defer cancel()
		resp, err := o.deps.RemoteEngine.Run(callCtx, colImg, ocr.DefaultHints(), o.cfg.DPI)
		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return resp, ocr.NewError(ocr.FailureTransient, fmt.Errorf("remote engine: per-call timeout exceeded: %w", err))
		}
		return resp, err
	}, o.cfg.MaxRetries, o.sleep)
	if err != nil {
		var engErr *ocr.Error
		if errors.As(err, &engErr) && engErr.Kind == ocr.FailureUnavailable {
			return localMarkers, 1, err
		}
		return localMarkers, 1, err
	}

	remoteOpts := marker.DefaultOptions()
	remoteOpts.MaxMarkerXOffset = marker.ScaleOffsetForDPI(marker.DefaultMaxMarkerXOffset, o.cfg.DPI)
	remoteOpts.MinConfidence = o.cfg.MinRemoteConfidence

	stripDims := geometry.Dims{W: strip.Rect.W, H: strip.Rect.H}
	gapMarkers, _, diverged, rerr := reconcileRemoteMarkers(resp.Blocks, stripDims, resp.PageDims, missingSet, remoteOpts)
	if rerr != nil {
		return localMarkers, 1, rerr
	}
	if diverged {
		o.logger.Warn("remote scale factors diverge beyond tolerance", "strip", strip.Index, "remote_dims", resp.PageDims, "strip_dims", stripDims)
	}

	return mergeMarkers(localMarkers, gapMarkers), 1, nil
}

// emitColumn crops every boundary in result into an image file under
// page_<k>/problems/ and records it in m.
func (o *Orchestrator) emitColumn(pageIndex int, strip layout.Strip, colImg image.Image, result ColumnResult, m *manifest.Manifest, scratchDir string) error {
	dir := filepath.Join(scratchDir, fmt.Sprintf("page_%d", pageIndex), "problems")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	problems := make([]manifest.Problem, 0, len(result.Boundaries))
	for _, b := range result.Boundaries {
		name := fmt.Sprintf("page%d_col_%d_prob_%02d.%s", pageIndex, strip.Index, b.ProblemNumber, o.format.Ext())
		path := filepath.Join(dir, name)
		f, err := os.Create(path) //nolint:gosec // path built from job-controlled indices and a fixed scratch dir
		if err != nil {
			return fmt.Errorf("creating problem image %s: %w", path, err)
		}
		err = crop.CropAndEncode(f, colImg, b.Rect, o.format)
		closeErr := f.Close()
		if err != nil {
			return fmt.Errorf("encoding problem image %s: %w", path, err)
		}
		if closeErr != nil {
			return fmt.Errorf("closing problem image %s: %w", path, closeErr)
		}
		problems = append(problems, manifest.Problem{
			Number: b.ProblemNumber,
			File:   filepath.ToSlash(filepath.Join(fmt.Sprintf("page_%d", pageIndex), "problems", name)),
			Source: result.Sources[b.ProblemNumber],
		})
	}

	m.SetColumn(pageIndex, manifest.Column{
		Column:   strip.Index,
		Problems: problems,
		Missing:  result.Missing,
	})
	return nil
}

// publish writes manifest.json into scratchDir, then (unless the job
// failed) renames scratchDir into outputRoot/jobID and archives it into
// outputRoot/jobID.zip. A FAILED job never reaches the rename, so
// outputRoot is left untouched.
func (o *Orchestrator) publish(m *manifest.Manifest, scratchDir, outputRoot, jobID string) (JobResult, error) {
	data, err := manifest.Marshal(m)
	if err != nil {
		return JobResult{Manifest: m}, err
	}
	if err := os.WriteFile(filepath.Join(scratchDir, "manifest.json"), data, 0o644); err != nil { //nolint:gosec // manifest is non-sensitive job metadata
		return JobResult{Manifest: m}, fmt.Errorf("writing manifest: %w", err)
	}

	if m.Status == manifest.StatusFailed {
		return JobResult{Manifest: m}, nil
	}

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return JobResult{Manifest: m}, fmt.Errorf("creating output root: %w", err)
	}
	publishedDir := filepath.Join(outputRoot, jobID)
	if err := os.RemoveAll(publishedDir); err != nil {
		return JobResult{Manifest: m}, fmt.Errorf("clearing previous output: %w", err)
	}
	if err := os.Rename(scratchDir, publishedDir); err != nil {
		return JobResult{Manifest: m}, fmt.Errorf("publishing output: %w", err)
	}

	archivePath := filepath.Join(outputRoot, jobID+".zip")
	af, err := os.Create(archivePath) //nolint:gosec // path built from a job-controlled output root and id
	if err != nil {
		return JobResult{Manifest: m, OutputDir: publishedDir}, fmt.Errorf("creating archive: %w", err)
	}
	defer func() { _ = af.Close() }()
	if err := zipper.ArchiveDir(af, publishedDir); err != nil {
		return JobResult{Manifest: m, OutputDir: publishedDir}, err
	}

	return JobResult{Manifest: m, OutputDir: publishedDir, ArchivePath: archivePath}, nil
}

// sortMarkersByY restores ascending-y order after mergeMarkers, which
// iterates a map and so returns markers in no defined order.
func sortMarkersByY(markers []marker.Marker) []marker.Marker {
	sorted := make([]marker.Marker, len(markers))
	copy(sorted, markers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Box.Y < sorted[j].Box.Y })
	return sorted
}

// failureKind classifies a fatal mid-job error: an expired or canceled
// job context is deadline_exceeded, an engine failure that exhausted
// its budget is ocr_failed, and anything else is an internal invariant
// violation.
func failureKind(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return "deadline_exceeded"
	}
	var engErr *ocr.Error
	if errors.As(err, &engErr) {
		return "ocr_failed"
	}
	return "internal_assert"
}

func numbersOf(markers []marker.Marker) []int {
	out := make([]int, len(markers))
	for i, m := range markers {
		out[i] = m.Number
	}
	return out
}
