package orchestrator

import "log/slog"

// ProgressCallback lets a caller observe job progress as it moves
// through the pipeline's stages.
type ProgressCallback interface {
	// OnStage is called whenever the job enters a new named stage.
	OnStage(jobID string, stage string)
	// OnProgress is called with a percentage in [0,100]; each stage
	// owns a fixed bucket of the range.
	OnProgress(jobID string, percentage int, stage string)
	// OnComplete is called once, when a job that did not fail runs
	// through assembly; it is not called for a failed job.
	OnComplete(jobID string, status string)
	// OnError is called once with the error kind when the job fails;
	// non-fatal conditions (such as an unavailable remote engine) are
	// logged, not reported here.
	OnError(jobID string, kind string, err error)
}

// NoOpProgressCallback implements ProgressCallback but does nothing,
// the default when a caller doesn't need progress reporting.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStage(string, string)         {}
func (NoOpProgressCallback) OnProgress(string, int, string) {}
func (NoOpProgressCallback) OnComplete(string, string)      {}
func (NoOpProgressCallback) OnError(string, string, error)  {}

// Stage labels and the percentage bucket each occupies.
const (
	StageRasterization = "rasterization" // 0-10
	StageLayout        = "layout"        // 10-30
	StageLocalOCR      = "local_ocr"     // 30-60
	StageRemoteOCR     = "remote_ocr"    // 60-90
	StageAssembly      = "assembly"      // 90-100
)

const (
	pctRasterizeStart = 0
	pctLayoutStart    = 10
	pctLocalOCRStart  = 30
	pctRemoteOCRStart = 60
	pctAssemblyStart  = 90
	pctDone           = 100
)

// LoggingProgress reports job progress through slog.
type LoggingProgress struct {
	logger *slog.Logger
}

// NewLoggingProgress builds a LoggingProgress; a nil logger falls back
// to slog.Default().
func NewLoggingProgress(logger *slog.Logger) *LoggingProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingProgress{logger: logger}
}

func (l *LoggingProgress) OnStage(jobID, stage string) {
	l.logger.Info("stage started", "job_id", jobID, "stage", stage)
}

func (l *LoggingProgress) OnProgress(jobID string, percentage int, stage string) {
	l.logger.Debug("progress", "job_id", jobID, "stage", stage, "percent", percentage)
}

func (l *LoggingProgress) OnComplete(jobID, status string) {
	l.logger.Info("job complete", "job_id", jobID, "status", status)
}

func (l *LoggingProgress) OnError(jobID, kind string, err error) {
	l.logger.Warn("job error", "job_id", jobID, "kind", kind, "error", err)
}
