// Package orchestrator implements the two-stage OCR orchestrator: the
// state machine that drives one job from "PDF + config" to
// boundaries-per-column and rendered problem images, escalating to
// remote OCR only for columns with detection gaps, with bounded
// retries and a hard guarantee of termination.
package orchestrator

import (
	"github.com/kpark/examsplit/internal/boundary"
	"github.com/kpark/examsplit/internal/manifest"
)

// State is one column's position in the state machine.
type State int

const (
	StateInit State = iota
	StateRasterized
	StateLaidOut
	StateLocalOCRDone
	StateValidatedStage1
	StateStage1Gaps
	StateRemoteOCRDone
	StateReconciled
	StateValidatedFinal
	StateCompleteOK
	StateCompletePartial
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRasterized:
		return "RASTERIZED"
	case StateLaidOut:
		return "LAID_OUT"
	case StateLocalOCRDone:
		return "LOCAL_OCR_DONE"
	case StateValidatedStage1:
		return "VALIDATED_STAGE1"
	case StateStage1Gaps:
		return "STAGE1_GAPS"
	case StateRemoteOCRDone:
		return "REMOTE_OCR_DONE"
	case StateReconciled:
		return "RECONCILED"
	case StateValidatedFinal:
		return "VALIDATED_FINAL"
	case StateCompleteOK:
		return "COMPLETE_OK"
	case StateCompletePartial:
		return "COMPLETE_PARTIAL"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ColumnResult is the final outcome of processing one (page, column).
type ColumnResult struct {
	Page        int
	Column      int
	State       State
	Boundaries  []boundary.Boundary
	Sources     map[int]manifest.Source // problem number -> which engine produced its marker
	Missing     []int
	RemoteCalls int // always 0 or 1: the remote stage runs at most once per column per job
}

// JobResult is the accumulated outcome of one ProcessJob call.
type JobResult struct {
	Manifest    *manifest.Manifest
	OutputDir   string // populated only when Manifest.Status != StatusFailed
	ArchivePath string
}
