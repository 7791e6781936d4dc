// Package ocr defines the OCR engine contract shared by the local and
// remote recognizers: a single run(image, hints, dpi) → response
// operation, plus the failure taxonomy the orchestrator branches on.
package ocr

import (
	"context"
	"image"
	"time"

	"github.com/kpark/examsplit/internal/geometry"
)

// EngineTag identifies which engine produced a TextBlock, carried on
// every block so a merged marker list can explain its provenance.
type EngineTag string

const (
	EngineLocal  EngineTag = "local"
	EngineRemote EngineTag = "remote"
)

// TextBlock is one OCR output atom: recognized text, its bbox in the
// producing engine's own pixel space, a confidence in [0,1], and the
// engine tag.
type TextBlock struct {
	Text       string
	Box        geometry.Rect
	Confidence float64
	Engine     EngineTag
}

// Response is what one run() call returns.
type Response struct {
	Blocks   []TextBlock
	EngineID string
	// PageDims is the engine's own page-space dimensions. It may differ
	// from the input image's pixel dimensions; the local engine always
	// reports PageDims == the input image's dims.
	PageDims geometry.Dims
	Elapsed  time.Duration
}

// Hints carries the language hints both engines must accept.
type Hints struct {
	Languages []string // at minimum {"ko", "en"}
}

// DefaultHints returns the Korean+English hint set every engine must accept.
func DefaultHints() Hints {
	return Hints{Languages: []string{"ko", "en"}}
}

// FailureKind classifies an engine failure for the orchestrator's retry
// policy.
type FailureKind int

const (
	// FailureTransient is retried up to max_retries with backoff.
	FailureTransient FailureKind = iota
	// FailurePermanent is never retried; it escalates immediately.
	FailurePermanent
	// FailureUnavailable means credentials are missing or the engine is disabled.
	FailureUnavailable
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailurePermanent:
		return "permanent"
	case FailureUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error wraps an engine failure with its classification.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// NewError constructs a classified engine Error.
func NewError(kind FailureKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Engine is the contract both the local and remote recognizers satisfy.
// Implementations must never panic or return an error for unrecognized
// content: an empty Blocks slice is always a valid, successful response.
type Engine interface {
	// Run recognizes text in image at the given dpi, honoring hints.
	// Errors are always *Error so callers can branch on FailureKind.
	Run(ctx context.Context, img image.Image, hints Hints, dpi int) (Response, error)
	// ID identifies the engine for logging/manifest provenance.
	ID() string
}
