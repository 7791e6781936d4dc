// Package ocrtest provides a scriptable ocr.Engine double for exercising
// the orchestrator's retry and reconciliation logic without a real
// recognizer.
package ocrtest

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/kpark/examsplit/internal/ocr"
)

// Mock is a scriptable ocr.Engine. Responses (and optionally errors) are
// consumed in order from Script on each call to Run; once exhausted the
// last entry repeats.
type Mock struct {
	Script []Call
	IDTag  string

	calls atomic.Int64
}

// Call is one scripted Run() outcome.
type Call struct {
	Response ocr.Response
	Err      error
}

// New builds a Mock engine that always returns resp, nil.
func New(id string, resp ocr.Response) *Mock {
	return &Mock{IDTag: id, Script: []Call{{Response: resp}}}
}

func (m *Mock) ID() string {
	if m.IDTag != "" {
		return m.IDTag
	}
	return "mock"
}

// CallCount reports how many times Run has been invoked.
func (m *Mock) CallCount() int { return int(m.calls.Load()) }

func (m *Mock) Run(ctx context.Context, _ image.Image, _ ocr.Hints, _ int) (ocr.Response, error) {
	n := m.calls.Add(1) - 1
	if err := ctx.Err(); err != nil {
		return ocr.Response{}, ocr.NewError(ocr.FailureTransient, err)
	}
	if len(m.Script) == 0 {
		return ocr.Response{}, nil
	}
	idx := int(n)
	if idx >= len(m.Script) {
		idx = len(m.Script) - 1
	}
	c := m.Script[idx]
	return c.Response, c.Err
}
