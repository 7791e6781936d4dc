// Package manifest produces manifest.json: per-page, per-column
// problem listings, a job status, and a structured error list.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the job-level (and, reused, column-level) outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Source identifies which OCR engine produced a listed problem.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Problem is one emitted problem image entry.
type Problem struct {
	Number int    `json:"number"`
	File   string `json:"file"`
	Source Source `json:"source"`
}

// Column is one column's result within a page.
type Column struct {
	Column   int       `json:"column"`
	Problems []Problem `json:"problems"`
	Missing  []int     `json:"missing"`
}

// Page is one page's result.
type Page struct {
	Page    int      `json:"page"`
	Columns []Column `json:"columns"`
}

// ErrorEntry is one structured error surfaced to the job façade.
type ErrorEntry struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Manifest is the full manifest.json document.
type Manifest struct {
	JobID  string       `json:"job_id"`
	Pages  []Page       `json:"pages"`
	Status Status       `json:"status"`
	Errors []ErrorEntry `json:"errors"`
}

// New constructs an empty manifest for jobID, pages populated by the
// caller as columns complete.
func New(jobID string) *Manifest {
	return &Manifest{JobID: jobID, Status: StatusOK}
}

// AddError appends a structured error and never silently drops it.
func (m *Manifest) AddError(kind string, err error) {
	if err == nil {
		return
	}
	m.Errors = append(m.Errors, ErrorEntry{Kind: kind, Message: err.Error()})
}

// page returns (creating if needed) the Page entry for pageIndex, kept
// in ascending order.
func (m *Manifest) page(pageIndex int) *Page {
	for i := range m.Pages {
		if m.Pages[i].Page == pageIndex {
			return &m.Pages[i]
		}
	}
	m.Pages = append(m.Pages, Page{Page: pageIndex})
	// keep pages ascending by index so the manifest reads in page order
	// regardless of the (possibly parallel) completion order upstream.
	for i := len(m.Pages) - 1; i > 0 && m.Pages[i].Page < m.Pages[i-1].Page; i-- {
		m.Pages[i], m.Pages[i-1] = m.Pages[i-1], m.Pages[i]
	}
	return m.page(pageIndex)
}

// SetColumn records (or replaces) one page's column result. Nil
// problem/missing slices are normalized so they serialize as `[]`,
// never null.
func (m *Manifest) SetColumn(pageIndex int, col Column) {
	if col.Problems == nil {
		col.Problems = []Problem{}
	}
	if col.Missing == nil {
		col.Missing = []int{}
	}
	p := m.page(pageIndex)
	for i := range p.Columns {
		if p.Columns[i].Column == col.Column {
			p.Columns[i] = col
			return
		}
	}
	p.Columns = append(p.Columns, col)
	for i := len(p.Columns) - 1; i > 0 && p.Columns[i].Column < p.Columns[i-1].Column; i-- {
		p.Columns[i], p.Columns[i-1] = p.Columns[i-1], p.Columns[i]
	}
}

// Finalize computes the job-level status from every recorded column:
// StatusFailed overrides everything else (the caller must have already
// set it via SetFailed on a fatal path); otherwise the job is
// StatusOK unless any column has a non-empty Missing set, in which case
// it is StatusPartial.
func (m *Manifest) Finalize() {
	if m.Status == StatusFailed {
		return
	}
	for _, p := range m.Pages {
		for _, c := range p.Columns {
			if len(c.Missing) > 0 {
				m.Status = StatusPartial
				return
			}
		}
	}
	m.Status = StatusOK
}

// SetFailed marks the job as failed. A failed job produces no partial
// output; callers must not also publish page/column data when calling
// this.
func (m *Manifest) SetFailed(kind string, err error) {
	m.Status = StatusFailed
	m.AddError(kind, err)
}

// MarshalJSON is provided directly (rather than relying on struct tags
// alone) so Pages and Errors never serialize as JSON null: a nil slice
// must still round-trip as `[]`.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type alias Manifest
	a := alias(*m)
	if a.Pages == nil {
		a.Pages = []Page{}
	}
	if a.Errors == nil {
		a.Errors = []ErrorEntry{}
	}
	return json.Marshal(a)
}

// ExitCode maps a job status to its CLI exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusOK:
		return 0
	case StatusPartial:
		return 10
	case StatusFailed:
		return 20
	default:
		return 20
	}
}

// Marshal renders the manifest as indented JSON.
func Marshal(m *Manifest) ([]byte, error) {
	if m == nil {
		return nil, errors.New("manifest: nil manifest")
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("manifest: marshaling: %w", err)
	}
	return b, nil
}
