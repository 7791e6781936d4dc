// Package boundary implements the boundary solver: given an ordered
// list of markers within one column strip, compute non-overlapping
// rectangles covering each problem.
package boundary

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kpark/examsplit/internal/geometry"
	"github.com/kpark/examsplit/internal/marker"
)

// Boundary is the final rectangle representing one problem: the unit
// that gets cropped and emitted.
type Boundary struct {
	ProblemNumber int
	Rect          geometry.Rect
}

// ErrInternalAssert is returned when a computed boundary violates an
// invariant the solver itself guarantees by construction; surfacing it
// indicates a bug upstream (a marker list that wasn't actually sorted,
// an impossible strip size), never a normal failure mode.
var ErrInternalAssert = errors.New("boundary: internal invariant violated")

// Solve computes one rectangle per marker within a column strip of the
// given width and height. Markers need not be pre-sorted; Solve sorts
// by ascending Y itself rather than trusting the caller.
//
// The final marker's rectangle always extends to y = stripHeight.
// There is deliberately no gap-based truncation on the last problem of
// a column: a trailing content gap must never clip the final problem's
// answer choices.
func Solve(markers []marker.Marker, stripWidth, stripHeight int) ([]Boundary, error) {
	if len(markers) == 0 {
		return nil, nil
	}
	if stripWidth <= 0 || stripHeight <= 0 {
		return nil, fmt.Errorf("boundary: invalid strip size %dx%d", stripWidth, stripHeight)
	}

	sorted := make([]marker.Marker, len(markers))
	copy(sorted, markers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Box.Y < sorted[j].Box.Y })

	boundaries := make([]Boundary, len(sorted))
	for i, m := range sorted {
		top := m.Box.Y
		bottom := stripHeight
		if i < len(sorted)-1 {
			bottom = sorted[i+1].Box.Y
		}
		if bottom <= top {
			return nil, fmt.Errorf("%w: problem %d has non-positive height (top=%d, bottom=%d)", ErrInternalAssert, m.Number, top, bottom)
		}
		rect, err := geometry.NewRect(0, top, stripWidth, bottom-top)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInternalAssert, err)
		}
		boundaries[i] = Boundary{ProblemNumber: m.Number, Rect: rect}
	}

	if err := validate(boundaries, stripWidth, stripHeight); err != nil {
		return nil, err
	}
	return boundaries, nil
}

// validate re-checks every invariant Solve promises (containment,
// no overlap, ascending numbers, last rect reaching the strip bottom)
// so a caller never has to trust the construction above blindly.
func validate(boundaries []Boundary, stripWidth, stripHeight int) error {
	for i, b := range boundaries {
		if !b.Rect.FitsWithin(stripWidth, stripHeight) {
			return fmt.Errorf("%w: problem %d rect %+v does not fit strip %dx%d", ErrInternalAssert, b.ProblemNumber, b.Rect, stripWidth, stripHeight)
		}
		if i > 0 {
			prev := boundaries[i-1]
			if b.ProblemNumber <= prev.ProblemNumber {
				return fmt.Errorf("%w: problem numbers not strictly ascending (%d after %d)", ErrInternalAssert, b.ProblemNumber, prev.ProblemNumber)
			}
			if b.Rect.Y < prev.Rect.Y {
				return fmt.Errorf("%w: problem %d starts before problem %d", ErrInternalAssert, b.ProblemNumber, prev.ProblemNumber)
			}
			if prev.Rect.OverlapsY(b.Rect) {
				return fmt.Errorf("%w: problem %d overlaps problem %d", ErrInternalAssert, prev.ProblemNumber, b.ProblemNumber)
			}
		}
	}
	if last := boundaries[len(boundaries)-1]; last.Rect.Bottom() != stripHeight {
		return fmt.Errorf("%w: last problem %d does not extend to strip bottom (bottom=%d, want %d)", ErrInternalAssert, last.ProblemNumber, last.Rect.Bottom(), stripHeight)
	}
	return nil
}
