// Package geometry provides the pixel-space primitives shared by every
// stage of the extraction pipeline: points, rectangles, and the
// containment checks every downstream stage relies on.
package geometry

import "fmt"

// Point is an integer pixel coordinate relative to its containing image's
// top-left origin.
type Point struct {
	X int
	Y int
}

// Rect is an axis-aligned pixel rectangle (a bounding box).
// Construction guarantees W > 0 and H > 0; callers that need to
// additionally assert containment within an enclosing image use
// FitsWithin.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// NewRect builds a Rect, rejecting non-positive dimensions.
func NewRect(x, y, w, h int) (Rect, error) {
	if w <= 0 || h <= 0 {
		return Rect{}, fmt.Errorf("geometry: invalid rect %dx%d at (%d,%d): width and height must be > 0", w, h, x, y)
	}
	if x < 0 || y < 0 {
		return Rect{}, fmt.Errorf("geometry: invalid rect origin (%d,%d): must be non-negative", x, y)
	}
	return Rect{X: x, Y: y, W: w, H: h}, nil
}

// Right returns the exclusive x-bound (x + w).
func (r Rect) Right() int { return r.X + r.W }

// Bottom returns the exclusive y-bound (y + h).
func (r Rect) Bottom() int { return r.Y + r.H }

// FitsWithin reports whether r lies entirely inside an image of the
// given dimensions.
func (r Rect) FitsWithin(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Right() <= width && r.Bottom() <= height
}

// OverlapsY reports whether two rects' y-ranges overlap (used by the
// boundary solver's no-overlap invariant; touching ranges, where
// a.Bottom() == b.Y, are not considered an overlap).
func (r Rect) OverlapsY(other Rect) bool {
	return r.Y < other.Bottom() && other.Y < r.Bottom()
}

// Clamp restricts r to lie within [0,width) x [0,height), shrinking
// edges that fall outside. Used by consumers (e.g. the coordinate
// reconciler) that must guarantee containment after a computation that
// could otherwise round outside the target extent.
func (r Rect) Clamp(width, height int) Rect {
	x0, y0 := clamp(r.X, 0, width), clamp(r.Y, 0, height)
	x1, y1 := clamp(r.Right(), 0, width), clamp(r.Bottom(), 0, height)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	w, h := x1-x0, y1-y0
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return Rect{X: x0, Y: y0, W: w, H: h}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Dims is a width/height pair, used for page and page-space
// dimensions (image pixel dims, or a remote engine's declared
// page_dims).
type Dims struct {
	W int
	H int
}
