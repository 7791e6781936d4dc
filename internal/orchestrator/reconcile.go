package orchestrator

import (
	"fmt"
	"math"

	"github.com/kpark/examsplit/internal/geometry"
	"github.com/kpark/examsplit/internal/marker"
	"github.com/kpark/examsplit/internal/ocr"
)

// ScaleTolerance is the maximum allowed relative difference between a
// remote response's x and y scale factors before a warning is logged;
// a larger divergence suggests the remote rasterized at a different
// aspect ratio than the strip it was given.
const ScaleTolerance = 0.05

// ScaleFactors is the per-axis scale from a remote engine's declared
// page space into the local column strip's pixel space.
type ScaleFactors struct {
	X, Y float64
}

// computeScale derives (s_x, s_y) = stripDims / remotePageDims and
// reports whether the two factors diverge by more than ScaleTolerance.
func computeScale(stripDims, remotePageDims geometry.Dims) (ScaleFactors, bool, error) {
	if remotePageDims.W <= 0 || remotePageDims.H <= 0 {
		return ScaleFactors{}, false, fmt.Errorf("orchestrator: remote engine reported non-positive page dims %+v", remotePageDims)
	}
	sx := float64(stripDims.W) / float64(remotePageDims.W)
	sy := float64(stripDims.H) / float64(remotePageDims.H)
	avg := (sx + sy) / 2
	rel := math.Abs(sx-sy) / avg
	return ScaleFactors{X: sx, Y: sy}, rel > ScaleTolerance, nil
}

// scaleBlock maps one remote text block's bbox into the local column
// strip's pixel space using the given scale factors.
func scaleBlock(b ocr.TextBlock, s ScaleFactors) ocr.TextBlock {
	b.Box = geometry.Rect{
		X: int(math.Round(float64(b.Box.X) * s.X)),
		Y: int(math.Round(float64(b.Box.Y) * s.Y)),
		W: int(math.Round(float64(b.Box.W) * s.X)),
		H: int(math.Round(float64(b.Box.H) * s.Y)),
	}
	if b.Box.W <= 0 {
		b.Box.W = 1
	}
	if b.Box.H <= 0 {
		b.Box.H = 1
	}
	b.Engine = ocr.EngineRemote
	return b
}

// reconcileRemoteMarkers scales every remote block into the strip's
// pixel space, clamps it to the strip's extent, parses markers from
// the scaled blocks, and keeps only those whose number is in the gap
// set `missing`.
func reconcileRemoteMarkers(blocks []ocr.TextBlock, stripDims, remotePageDims geometry.Dims, missing map[int]bool, opts marker.Options) ([]marker.Marker, ScaleFactors, bool, error) {
	scale, diverged, err := computeScale(stripDims, remotePageDims)
	if err != nil {
		return nil, scale, false, err
	}

	scaled := make([]ocr.TextBlock, len(blocks))
	for i, b := range blocks {
		sb := scaleBlock(b, scale)
		sb.Box = sb.Box.Clamp(stripDims.W, stripDims.H)
		scaled[i] = sb
	}

	parsed := marker.Parse(scaled, 0, opts)
	var gapMarkers []marker.Marker
	for _, m := range parsed {
		if missing[m.Number] {
			gapMarkers = append(gapMarkers, m)
		}
	}
	return gapMarkers, scale, diverged, nil
}

// mergeMarkers merges reconciled remote markers into the surviving
// local markers. On a number collision, the higher-confidence marker
// wins; ties break toward remote.
func mergeMarkers(local, remote []marker.Marker) []marker.Marker {
	best := make(map[int]marker.Marker, len(local)+len(remote))
	for _, m := range local {
		best[m.Number] = m
	}
	for _, m := range remote {
		cur, ok := best[m.Number]
		if !ok || m.Confidence >= cur.Confidence {
			best[m.Number] = m
		}
	}
	out := make([]marker.Marker, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	return out
}
