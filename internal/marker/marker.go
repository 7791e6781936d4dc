// Package marker implements the problem-number marker parser: turning
// raw OCR text blocks into typed problem markers, applying the
// position gate, confidence gate, and circled-digit / bracket
// grammars, then deduplicating and ordering the result.
package marker

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kpark/examsplit/internal/geometry"
	"github.com/kpark/examsplit/internal/ocr"
	"golang.org/x/text/width"
)

const (
	// DefaultMinProblemNumber and DefaultMaxProblemNumber bound valid
	// problem numbers; anything outside is OCR noise.
	DefaultMinProblemNumber = 1
	DefaultMaxProblemNumber = 100

	// DefaultMaxMarkerXOffset is MAX_MARKER_X_OFFSET at the reference
	// DPI (200); callers scale it with ScaleOffsetForDPI.
	DefaultMaxMarkerXOffset = 300
	referenceDPI            = 200
)

// Marker is a typed problem-number marker.
type Marker struct {
	Number     int
	Box        geometry.Rect
	Confidence float64
	Source     ocr.EngineTag
}

// Options configures one Parse call.
type Options struct {
	MinNumber        int
	MaxNumber        int
	MaxMarkerXOffset int // pixels, measured from the column strip's left edge
	MinConfidence    float64
}

// DefaultOptions returns the defaults at the reference DPI.
func DefaultOptions() Options {
	return Options{
		MinNumber:        DefaultMinProblemNumber,
		MaxNumber:        DefaultMaxProblemNumber,
		MaxMarkerXOffset: DefaultMaxMarkerXOffset,
		MinConfidence:    0,
	}
}

// ScaleOffsetForDPI scales the position gate linearly with DPI
// relative to the 200 DPI reference, so the same physical margin is
// gated regardless of rasterization resolution.
func ScaleOffsetForDPI(baseOffset, dpi int) int {
	if dpi <= 0 {
		return baseOffset
	}
	return baseOffset * dpi / referenceDPI
}

var (
	digitDotPattern = regexp.MustCompile(`^(\d{1,3})[.,]`)
	bracketPattern  = regexp.MustCompile(`^[\[(](\d{1,3})[\])]$`)
)

// circledDigits maps ①..⑳ (U+2460-U+2473) to 1..20.
var circledDigits = func() map[rune]int {
	m := make(map[rune]int, 20)
	for i := 0; i < 20; i++ {
		m[rune(0x2460+i)] = i + 1
	}
	return m
}()

// Parse identifies problem-number markers among blocks, all taken from
// one column strip whose left edge is at columnOriginX in the blocks'
// shared coordinate space. Patterns are tried in order: digit+punct,
// circled digit, bracketed digit; first match wins.
func Parse(blocks []ocr.TextBlock, columnOriginX int, opts Options) []Marker {
	var markers []Marker
	for _, b := range blocks {
		if b.Confidence < opts.MinConfidence {
			continue
		}
		xOffset := b.Box.X - columnOriginX
		if xOffset < 0 || xOffset > opts.MaxMarkerXOffset {
			continue
		}
		n, ok := matchNumber(b.Text)
		if !ok {
			continue
		}
		if n < opts.MinNumber || n > opts.MaxNumber {
			continue
		}
		markers = append(markers, Marker{
			Number:     n,
			Box:        b.Box,
			Confidence: b.Confidence,
			Source:     b.Engine,
		})
	}

	markers = dedupe(markers)
	sort.Slice(markers, func(i, j int) bool { return markers[i].Box.Y < markers[j].Box.Y })
	return markers
}

// matchNumber tries the three marker grammars against one block's
// trimmed text, returning the parsed number on the first match.
func matchNumber(text string) (int, bool) {
	trimmed := strings.TrimSpace(width.Fold.String(text))
	if trimmed == "" {
		return 0, false
	}

	if m := digitDotPattern.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, true
		}
	}

	if runes := []rune(trimmed); len(runes) > 0 {
		if n, ok := circledDigits[runes[0]]; ok {
			return n, true
		}
	}

	if m := bracketPattern.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, true
		}
	}

	return 0, false
}

// dedupe keeps, per problem number, the marker with the highest
// confidence; ties break toward the smaller bbox.y.
func dedupe(markers []Marker) []Marker {
	best := make(map[int]Marker, len(markers))
	for _, m := range markers {
		cur, ok := best[m.Number]
		if !ok {
			best[m.Number] = m
			continue
		}
		if m.Confidence > cur.Confidence ||
			(m.Confidence == cur.Confidence && m.Box.Y < cur.Box.Y) {
			best[m.Number] = m
		}
	}
	out := make([]Marker, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	return out
}
