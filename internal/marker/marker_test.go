package marker_test

import (
	"testing"

	"github.com/kpark/examsplit/internal/geometry"
	"github.com/kpark/examsplit/internal/marker"
	"github.com/kpark/examsplit/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(text string, x, y int, conf float64) ocr.TextBlock {
	r, err := geometry.NewRect(x, y, 20, 20)
	if err != nil {
		panic(err)
	}
	return ocr.TextBlock{Text: text, Box: r, Confidence: conf, Engine: ocr.EngineLocal}
}

func TestParseDigitDotPattern(t *testing.T) {
	blocks := []ocr.TextBlock{block("3.", 10, 100, 0.9)}
	markers := marker.Parse(blocks, 0, marker.DefaultOptions())
	require.Len(t, markers, 1)
	assert.Equal(t, 3, markers[0].Number)
}

func TestParseCircledDigit(t *testing.T) {
	blocks := []ocr.TextBlock{block("①", 5, 50, 0.8)}
	markers := marker.Parse(blocks, 0, marker.DefaultOptions())
	require.Len(t, markers, 1)
	assert.Equal(t, 1, markers[0].Number)
}

func TestParseBracketedDigit(t *testing.T) {
	blocks := []ocr.TextBlock{block("[7]", 5, 50, 0.8), block("(12)", 5, 80, 0.8)}
	markers := marker.Parse(blocks, 0, marker.DefaultOptions())
	require.Len(t, markers, 2)
	assert.Equal(t, 7, markers[0].Number)
	assert.Equal(t, 12, markers[1].Number)
}

func TestParseRejectsScoreMarker(t *testing.T) {
	blocks := []ocr.TextBlock{block("[3점]", 500, 1500, 0.9)}
	markers := marker.Parse(blocks, 0, marker.DefaultOptions())
	assert.Empty(t, markers)
}

func TestParsePositionGateRejectsFarMarkers(t *testing.T) {
	opts := marker.DefaultOptions()
	// columnOriginX=0, MaxMarkerXOffset default 300; a "1." that the
	// digit-dot grammar accepts is still rejected at x=500.
	blocks := []ocr.TextBlock{block("1.", 500, 200, 0.9)}
	markers := marker.Parse(blocks, 0, opts)
	assert.Empty(t, markers)
}

func TestParseRejectsOutOfRangeNumber(t *testing.T) {
	blocks := []ocr.TextBlock{block("101.", 5, 10, 0.9)}
	markers := marker.Parse(blocks, 0, marker.DefaultOptions())
	assert.Empty(t, markers)
}

func TestParseDedupePrefersHigherConfidence(t *testing.T) {
	blocks := []ocr.TextBlock{
		block("4.", 5, 100, 0.6),
		block("4.", 5, 105, 0.9),
	}
	markers := marker.Parse(blocks, 0, marker.DefaultOptions())
	require.Len(t, markers, 1)
	assert.InDelta(t, 0.9, markers[0].Confidence, 1e-9)
}

func TestParseDedupeTieBreaksSmallerY(t *testing.T) {
	blocks := []ocr.TextBlock{
		block("4.", 5, 200, 0.9),
		block("4.", 5, 100, 0.9),
	}
	markers := marker.Parse(blocks, 0, marker.DefaultOptions())
	require.Len(t, markers, 1)
	assert.Equal(t, 100, markers[0].Box.Y)
}

func TestParseOrdersByAscendingY(t *testing.T) {
	blocks := []ocr.TextBlock{
		block("2.", 5, 300, 0.9),
		block("1.", 5, 100, 0.9),
	}
	markers := marker.Parse(blocks, 0, marker.DefaultOptions())
	require.Len(t, markers, 2)
	assert.Equal(t, 1, markers[0].Number)
	assert.Equal(t, 2, markers[1].Number)
}

func TestParseConfidenceGate(t *testing.T) {
	opts := marker.DefaultOptions()
	opts.MinConfidence = 0.5
	blocks := []ocr.TextBlock{block("3.", 5, 100, 0.2)}
	markers := marker.Parse(blocks, 0, opts)
	assert.Empty(t, markers)
}

func TestScaleOffsetForDPI(t *testing.T) {
	assert.Equal(t, 300, marker.ScaleOffsetForDPI(300, 200))
	assert.Equal(t, 450, marker.ScaleOffsetForDPI(300, 300))
}
