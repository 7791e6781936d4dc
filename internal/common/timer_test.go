package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerMeasuresElapsed(t *testing.T) {
	timer := NewNamedTimer("rasterize")
	assert.Equal(t, "rasterize", timer.Name())

	time.Sleep(10 * time.Millisecond)

	d := timer.Stop()
	assert.GreaterOrEqual(t, d, 10*time.Millisecond)
	assert.Equal(t, d, timer.Elapsed())
	assert.Contains(t, timer.String(), "rasterize")
}

func TestUnnamedTimerString(t *testing.T) {
	timer := NewTimer()
	timer.Stop()
	assert.Empty(t, timer.Name())
	assert.NotEmpty(t, timer.String())
}
