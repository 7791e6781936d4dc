// Package common holds small helpers shared across the pipeline.
package common

import (
	"fmt"
	"time"
)

// Timer measures the wall-clock duration of one pipeline stage.
type Timer struct {
	name    string
	start   time.Time
	elapsed time.Duration
}

// NewNamedTimer starts a timer labeled with a stage name.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// NewTimer starts an unnamed timer.
func NewTimer() *Timer {
	return NewNamedTimer("")
}

// Stop freezes the timer and returns the elapsed duration. Stopping an
// already-stopped timer extends the measurement to the second Stop.
func (t *Timer) Stop() time.Duration {
	t.elapsed = time.Since(t.start)
	return t.elapsed
}

// Elapsed returns the duration recorded by Stop.
func (t *Timer) Elapsed() time.Duration {
	return t.elapsed
}

// Name returns the stage label, empty for unnamed timers.
func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) String() string {
	if t.name == "" {
		return t.elapsed.String()
	}
	return fmt.Sprintf("%s: %v", t.name, t.elapsed)
}
