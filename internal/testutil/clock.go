// Package testutil holds deterministic stand-ins for wall time and run IDs.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of a SteppingClock.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// SteppingClock is a wall clock that advances by a fixed step on every
// read. Two runs driven by fresh clocks observe identical timestamps and
// measured durations.
//
// Implements trace.WallClock. Safe for concurrent use.
type SteppingClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	reads int64
}

// NewSteppingClock returns a clock starting at Epoch. The first Now returns
// Epoch, each later call one step further.
func NewSteppingClock(step time.Duration) *SteppingClock {
	return NewSteppingClockAt(Epoch, step)
}

// NewSteppingClockAt returns a clock starting at start.
func NewSteppingClockAt(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{start: start, step: step}
}

func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.reads) * c.step)
	c.reads++
	return t
}

// Reads returns how many times Now was called.
func (c *SteppingClock) Reads() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Reset rewinds the clock to its start.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = 0
}
