package trace

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic logical clock. Every dispatched call is stamped with
// a strictly increasing seq from it.
//
// Clock is safe for concurrent use, though a render only ever calls it from
// one goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. Used when appending to a
// persisted run.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// WallClock reads real time. Only timing telemetry uses it.
type WallClock interface {
	Now() time.Time
}

// SystemClock is the WallClock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
