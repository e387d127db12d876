package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/storyviz/internal/trace"
)

var (
	_ trace.WallClock      = (*SteppingClock)(nil)
	_ trace.RunIDGenerator = (*FixedRunID)(nil)
)

func TestSteppingClockAdvances(t *testing.T) {
	c := NewSteppingClock(250 * time.Millisecond)

	assert.Equal(t, Epoch, c.Now())
	assert.Equal(t, Epoch.Add(250*time.Millisecond), c.Now())
	assert.Equal(t, Epoch.Add(500*time.Millisecond), c.Now())
	assert.Equal(t, int64(3), c.Reads())
}

func TestSteppingClockReset(t *testing.T) {
	start := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewSteppingClockAt(start, time.Second)
	c.Now()
	c.Now()

	c.Reset()
	assert.Equal(t, start, c.Now())
}

func TestSteppingClockDeterministic(t *testing.T) {
	a, b := NewSteppingClock(time.Second), NewSteppingClock(time.Second)
	for range 50 {
		assert.Equal(t, a.Now(), b.Now())
	}
}

func TestSteppingClockConcurrentReads(t *testing.T) {
	c := NewSteppingClock(time.Millisecond)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Now()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1000), c.Reads())
}

func TestFixedRunID(t *testing.T) {
	g := NewFixedRunID("run-123")
	assert.Equal(t, "run-123", g.Generate())
	assert.Equal(t, "run-123", g.Generate())

	assert.Equal(t, "test-run-default", NewFixedRunID("").Generate())
}
