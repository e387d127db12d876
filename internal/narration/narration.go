// Package narration supplies narration durations. Synthesis itself is out
// of scope: a provider only reports how long narrated text will play.
//
// Narration is acquired as a Lease that must be released on every exit
// path; the orchestrator defers Release right after Acquire.
package narration

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
)

// Lease is one acquired narration clip.
type Lease interface {
	// Duration is the clip length in seconds.
	Duration() float64
	Release() error
}

// Provider acquires narration clips.
type Provider interface {
	Acquire(ctx context.Context, text string) (Lease, error)
}

type lease struct {
	seconds float64
	release func() error
	once    sync.Once
	err     error
}

func (l *lease) Duration() float64 { return l.seconds }

func (l *lease) Release() error {
	l.once.Do(func() {
		if l.release != nil {
			l.err = l.release()
		}
	})
	return l.err
}

// NewLease returns a lease of fixed duration. release may be nil; it runs at
// most once.
func NewLease(seconds float64, release func() error) Lease {
	return &lease{seconds: seconds, release: release}
}

// DefaultWPM is the speaking rate used when none is configured.
const DefaultWPM = 150

// WordRate estimates duration from word count at a fixed speaking rate.
type WordRate struct {
	WPM float64
	// Padding is added to every non-empty clip, in seconds.
	Padding float64
}

// NewWordRate returns a word-rate estimator. wpm <= 0 uses DefaultWPM.
func NewWordRate(wpm float64) *WordRate {
	if wpm <= 0 {
		wpm = DefaultWPM
	}
	return &WordRate{WPM: wpm}
}

// Estimate returns the duration of text in seconds.
func (w *WordRate) Estimate(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	seconds := float64(words) / w.WPM * 60
	// Millisecond resolution keeps telemetry stable across platforms.
	return math.Round((seconds+w.Padding)*1000) / 1000
}

func (w *WordRate) Acquire(ctx context.Context, text string) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewLease(w.Estimate(text), nil), nil
}

// Table serves fixed durations for known texts, e.g. measured lengths of
// pre-recorded clips, and delegates everything else to Fallback.
type Table struct {
	Durations map[string]float64
	Fallback  Provider
}

func (t *Table) Acquire(ctx context.Context, text string) (Lease, error) {
	if d, ok := t.Durations[text]; ok {
		return NewLease(d, nil), nil
	}
	if t.Fallback == nil {
		return nil, fmt.Errorf("no narration duration for %q", text)
	}
	return t.Fallback.Acquire(ctx, text)
}

// Tracker wraps a provider and counts leases that are still open.
type Tracker struct {
	Provider Provider

	mu       sync.Mutex
	open     int
	acquired int
}

func (t *Tracker) Acquire(ctx context.Context, text string) (Lease, error) {
	l, err := t.Provider.Acquire(ctx, text)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.open++
	t.acquired++
	t.mu.Unlock()
	return NewLease(l.Duration(), func() error {
		t.mu.Lock()
		t.open--
		t.mu.Unlock()
		return l.Release()
	}), nil
}

// Open returns the number of unreleased leases.
func (t *Tracker) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Acquired returns the total number of leases handed out.
func (t *Tracker) Acquired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.acquired
}
