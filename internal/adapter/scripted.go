package adapter

import (
	"context"
	"iter"
	"slices"

	"github.com/roach88/storyviz/internal/ir"
)

// Scripted replays a fixed event list regardless of scenario, optionally
// failing after the last event. Used by tests and fixtures.
type Scripted struct {
	name   string
	events []ir.VizEvent
	err    error
	runs   int
}

// NewScripted returns an adapter that yields events in order.
func NewScripted(name string, events ...ir.VizEvent) *Scripted {
	return &Scripted{name: name, events: slices.Clone(events)}
}

// FailWith makes the sequence yield err after the scripted events.
func (s *Scripted) FailWith(err error) *Scripted {
	s.err = err
	return s
}

func (s *Scripted) Name() string { return s.name }

// Runs returns how many sequences have been started.
func (s *Scripted) Runs() int { return s.runs }

func (s *Scripted) Run(ctx context.Context, _ map[string]any) iter.Seq2[ir.VizEvent, error] {
	s.runs++
	return func(yield func(ir.VizEvent, error) bool) {
		for _, ev := range s.events {
			if err := ctx.Err(); err != nil {
				yield(ir.VizEvent{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
		if s.err != nil {
			yield(ir.VizEvent{}, s.err)
		}
	}
}
