// Package adapter defines algorithm adapters: named producers of ordered
// visualization event sequences.
//
// Adapters must be deterministic. The same scenario must yield the same
// event sequence on every call; reproducible renders depend on it.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/storyviz/internal/ir"
)

// Adapter produces the event sequence of one algorithm run.
type Adapter interface {
	Name() string
	// Run returns the ordered, finite event sequence for scenario. An error
	// yielded by the sequence ends it.
	Run(ctx context.Context, scenario map[string]any) iter.Seq2[ir.VizEvent, error]
}

// UnknownAdapterError reports a lookup of an unregistered algorithm.
type UnknownAdapterError struct {
	Name      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown algorithm adapter %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// IsUnknownAdapter reports whether err is or wraps an UnknownAdapterError.
func IsUnknownAdapter(err error) bool {
	var ue *UnknownAdapterError
	return errors.As(err, &ue)
}

// Registry maps algorithm names to adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry returns a registry holding adapters. Duplicate names panic.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds an adapter.
func (r *Registry) Register(a Adapter) error {
	if _, dup := r.adapters[a.Name()]; dup {
		return fmt.Errorf("adapter %q already registered", a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

// Get returns the adapter for name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, &UnknownAdapterError{Name: name, Available: r.Names()}
	}
	return a, nil
}

// Names returns registered adapter names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.adapters))
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[ir.VizEvent, error]) ([]ir.VizEvent, error) {
	var events []ir.VizEvent
	for ev, err := range seq {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}
