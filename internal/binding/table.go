// Package binding builds the validated event binding table of a scene.
package binding

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/template"
)

// Compiled is one event binding with its templates parsed.
type Compiled struct {
	EventType string
	Index     int // declaration index within the event type
	Widget    string
	Action    string
	Order     int
	Params    template.Params
	Guard     template.Expr // nil when the binding has no guard
}

// Table maps event types to bindings in execution order. It is immutable
// after construction.
type Table struct {
	byType map[string][]Compiled
}

// UnknownWidgetError reports a binding whose widget is not a declared
// component.
type UnknownWidgetError struct {
	EventType string
	Index     int
	Widget    string
	Available []string
}

func (e *UnknownWidgetError) Error() string {
	return fmt.Sprintf("events.%s[%d]: unknown widget %q (components: %s)",
		e.EventType, e.Index, e.Widget, strings.Join(e.Available, ", "))
}

// Error wraps any other problem with one binding.
type Error struct {
	EventType string
	Index     int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("events.%s[%d]: %v", e.EventType, e.Index, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTable validates and compiles events against the declared component
// names. Every problem is reported, joined, in event-type order. Action
// names are not checked here: components are opaque until dispatch.
func NewTable(events map[string][]ir.EventBinding, components []string) (*Table, error) {
	t := &Table{byType: make(map[string][]Compiled, len(events))}
	var errs []error

	for _, eventType := range ir.SortedKeys(events) {
		list := events[eventType]
		compiled := make([]Compiled, 0, len(list))
		for i, b := range list {
			c, bErrs := compile(eventType, i, b, components)
			if len(bErrs) > 0 {
				errs = append(errs, bErrs...)
				continue
			}
			compiled = append(compiled, c)
		}
		// Stable: equal Order keeps declaration order.
		slices.SortStableFunc(compiled, func(a, b Compiled) int {
			return cmp.Compare(a.Order, b.Order)
		})
		t.byType[eventType] = compiled
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

func compile(eventType string, i int, b ir.EventBinding, components []string) (Compiled, []error) {
	var errs []error
	wrap := func(err error) {
		errs = append(errs, &Error{EventType: eventType, Index: i, Err: err})
	}

	if eventType == "" {
		wrap(fmt.Errorf("empty event type"))
	}
	switch {
	case b.Widget == "":
		wrap(fmt.Errorf("widget is required"))
	case !slices.Contains(components, b.Widget):
		errs = append(errs, &UnknownWidgetError{
			EventType: eventType,
			Index:     i,
			Widget:    b.Widget,
			Available: slices.Clone(components),
		})
	}
	if b.Action == "" {
		wrap(fmt.Errorf("action is required"))
	}

	params, err := template.CompileMap(b.Params)
	if err != nil {
		wrap(fmt.Errorf("params: %w", err))
	}

	var guard template.Expr
	if b.Guard != "" {
		guard, err = template.ParseString(b.Guard)
		if err != nil {
			wrap(fmt.Errorf("guard: %w", err))
		}
	}

	return Compiled{
		EventType: eventType,
		Index:     i,
		Widget:    b.Widget,
		Action:    b.Action,
		Order:     b.Order,
		Params:    params,
		Guard:     guard,
	}, errs
}

// For returns the bindings for eventType in execution order, or nil.
func (t *Table) For(eventType string) []Compiled {
	return slices.Clone(t.byType[eventType])
}

// EventTypes returns the event types with at least one binding, sorted.
func (t *Table) EventTypes() []string {
	var out []string
	for _, et := range ir.SortedKeys(t.byType) {
		if len(t.byType[et]) > 0 {
			out = append(out, et)
		}
	}
	return out
}

// Len returns the total number of bindings.
func (t *Table) Len() int {
	n := 0
	for _, list := range t.byType {
		n += len(list)
	}
	return n
}
