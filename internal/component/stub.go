package component

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/storyviz/internal/ir"
)

// BuiltinActions lists the actions of the built-in headless component types.
var BuiltinActions = map[string][]string{
	"title":   {"set_text"},
	"text":    {"set_text", "clear"},
	"grid":    {"highlight_cell", "mark_visited", "mark_frontier", "mark_path", "set_cell", "reset"},
	"queue":   {"add_element", "remove_element", "clear"},
	"stack":   {"push", "pop", "clear"},
	"array":   {"set_value", "swap", "highlight", "reset"},
	"graph":   {"highlight_node", "highlight_edge", "mark_visited", "reset"},
	"counter": {"increment", "set_value"},
}

// Invocation is one action call observed by a Stub.
type Invocation struct {
	Action string
	Args   map[string]any
}

// Stub is a headless component that records every action it receives.
// It backs dry-run renders and tests.
type Stub struct {
	name    string
	typ     string
	visible bool
	closed  bool
	calls   []Invocation
	actions map[string]Action
}

// NewStub returns a stub exposing the given actions.
func NewStub(name, typ string, actions ...string) *Stub {
	s := &Stub{name: name, typ: typ, actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		s.actions[a] = s.recorder(a)
	}
	return s
}

func (s *Stub) recorder(action string) Action {
	return func(ctx context.Context, args map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.calls = append(s.calls, Invocation{Action: action, Args: maps.Clone(args)})
		return nil
	}
}

func (s *Stub) Show(context.Context) error {
	s.visible = true
	s.calls = append(s.calls, Invocation{Action: "show"})
	return nil
}

func (s *Stub) Hide(context.Context) error {
	s.visible = false
	s.calls = append(s.calls, Invocation{Action: "hide"})
	return nil
}

func (s *Stub) Actions() map[string]Action {
	return s.actions
}

// Close marks the stub closed.
func (s *Stub) Close() error {
	s.closed = true
	return nil
}

// Name returns the component name.
func (s *Stub) Name() string { return s.name }

// Type returns the component type.
func (s *Stub) Type() string { return s.typ }

// Visible reports whether the stub is shown.
func (s *Stub) Visible() bool { return s.visible }

// Closed reports whether Close was called.
func (s *Stub) Closed() bool { return s.closed }

// Calls returns a copy of all recorded invocations, lifecycle included.
func (s *Stub) Calls() []Invocation {
	return slices.Clone(s.calls)
}

// StubFactory builds stubs. The action set is the built-in set for the
// type plus any names listed in the "actions" param.
func StubFactory(_ context.Context, spec ir.ComponentSpec) (Component, error) {
	actions := slices.Clone(BuiltinActions[spec.Type])
	if raw, ok := spec.Params["actions"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("param actions: expected a list of names, got %T", raw)
		}
		for i, item := range list {
			name, ok := item.(string)
			if !ok || name == "" {
				return nil, fmt.Errorf("param actions[%d]: expected a non-empty string, got %v", i, item)
			}
			actions = append(actions, name)
		}
	}
	return NewStub(spec.Name, spec.Type, actions...), nil
}

// BuiltinTypes returns a type table with every built-in type backed by
// StubFactory. Unknown types fail to instantiate.
func BuiltinTypes() *Types {
	t := NewTypes()
	for _, typ := range slices.Sorted(maps.Keys(BuiltinActions)) {
		t.Register(typ, StubFactory)
	}
	return t
}

// StubTypes returns BuiltinTypes plus a StubFactory fallback, so any type
// name instantiates.
func StubTypes() *Types {
	t := BuiltinTypes()
	t.SetFallback(StubFactory)
	return t
}
