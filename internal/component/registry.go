package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/storyviz/internal/ir"
)

type entry struct {
	spec      ir.ComponentSpec
	component Component
	actions   map[string]Action
}

// Registry instantiates and caches named components. It is owned by one
// scene engine and is not safe for concurrent use.
type Registry struct {
	types   *Types
	logger  *slog.Logger
	order   []string // instantiation order
	entries map[string]*entry
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry returns an empty registry backed by types.
func NewRegistry(types *Types, opts ...RegistryOption) *Registry {
	r := &Registry{
		types:   types,
		logger:  slog.Default(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InstantiateAll constructs every spec in declaration order. Failures are
// wrapped in InitializationError and all of them are returned joined;
// successfully constructed components stay registered.
func (r *Registry) InstantiateAll(ctx context.Context, specs []ir.ComponentSpec) error {
	var errs []error
	for _, spec := range specs {
		if err := r.instantiate(ctx, spec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) instantiate(ctx context.Context, spec ir.ComponentSpec) error {
	fail := func(err error) error {
		return &InitializationError{Component: spec.Name, Type: spec.Type, Err: err}
	}

	if _, exists := r.entries[spec.Name]; exists {
		return fail(fmt.Errorf("component already instantiated"))
	}
	factory, ok := r.types.Lookup(spec.Type)
	if !ok {
		return fail(fmt.Errorf("unknown component type (registered: %v)", r.types.Names()))
	}

	c, err := factory(ctx, spec)
	if err != nil {
		return fail(err)
	}
	if c == nil {
		return fail(fmt.Errorf("factory returned nil component"))
	}

	r.entries[spec.Name] = &entry{
		spec:      spec,
		component: c,
		actions:   maps.Clone(c.Actions()),
	}
	r.order = append(r.order, spec.Name)
	r.logger.Debug("component instantiated", "component", spec.Name, "type", spec.Type)
	return nil
}

// Get returns the cached instance for name.
func (r *Registry) Get(name string) (Component, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &UnknownComponentError{Name: name, Available: r.Names()}
	}
	return e.component, nil
}

// Action returns the named action of a component.
func (r *Registry) Action(name, action string) (Action, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &UnknownComponentError{Name: name, Available: r.Names()}
	}
	fn, ok := e.actions[action]
	if !ok {
		return nil, &UnknownActionError{
			Component: name,
			Action:    action,
			Available: slices.Sorted(maps.Keys(e.actions)),
		}
	}
	return fn, nil
}

// Names returns component names in instantiation order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Spec returns the spec a component was instantiated from.
func (r *Registry) Spec(name string) (ir.ComponentSpec, bool) {
	e, ok := r.entries[name]
	if !ok {
		return ir.ComponentSpec{}, false
	}
	return e.spec, true
}

// Close releases components in reverse instantiation order and empties the
// registry. All Close errors are returned joined.
func (r *Registry) Close() error {
	var errs []error
	for _, name := range slices.Backward(r.order) {
		if c, ok := r.entries[name].component.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close component %q: %w", name, err))
			}
		}
	}
	r.order = nil
	r.entries = make(map[string]*entry)
	return errors.Join(errs...)
}
