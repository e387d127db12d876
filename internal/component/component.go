package component

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/storyviz/internal/ir"
)

// Action is one named capability of a component. Args are the resolved
// binding or beat parameters.
type Action func(ctx context.Context, args map[string]any) error

// Component is a live visual object.
type Component interface {
	Show(ctx context.Context) error
	Hide(ctx context.Context) error
	// Actions returns the component's action table. It is read once, at
	// instantiation.
	Actions() map[string]Action
}

// Closer is implemented by components holding resources that must be
// released at run end.
type Closer interface {
	Close() error
}

// Factory constructs a component from its spec.
type Factory func(ctx context.Context, spec ir.ComponentSpec) (Component, error)

// Types is the component type -> factory table.
type Types struct {
	factories map[string]Factory
	fallback  Factory
}

// NewTypes returns an empty type table.
func NewTypes() *Types {
	return &Types{factories: make(map[string]Factory)}
}

// Register adds a factory for typ. Registering a type twice panics: the
// table is built once at startup.
func (t *Types) Register(typ string, f Factory) {
	if _, dup := t.factories[typ]; dup {
		panic(fmt.Sprintf("component: type %q registered twice", typ))
	}
	t.factories[typ] = f
}

// SetFallback sets the factory used for unregistered types. Without a
// fallback, unregistered types fail instantiation.
func (t *Types) SetFallback(f Factory) {
	t.fallback = f
}

// Lookup returns the factory for typ, or the fallback.
func (t *Types) Lookup(typ string) (Factory, bool) {
	if f, ok := t.factories[typ]; ok {
		return f, true
	}
	if t.fallback != nil {
		return t.fallback, true
	}
	return nil, false
}

// Names returns the registered type names, sorted.
func (t *Types) Names() []string {
	return slices.Sorted(maps.Keys(t.factories))
}

// Has reports whether typ can be instantiated.
func (t *Types) Has(typ string) bool {
	_, ok := t.Lookup(typ)
	return ok
}
