package template

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
)

// Standard namespaces.
const (
	NamespaceEvent  = "event"
	NamespaceConfig = "config"
	NamespaceTiming = "timing"
)

// Resolver supplies values for one namespace. Resolve receives the path
// after the namespace; an empty path asks for the namespace root.
type Resolver interface {
	Resolve(path []string) (any, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(path []string) (any, error)

func (f ResolverFunc) Resolve(path []string) (any, error) { return f(path) }

// SegmentError is returned by resolvers when path[Index] cannot be walked.
type SegmentError struct {
	Index  int
	Reason string
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d: %s", e.Index, e.Reason)
}

// Values returns a Resolver that walks root. Mappings with string keys are
// walked by key; lists and arrays by decimal index.
func Values(root any) Resolver {
	return ResolverFunc(func(path []string) (any, error) {
		return Walk(root, path)
	})
}

// Walk follows path through root.
func Walk(root any, path []string) (any, error) {
	cur := root
	for i, seg := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, &SegmentError{Index: i, Reason: "no such key"}
			}
			cur = v
			continue
		case []any:
			idx, err := index(seg, len(node))
			if err != nil {
				return nil, &SegmentError{Index: i, Reason: err.Error()}
			}
			cur = node[idx]
			continue
		}

		rv := reflect.ValueOf(cur)
		switch rv.Kind() {
		case reflect.Map:
			if rv.Type().Key().Kind() != reflect.String {
				return nil, &SegmentError{Index: i, Reason: fmt.Sprintf("%T is not a mapping", cur)}
			}
			v := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
			if !v.IsValid() {
				return nil, &SegmentError{Index: i, Reason: "no such key"}
			}
			cur = v.Interface()
		case reflect.Slice, reflect.Array:
			idx, err := index(seg, rv.Len())
			if err != nil {
				return nil, &SegmentError{Index: i, Reason: err.Error()}
			}
			cur = rv.Index(idx).Interface()
		default:
			return nil, &SegmentError{Index: i, Reason: fmt.Sprintf("%T is not a mapping", cur)}
		}
	}
	return cur, nil
}

func index(seg string, n int) (int, error) {
	idx, err := strconv.Atoi(seg)
	if err != nil {
		return 0, fmt.Errorf("list index %q is not an integer", seg)
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("list index %d out of range [0,%d)", idx, n)
	}
	return idx, nil
}

// Context is the layered resolution context. It is immutable; With returns
// an extended copy.
type Context struct {
	resolvers map[string]Resolver
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{resolvers: map[string]Resolver{}}
}

// With returns a copy of c with namespace ns served by r.
func (c *Context) With(ns string, r Resolver) *Context {
	next := &Context{resolvers: make(map[string]Resolver, len(c.resolvers)+1)}
	maps.Copy(next.resolvers, c.resolvers)
	next.resolvers[ns] = r
	return next
}

// WithValues returns a copy of c with namespace ns served by Values(root).
func (c *Context) WithValues(ns string, root any) *Context {
	return c.With(ns, Values(root))
}

// Namespaces returns the available namespaces, sorted.
func (c *Context) Namespaces() []string {
	return slices.Sorted(maps.Keys(c.resolvers))
}

func (c *Context) resolve(r Ref) (any, error) {
	resolver, ok := c.resolvers[r.Namespace]
	if !ok {
		return nil, &UnknownResolverError{
			Template:  r.Template,
			Namespace: r.Namespace,
			Available: c.Namespaces(),
		}
	}

	v, err := resolver.Resolve(r.Path)
	if err == nil {
		return v, nil
	}

	var se *SegmentError
	if errors.As(err, &se) && se.Index >= 0 && se.Index < len(r.Path) {
		return nil, &ResolutionError{
			Template: r.Template,
			Path:     r.String(),
			Segment:  r.Path[se.Index],
			Reason:   se.Reason,
		}
	}
	segment := r.Namespace
	if len(r.Path) > 0 {
		segment = r.Path[0]
	}
	return nil, &ResolutionError{
		Template: r.Template,
		Path:     r.String(),
		Segment:  segment,
		Reason:   "resolver failed",
		Err:      err,
	}
}
