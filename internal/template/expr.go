package template

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a compiled parameter value.
type Expr interface {
	// Eval resolves the expression against ctx.
	Eval(ctx *Context) (any, error)

	walk(fn func(Ref))
}

// Literal is a value containing no references.
type Literal struct {
	Value any
}

func (l Literal) Eval(*Context) (any, error) { return l.Value, nil }
func (l Literal) walk(func(Ref))             {}

// Ref is a string consisting of exactly one reference. It resolves to the
// referenced value with its native type.
type Ref struct {
	Template  string
	Namespace string
	Path      []string
}

// String returns the dotted form of the reference, e.g. "event.node".
func (r Ref) String() string {
	if len(r.Path) == 0 {
		return r.Namespace
	}
	return r.Namespace + "." + strings.Join(r.Path, ".")
}

func (r Ref) Eval(ctx *Context) (any, error) {
	return ctx.resolve(r)
}

func (r Ref) walk(fn func(Ref)) { fn(r) }

// Interp is text with embedded references. It always resolves to a string.
type Interp struct {
	Template string
	Parts    []Part
}

// Part is one piece of an interpolated string: literal text, or a reference
// when Ref is non-nil.
type Part struct {
	Text string
	Ref  *Ref
}

func (in Interp) Eval(ctx *Context) (any, error) {
	var b strings.Builder
	for _, p := range in.Parts {
		if p.Ref == nil {
			b.WriteString(p.Text)
			continue
		}
		v, err := p.Ref.Eval(ctx)
		if err != nil {
			return nil, err
		}
		b.WriteString(formatValue(v))
	}
	return b.String(), nil
}

func (in Interp) walk(fn func(Ref)) {
	for _, p := range in.Parts {
		if p.Ref != nil {
			fn(*p.Ref)
		}
	}
}

// List is a list containing at least one template.
type List struct {
	Items []Expr
}

func (l List) Eval(ctx *Context) (any, error) {
	out := make([]any, len(l.Items))
	for i, item := range l.Items {
		v, err := item.Eval(ctx)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (l List) walk(fn func(Ref)) {
	for _, item := range l.Items {
		item.walk(fn)
	}
}

// Map is a mapping containing at least one template.
type Map struct {
	Keys  []string // sorted; fixes evaluation and error order
	Items map[string]Expr
}

func (m Map) Eval(ctx *Context) (any, error) {
	out := make(map[string]any, len(m.Items))
	for _, k := range m.Keys {
		v, err := m.Items[k].Eval(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func (m Map) walk(fn func(Ref)) {
	for _, k := range m.Keys {
		m.Items[k].walk(fn)
	}
}

// Refs returns every reference in e, in evaluation order.
func Refs(e Expr) []Ref {
	var refs []Ref
	e.walk(func(r Ref) { refs = append(refs, r) })
	return refs
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}
