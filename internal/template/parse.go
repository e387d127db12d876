package template

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/storyviz/internal/ir"
)

// Parse compiles a raw parameter value. Strings are scanned for references;
// lists and maps are compiled recursively; all other values are literals.
// A container without any template compiles to a Literal holding the
// original value.
func Parse(raw any) (Expr, error) {
	switch val := raw.(type) {
	case string:
		return ParseString(val)
	case []any:
		items := make([]Expr, len(val))
		dynamic := false
		for i, elem := range val {
			e, err := Parse(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			if _, lit := e.(Literal); !lit {
				dynamic = true
			}
			items[i] = e
		}
		if !dynamic {
			return Literal{Value: raw}, nil
		}
		return List{Items: items}, nil
	case map[string]any:
		m, err := compileMap(val)
		if err != nil {
			return nil, err
		}
		for _, e := range m.Items {
			if _, lit := e.(Literal); !lit {
				return m, nil
			}
		}
		return Literal{Value: raw}, nil
	default:
		return Literal{Value: raw}, nil
	}
}

func compileMap(raw map[string]any) (Map, error) {
	m := Map{Keys: ir.SortedKeys(raw), Items: make(map[string]Expr, len(raw))}
	var errs []error
	for _, k := range m.Keys {
		e, err := Parse(raw[k])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		m.Items[k] = e
	}
	return m, errors.Join(errs...)
}

// IsTemplate reports whether s contains a reference or an escape.
func IsTemplate(s string) bool {
	return strings.Contains(s, "${")
}

// ParseString compiles one string.
func ParseString(s string) (Expr, error) {
	if !IsTemplate(s) {
		return Literal{Value: s}, nil
	}

	var parts []Part
	var text strings.Builder
	refs := 0
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], "$${") {
			text.WriteString("${")
			i += 3
			continue
		}
		if !strings.HasPrefix(s[i:], "${") {
			text.WriteByte(s[i])
			i++
			continue
		}

		end := strings.IndexByte(s[i+2:], '}')
		if end < 0 {
			return nil, &SyntaxError{Template: s, Offset: i, Reason: "unterminated reference"}
		}
		ref, err := parseRef(s, i+2, s[i+2:i+2+end])
		if err != nil {
			return nil, err
		}
		if text.Len() > 0 {
			parts = append(parts, Part{Text: text.String()})
			text.Reset()
		}
		parts = append(parts, Part{Ref: &ref})
		refs++
		i += end + 3
	}
	if text.Len() > 0 {
		parts = append(parts, Part{Text: text.String()})
	}

	switch {
	case refs == 0:
		// Only escapes.
		return Literal{Value: text.String()}, nil
	case len(parts) == 1:
		return *parts[0].Ref, nil
	default:
		return Interp{Template: s, Parts: parts}, nil
	}
}

// parseRef parses the body of ${...}; start is the body's offset in s.
func parseRef(s string, start int, body string) (Ref, error) {
	if body == "" {
		return Ref{}, &SyntaxError{Template: s, Offset: start, Reason: "empty reference"}
	}

	segments := strings.Split(body, ".")
	offset := start
	for _, seg := range segments {
		if seg == "" {
			return Ref{}, &SyntaxError{Template: s, Offset: offset, Reason: "empty path segment"}
		}
		for j, c := range seg {
			if !isSegmentChar(c) {
				return Ref{}, &SyntaxError{
					Template: s,
					Offset:   offset + j,
					Reason:   fmt.Sprintf("invalid character %q in reference", c),
				}
			}
		}
		offset += len(seg) + 1
	}
	if c := segments[0][0]; c >= '0' && c <= '9' || c == '-' {
		return Ref{}, &SyntaxError{Template: s, Offset: start, Reason: "namespace must start with a letter or underscore"}
	}

	return Ref{Template: s, Namespace: segments[0], Path: slices.Clip(segments[1:])}, nil
}

func isSegmentChar(c rune) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Params is a compiled parameter map.
type Params map[string]Expr

// CompileMap compiles every value of raw. All syntax errors are reported,
// joined in key order.
func CompileMap(raw map[string]any) (Params, error) {
	m, err := compileMap(raw)
	if err != nil {
		return nil, err
	}
	return Params(m.Items), nil
}

// Refs returns every reference in the compiled map, in key order.
func (p Params) Refs() []Ref {
	var refs []Ref
	for _, k := range ir.SortedKeys(p) {
		refs = append(refs, Refs(p[k])...)
	}
	return refs
}

// ResolveMap resolves a compiled map against ctx. Evaluation is in key order
// and stops at the first error.
func ResolveMap(p Params, ctx *Context) (map[string]any, error) {
	out := make(map[string]any, len(p))
	for _, k := range ir.SortedKeys(p) {
		v, err := p[k].Eval(ctx)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Resolve compiles and resolves raw in one step.
func Resolve(raw any, ctx *Context) (any, error) {
	e, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return e.Eval(ctx)
}
