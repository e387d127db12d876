package compiler

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
)

// toGo converts a concrete CUE value into the engine's plain value model:
// int64, float64, string, bool, nil, []any and map[string]any.
func toGo(v cue.Value, field string) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return b, formatCUEError(err)
	case cue.IntKind:
		i, err := v.Int64()
		return i, formatCUEError(err)
	case cue.FloatKind:
		f, err := v.Float64()
		return f, formatCUEError(err)
	case cue.StringKind:
		s, err := v.String()
		return s, formatCUEError(err)
	case cue.ListKind:
		it, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for i := 0; it.Next(); i++ {
			elem, err := toGo(it.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		it, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for it.Next() {
			elem, err := toGo(it.Value(), field+"."+it.Label())
			if err != nil {
				return nil, err
			}
			out[it.Label()] = elem
		}
		return out, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// checkFields rejects struct fields outside allowed.
func checkFields(v cue.Value, field string, allowed ...string) error {
	if v.Kind() != cue.StructKind {
		return &CompileError{Field: field, Message: fmt.Sprintf("expected a struct, got %v", v.Kind()), Pos: v.Pos()}
	}
	it, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for it.Next() {
		if !slices.Contains(allowed, it.Label()) {
			return &CompileError{
				Field:   field,
				Message: fmt.Sprintf("unknown field %q (allowed: %v)", it.Label(), allowed),
				Pos:     it.Value().Pos(),
			}
		}
	}
	return nil
}

func lookup(v cue.Value, name string) (cue.Value, bool) {
	f := v.LookupPath(cue.MakePath(cue.Str(name)))
	return f, f.Exists()
}

func stringField(v cue.Value, name, field string, required bool) (string, error) {
	f, ok := lookup(v, name)
	if !ok {
		if required {
			return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
		}
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: field + "." + name, Message: "must be a string", Pos: f.Pos()}
	}
	return s, nil
}

func numberValue(v cue.Value, field string) (float64, error) {
	switch v.Kind() {
	case cue.IntKind:
		i, err := v.Int64()
		return float64(i), formatCUEError(err)
	case cue.FloatKind:
		f, err := v.Float64()
		return f, formatCUEError(err)
	default:
		return 0, &CompileError{Field: field, Message: fmt.Sprintf("must be a number, got %v", v.Kind()), Pos: v.Pos()}
	}
}

func optionalNumber(v cue.Value, name, field string) (*float64, error) {
	f, ok := lookup(v, name)
	if !ok {
		return nil, nil
	}
	n, err := numberValue(f, field+"."+name)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func mapField(v cue.Value, name, field string) (map[string]any, error) {
	f, ok := lookup(v, name)
	if !ok {
		return nil, nil
	}
	raw, err := toGo(f, field+"."+name)
	if err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &CompileError{Field: field + "." + name, Message: fmt.Sprintf("expected a struct, got %T", raw), Pos: f.Pos()}
	}
	return m, nil
}

// label returns the last selector of v's path, unquoted.
func label(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return strings.Trim(sels[len(sels)-1].String(), `"`)
}
