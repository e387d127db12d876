package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeValue converts decoder output (YAML, JSON, CUE) into the
// canonical Go value shapes used throughout the engine:
//
//	all signed/unsigned integers -> int64
//	float32                      -> float64
//	json.Number                  -> int64 or float64
//	map[any]any, map[string]any  -> map[string]any
//	[]any                        -> []any (elements normalized)
//
// Any other value is returned unchanged, so opaque payload values (tuples,
// structs) pass through with their identity and type intact.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case json.Number:
		if i, err := val.Int64(); err == nil && !strings.ContainsAny(string(val), ".eE") {
			return i
		}
		f, err := val.Float64()
		if err != nil {
			return string(val)
		}
		return f
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = NormalizeValue(elem)
		}
		return out
	case map[string]any:
		return NormalizeMap(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = NormalizeValue(elem)
		}
		return out
	default:
		return v
	}
}

// NormalizeMap normalizes every value of m into a fresh map.
// A nil map stays nil.
func NormalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = NormalizeValue(v)
	}
	return out
}

// Normalize normalizes all argument values in the storyboard in place.
// Called once by loaders right after decoding.
func (s *Storyboard) Normalize() {
	for a := range s.Acts {
		for sh := range s.Acts[a].Shots {
			beats := s.Acts[a].Shots[sh].Beats
			for b := range beats {
				beats[b].Args = NormalizeMap(beats[b].Args)
			}
		}
	}
}

// Normalize normalizes component params and binding params in place.
func (c *SceneConfig) Normalize() {
	for i := range c.Components {
		c.Components[i].Params = NormalizeMap(c.Components[i].Params)
	}
	for _, list := range c.Events {
		for i := range list {
			list[i].Params = NormalizeMap(list[i].Params)
		}
	}
}

// Truthy reports whether a resolved value counts as true for binding guards.
// nil, false, zero numbers, empty strings and empty collections are falsy.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int64:
		return val != 0
	case int:
		return val != 0
	case float64:
		return val != 0
	case string:
		return val != "" && val != "false"
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
