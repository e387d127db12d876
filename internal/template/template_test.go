package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() *Context {
	return NewContext().
		WithValues(NamespaceEvent, map[string]any{
			"node":  [2]int{3, 5},
			"label": "A",
			"depth": int64(2),
			"path":  []any{"a", "b"},
			"meta":  map[string]string{"color": "red"},
		}).
		WithValues(NamespaceConfig, map[string]any{
			"components": map[string]any{
				"grid": map[string]any{"rows": int64(5), "cols": int64(7)},
			},
		}).
		WithValues(NamespaceTiming, map[string]any{
			"events":     0.2,
			"mode":       "fast",
			"multiplier": 0.25,
		})
}

func TestResolveNativeTypePreserved(t *testing.T) {
	v, err := Resolve("${event.node}", testContext())
	require.NoError(t, err)
	assert.Equal(t, [2]int{3, 5}, v)
	assert.IsType(t, [2]int{}, v)
}

func TestResolveTimingBucket(t *testing.T) {
	v, err := Resolve("${timing.events}", testContext())
	require.NoError(t, err)
	assert.Equal(t, 0.2, v)
}

func TestResolveLiteralsPassThrough(t *testing.T) {
	ctx := testContext()
	for _, raw := range []any{int64(4), 1.5, true, nil, "plain text", "cost is $5"} {
		v, err := Resolve(raw, ctx)
		require.NoError(t, err)
		assert.Equal(t, raw, v)
	}
}

func TestResolveInterpolation(t *testing.T) {
	v, err := Resolve("Visiting ${event.label} at depth ${event.depth} (${timing.events}s)", testContext())
	require.NoError(t, err)
	assert.Equal(t, "Visiting A at depth 2 (0.2s)", v)
}

func TestResolveEscape(t *testing.T) {
	v, err := Resolve("literal $${event.node} and ${event.label}", testContext())
	require.NoError(t, err)
	assert.Equal(t, "literal ${event.node} and A", v)

	v, err = Resolve("$${only}", testContext())
	require.NoError(t, err)
	assert.Equal(t, "${only}", v)
}

func TestResolveNestedPaths(t *testing.T) {
	ctx := testContext()
	tests := []struct {
		template string
		expected any
	}{
		{"${config.components.grid.rows}", int64(5)},
		{"${event.path.1}", "b"},
		{"${event.node.0}", 3},
		{"${event.meta.color}", "red"},
		{"${timing}", map[string]any{"events": 0.2, "mode": "fast", "multiplier": 0.25}},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			v, err := Resolve(tt.template, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestResolveContainers(t *testing.T) {
	raw := map[string]any{
		"cells": []any{"${event.label}", "fixed"},
		"style": map[string]any{"size": "${config.components.grid.cols}", "bold": true},
	}
	v, err := Resolve(raw, testContext())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"cells": []any{"A", "fixed"},
		"style": map[string]any{"size": int64(7), "bold": true},
	}, v)
	assert.Equal(t, "${event.label}", raw["cells"].([]any)[0], "inputs are never mutated")
}

func TestParseStaticContainersStayLiteral(t *testing.T) {
	raw := []any{int64(1), "two"}
	e, err := Parse(raw)
	require.NoError(t, err)
	assert.IsType(t, Literal{}, e)
}

func TestUnknownNamespace(t *testing.T) {
	_, err := Resolve("${evnt.node}", testContext())
	require.Error(t, err)

	var ue *UnknownResolverError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "evnt", ue.Namespace)
	assert.Equal(t, []string{"config", "event", "timing"}, ue.Available)
	assert.Contains(t, err.Error(), "evnt")
	assert.Contains(t, err.Error(), "event")
}

func TestMissingSegment(t *testing.T) {
	_, err := Resolve("${config.components.graph.rows}", testContext())
	require.Error(t, err)

	var re *ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "graph", re.Segment)
	assert.Equal(t, "config.components.graph.rows", re.Path)
	assert.Equal(t, "${config.components.graph.rows}", re.Template)
}

func TestIntermediateNonMappingFails(t *testing.T) {
	_, err := Resolve("${event.label.first}", testContext())
	require.Error(t, err)

	var re *ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "first", re.Segment)
	assert.Contains(t, re.Reason, "not a mapping")
}

func TestListIndexErrors(t *testing.T) {
	_, err := Resolve("${event.path.9}", testContext())
	assert.True(t, IsResolutionError(err))

	_, err = Resolve("${event.path.x}", testContext())
	assert.True(t, IsResolutionError(err))
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		template string
		offset   int
	}{
		{"${event.node", 0},
		{"abc ${}", 6},
		{"${event..node}", 8},
		{"${event.no de}", 10},
		{"${1abc}", 2},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			_, err := Parse(tt.template)
			require.Error(t, err)

			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.template, se.Template)
			assert.Equal(t, tt.offset, se.Offset)
		})
	}
}

func TestCompileMapAggregatesErrors(t *testing.T) {
	_, err := CompileMap(map[string]any{
		"a": "${bad",
		"b": "ok",
		"c": "${}",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a:")
	assert.Contains(t, err.Error(), "c:")
	assert.True(t, IsSyntaxError(err))
}

func TestResolveMap(t *testing.T) {
	params, err := CompileMap(map[string]any{
		"element": "${event.node}",
		"color":   "blue",
	})
	require.NoError(t, err)

	out, err := ResolveMap(params, testContext())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"element": [2]int{3, 5}, "color": "blue"}, out)

	refs := params.Refs()
	require.Len(t, refs, 1)
	assert.Equal(t, "event.node", refs[0].String())
}

func TestResolveMapErrorNamesParam(t *testing.T) {
	params, err := CompileMap(map[string]any{"element": "${event.missing}"})
	require.NoError(t, err)

	_, err = ResolveMap(params, testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `param "element"`)
	assert.True(t, IsResolutionError(err))
}

func TestCustomResolver(t *testing.T) {
	failing := errors.New("backend down")
	ctx := testContext().
		With("const", ResolverFunc(func(path []string) (any, error) {
			if len(path) == 1 && path[0] == "pi" {
				return 3.14, nil
			}
			return nil, &SegmentError{Index: 0, Reason: "unknown constant"}
		})).
		With("remote", ResolverFunc(func([]string) (any, error) { return nil, failing }))

	v, err := Resolve("${const.pi}", ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.14, v)

	_, err = Resolve("${const.e}", ctx)
	assert.True(t, IsResolutionError(err))

	_, err = Resolve("${remote.x}", ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, failing)
}

func TestContextWithDoesNotMutate(t *testing.T) {
	base := NewContext().WithValues("a", 1)
	extended := base.WithValues("b", 2)

	assert.Equal(t, []string{"a"}, base.Namespaces())
	assert.Equal(t, []string{"a", "b"}, extended.Namespaces())
}
