package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"null", nil, "null"},
		{"float", 0.2, "0.2"},
		{"whole float", 1.0, "1"},
		{"zero float", 0.0, "0"},
		{"tiny float", 1e-7, "1e-7"},
		{"huge float", 1e21, "1e+21"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"array", []any{int64(1), "two", true}, `[1,"two",true]`},
		{"object", map[string]any{"a": int64(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": int64(1),
		"alpha": int64(2),
		"beta":  map[string]any{"b": int64(1), "a": int64(2)},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"a":2,"b":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// UTF-16: U+10000 is the surrogate pair 0xD800 0xDC00, which sorts
	// before 0xE000 even though its UTF-8 encoding sorts after.
	obj := map[string]any{
		"\uE000":     int64(1),
		"\U00010000": int64(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{"html": "<b>a & b</b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<b>a & b</b>"}`, string(result))
	assert.NotContains(t, string(result), `\u003c`)
	assert.NotContains(t, string(result), `\u0026`)
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	composed := "caf\u00E9"
	decomposed := "cafe\u0301"

	r1, err := MarshalCanonical(map[string]any{composed: composed})
	require.NoError(t, err)
	r2, err := MarshalCanonical(map[string]any{decomposed: decomposed})
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
}

func TestMarshalCanonicalU2028U2029(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"line separator", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator", "a\u2029b", "\"a\u2029b\""},
		{"literal backslash text", `esc \u2028`, `"esc \\u2028"`},
		{"mixed", "lit \\u2028 and \u2028", "\"lit \\\\u2028 and \u2028\""},
		{"escaped backslash before real", "\\\u2028", "\"\\\\\u2028\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a\nb", `"a\nb"`},
		{"a\tb", `"a\tb"`},
		{`a"b`, `"a\"b"`},
		{`a\b`, `"a\\b"`},
	}

	for _, tt := range tests {
		result, err := MarshalCanonical(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, string(result))
	}
}

func TestMarshalCanonicalOpaqueValues(t *testing.T) {
	type cell struct {
		Row int `json:"row"`
		Col int `json:"col"`
	}

	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"tuple", [2]int{3, 5}, "[3,5]"},
		{"typed slice", []string{"b", "a"}, `["b","a"]`},
		{"struct", cell{Row: 1, Col: 2}, `{"col":2,"row":1}`},
		{"int32", int32(7), "7"},
		{"nested tuple", map[string]any{"node": [2]int{0, 0}}, `{"node":[0,0]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	zero := 0.0
	_, err := MarshalCanonical(map[string]any{"x": 1 / zero})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-finite")
	assert.Contains(t, err.Error(), `"x"`)
}

func TestMarshalCanonicalRejectsUnsupported(t *testing.T) {
	_, err := MarshalCanonical(make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestMarshalCanonicalCompact(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{
		"array": []any{int64(1), int64(2)},
		"float": 1.5,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"array":[1,2],"float":1.5}`, string(result))
}
