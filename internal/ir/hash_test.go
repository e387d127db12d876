package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCalls() []Call {
	step := int64(0)
	return []Call{
		{Seq: 1, Component: "grid", Action: "show", Act: 0, Shot: 0, Beat: 0},
		{
			Seq:       2,
			Component: "queue",
			Action:    "add_element",
			Args:      map[string]any{"element": [2]int{0, 0}},
			EventType: "enqueue",
			StepIndex: &step,
			Act:       0, Shot: 0, Beat: 1,
		},
	}
}

func TestTraceDigestDeterminism(t *testing.T) {
	d1, err := TraceDigest(sampleCalls())
	require.NoError(t, err)
	d2, err := TraceDigest(sampleCalls())
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64, "SHA-256 hex is 64 characters")
}

func TestTraceDigestChangesWithInput(t *testing.T) {
	base := MustTraceDigest(sampleCalls())

	reordered := sampleCalls()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	assert.NotEqual(t, base, MustTraceDigest(reordered), "order must matter")

	changedArgs := sampleCalls()
	changedArgs[1].Args = map[string]any{"element": [2]int{0, 1}}
	assert.NotEqual(t, base, MustTraceDigest(changedArgs))

	changedStep := sampleCalls()
	step := int64(3)
	changedStep[1].StepIndex = &step
	assert.NotEqual(t, base, MustTraceDigest(changedStep))
}

func TestTraceDigestEquivalentValueShapes(t *testing.T) {
	// A tuple payload and its decoded list form digest identically.
	a := sampleCalls()
	b := sampleCalls()
	b[1].Args = map[string]any{"element": []any{int64(0), int64(0)}}

	assert.Equal(t, MustTraceDigest(a), MustTraceDigest(b))
}

func TestTraceDigestEmpty(t *testing.T) {
	d, err := TraceDigest(nil)
	require.NoError(t, err)
	assert.Len(t, d, 64)
}

func TestCallDigestNilArgsEqualsEmpty(t *testing.T) {
	c1 := Call{Seq: 1, Component: "grid", Action: "show"}
	c2 := Call{Seq: 1, Component: "grid", Action: "show", Args: map[string]any{}}

	d1, err := CallDigest(c1)
	require.NoError(t, err)
	d2, err := CallDigest(c2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestSceneDigestKeyOrderIndependent(t *testing.T) {
	cfg1 := &SceneConfig{
		Name:       "bfs",
		Algorithm:  "bfs",
		Components: []ComponentSpec{{Name: "grid", Type: "grid", Params: map[string]any{"rows": int64(3), "cols": int64(4)}}},
	}
	cfg2 := &SceneConfig{
		Name:       "bfs",
		Algorithm:  "bfs",
		Components: []ComponentSpec{{Name: "grid", Type: "grid", Params: map[string]any{"cols": int64(4), "rows": int64(3)}}},
	}

	d1, err := SceneDigest(cfg1)
	require.NoError(t, err)
	d2, err := SceneDigest(cfg2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	cfg2.Components = append(cfg2.Components, ComponentSpec{Name: "queue", Type: "queue"})
	d3, err := SceneDigest(cfg2)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"id":"test"}`)

	assert.NotEqual(t, hashWithDomain(DomainTrace, data), hashWithDomain(DomainCall, data))
	assert.NotEqual(t, hashWithDomain(DomainTrace, data), hashWithDomain(DomainScene, data))
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "foo" + 0x00 + "bar" differs from "foob" + 0x00 + "ar"
	assert.NotEqual(t, hashWithDomain("foo", []byte("bar")), hashWithDomain("foob", []byte("ar")))
}
