package component

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storyviz/internal/ir"
)

func specs() []ir.ComponentSpec {
	return []ir.ComponentSpec{
		{Name: "title", Type: "title"},
		{Name: "grid", Type: "grid", Params: map[string]any{"rows": int64(5)}},
		{Name: "queue", Type: "queue"},
	}
}

func TestInstantiateAllDeclarationOrder(t *testing.T) {
	r := NewRegistry(StubTypes())
	require.NoError(t, r.InstantiateAll(context.Background(), specs()))

	assert.Equal(t, []string{"title", "grid", "queue"}, r.Names())
	spec, ok := r.Spec("grid")
	require.True(t, ok)
	assert.Equal(t, int64(5), spec.Params["rows"])
}

func TestGetIsIdempotent(t *testing.T) {
	r := NewRegistry(StubTypes())
	require.NoError(t, r.InstantiateAll(context.Background(), specs()))

	first, err := r.Get("grid")
	require.NoError(t, err)
	second, err := r.Get("grid")
	require.NoError(t, err)

	assert.Same(t, first.(*Stub), second.(*Stub))
}

func TestGetUnknownListsAvailable(t *testing.T) {
	r := NewRegistry(StubTypes())
	require.NoError(t, r.InstantiateAll(context.Background(), specs()))

	_, err := r.Get("grdi")
	require.Error(t, err)

	var ue *UnknownComponentError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, []string{"title", "grid", "queue"}, ue.Available)
	assert.Contains(t, err.Error(), "grdi")
}

func TestActionLookup(t *testing.T) {
	r := NewRegistry(StubTypes())
	require.NoError(t, r.InstantiateAll(context.Background(), specs()))

	fn, err := r.Action("queue", "add_element")
	require.NoError(t, err)
	require.NoError(t, fn(context.Background(), map[string]any{"element": [2]int{0, 0}}))

	c, _ := r.Get("queue")
	assert.Equal(t, []Invocation{{Action: "add_element", Args: map[string]any{"element": [2]int{0, 0}}}}, c.(*Stub).Calls())

	_, err = r.Action("queue", "add_elemnt")
	require.Error(t, err)
	var ae *UnknownActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, []string{"add_element", "clear", "remove_element"}, ae.Available)

	_, err = r.Action("missing", "x")
	assert.True(t, IsUnknownComponent(err))
}

func TestInstantiateAllAggregatesFailures(t *testing.T) {
	types := NewTypes()
	types.Register("grid", StubFactory)
	boom := errors.New("no display")
	types.Register("broken", func(context.Context, ir.ComponentSpec) (Component, error) {
		return nil, boom
	})

	r := NewRegistry(types)
	err := r.InstantiateAll(context.Background(), []ir.ComponentSpec{
		{Name: "a", Type: "broken"},
		{Name: "b", Type: "grid"},
		{Name: "c", Type: "hologram"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `component "a"`)
	assert.Contains(t, err.Error(), `component "c"`)
	assert.Contains(t, err.Error(), "unknown component type")
	assert.True(t, IsInitializationError(err))

	assert.Equal(t, []string{"b"}, r.Names(), "successful components stay registered")
}

func TestInstantiateAtMostOncePerName(t *testing.T) {
	r := NewRegistry(StubTypes())
	ctx := context.Background()
	require.NoError(t, r.InstantiateAll(ctx, specs()[:1]))

	err := r.InstantiateAll(ctx, specs()[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already instantiated")
	assert.Equal(t, []string{"title"}, r.Names())
}

func TestActionTableCapturedOnce(t *testing.T) {
	r := NewRegistry(StubTypes())
	require.NoError(t, r.InstantiateAll(context.Background(), specs()))

	c, _ := r.Get("queue")
	c.Actions()["late"] = func(context.Context, map[string]any) error { return nil }

	_, err := r.Action("queue", "late")
	assert.True(t, IsUnknownAction(err), "actions added after instantiation are not visible")
}

type closing struct {
	*Stub
	closedLog *[]string
	err       error
}

func (c closing) Close() error {
	*c.closedLog = append(*c.closedLog, c.Name())
	return c.err
}

func TestCloseReverseOrder(t *testing.T) {
	var closed []string
	types := NewTypes()
	types.SetFallback(func(_ context.Context, spec ir.ComponentSpec) (Component, error) {
		var err error
		if spec.Name == "b" {
			err = errors.New("leak")
		}
		return closing{Stub: NewStub(spec.Name, spec.Type), closedLog: &closed, err: err}, nil
	})

	r := NewRegistry(types)
	require.NoError(t, r.InstantiateAll(context.Background(), []ir.ComponentSpec{
		{Name: "a", Type: "x"}, {Name: "b", Type: "x"}, {Name: "c", Type: "x"},
	}))

	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `close component "b"`)
	assert.Equal(t, []string{"c", "b", "a"}, closed)
	assert.Empty(t, r.Names())
}

func TestStubFactoryExtraActions(t *testing.T) {
	c, err := StubFactory(context.Background(), ir.ComponentSpec{
		Name: "board", Type: "chessboard",
		Params: map[string]any{"actions": []any{"move_piece"}},
	})
	require.NoError(t, err)
	assert.Contains(t, c.Actions(), "move_piece")

	_, err = StubFactory(context.Background(), ir.ComponentSpec{
		Name: "board", Type: "chessboard",
		Params: map[string]any{"actions": "move_piece"},
	})
	assert.Error(t, err)
}

func TestStubLifecycle(t *testing.T) {
	s := NewStub("grid", "grid")
	ctx := context.Background()
	require.NoError(t, s.Show(ctx))
	assert.True(t, s.Visible())
	require.NoError(t, s.Hide(ctx))
	assert.False(t, s.Visible())
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.Equal(t, []Invocation{{Action: "show"}, {Action: "hide"}}, s.Calls())
}

func TestBuiltinTypesHasNoFallback(t *testing.T) {
	strict := BuiltinTypes()
	assert.True(t, strict.Has("queue"))
	assert.False(t, strict.Has("chessboard"))
	assert.Len(t, strict.Names(), len(BuiltinActions))

	loose := StubTypes()
	assert.True(t, loose.Has("chessboard"))
	assert.Equal(t, strict.Names(), loose.Names())
}
