package scene

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storyviz/internal/adapter"
	"github.com/roach88/storyviz/internal/component"
	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/template"
	"github.com/roach88/storyviz/internal/timing"
	"github.com/roach88/storyviz/internal/trace"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func queueScene() *ir.SceneConfig {
	return &ir.SceneConfig{
		Name:      "bfs-grid",
		Algorithm: "bfs",
		Components: []ir.ComponentSpec{
			{Name: "grid", Type: "grid", Params: map[string]any{"rows": int64(3), "cols": int64(4)}},
			{Name: "queue", Type: "queue"},
		},
		Events: map[string][]ir.EventBinding{
			"enqueue": {
				{Widget: "queue", Action: "add_element", Params: map[string]any{"element": "${event.node}"}},
			},
		},
	}
}

func newEngine(t *testing.T, scene *ir.SceneConfig, opts ...Option) (*Engine, *trace.Log) {
	t.Helper()
	log := trace.NewLog()
	opts = append([]Option{WithRecorder(log), WithLogger(quiet)}, opts...)
	e := New(scene, opts...)
	require.NoError(t, e.Initialize(context.Background()))
	t.Cleanup(func() { _ = e.Close() })
	return e, log
}

func stub(t *testing.T, e *Engine, name string) *component.Stub {
	t.Helper()
	c, err := e.Component(name)
	require.NoError(t, err)
	s, ok := c.(*component.Stub)
	require.True(t, ok)
	return s
}

func actionCalls(s *component.Stub) []component.Invocation {
	var out []component.Invocation
	for _, inv := range s.Calls() {
		if inv.Action != "show" && inv.Action != "hide" {
			out = append(out, inv)
		}
	}
	return out
}

func TestEndToEndSingleEnqueue(t *testing.T) {
	ctx := context.Background()
	adapters := adapter.NewRegistry(adapter.NewScripted("bfs", ir.VizEvent{
		Type:      "enqueue",
		Payload:   map[string]any{"node": [2]int{0, 0}},
		StepIndex: 0,
	}))
	e, log := newEngine(t, queueScene(), WithAdapters(adapters))

	require.NoError(t, e.ExecuteBeat(ctx, ir.Beat{Action: ActionShowWidgets}, 1, BeatContext{Beat: 0}))
	require.NoError(t, e.ExecuteBeat(ctx, ir.Beat{Action: ActionPlayEvents}, 0.8, BeatContext{Beat: 1}))

	queue := stub(t, e, "queue")
	require.Equal(t, []component.Invocation{
		{Action: "add_element", Args: map[string]any{"element": [2]int{0, 0}}},
	}, actionCalls(queue))
	assert.Empty(t, actionCalls(stub(t, e, "grid")))
	assert.True(t, queue.Visible())

	calls := log.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "grid", calls[0].Component)
	assert.Equal(t, "show", calls[0].Action)
	assert.Equal(t, "queue", calls[1].Component)
	last := calls[2]
	assert.Equal(t, int64(3), last.Seq)
	assert.Equal(t, "add_element", last.Action)
	assert.Equal(t, "enqueue", last.EventType)
	require.NotNil(t, last.StepIndex)
	assert.Equal(t, int64(0), *last.StepIndex)
	assert.Equal(t, 1, last.Beat)
}

func TestUnknownActionListsAlternatives(t *testing.T) {
	e, _ := newEngine(t, queueScene(), WithHandler("trace_path", func(context.Context, map[string]any, float64, BeatContext) error {
		return nil
	}))

	err := e.ExecuteBeat(context.Background(), ir.Beat{Action: "trace_paht"}, 1, BeatContext{})
	require.Error(t, err)
	assert.True(t, IsUnknownAction(err))
	assert.Contains(t, err.Error(), "trace_paht")
	assert.Contains(t, err.Error(), "trace_path")
	assert.Contains(t, err.Error(), ActionPlayEvents)

	var ue *UnknownActionError
	require.True(t, errors.As(err, &ue))
	assert.Contains(t, ue.Available, ActionShowTitle)
}

func TestBindingOrderWithTies(t *testing.T) {
	scene := queueScene()
	scene.Events = map[string][]ir.EventBinding{
		"visit": {
			{Widget: "grid", Action: "mark_visited", Order: 2},
			{Widget: "grid", Action: "highlight_cell", Order: 1},
			{Widget: "queue", Action: "remove_element", Order: 1},
			{Widget: "grid", Action: "reset", Order: 0},
		},
	}
	e, log := newEngine(t, scene)

	require.NoError(t, e.HandleEvent(context.Background(), ir.VizEvent{Type: "visit", StepIndex: 4}))

	var got []string
	for _, c := range log.Calls() {
		got = append(got, c.Component+"."+c.Action)
	}
	assert.Equal(t, []string{"grid.reset", "grid.highlight_cell", "queue.remove_element", "grid.mark_visited"}, got)
}

func TestHandleEventWithoutBindingsIsNoop(t *testing.T) {
	e, log := newEngine(t, queueScene())
	require.NoError(t, e.HandleEvent(context.Background(), ir.VizEvent{Type: "dequeue", StepIndex: 1}))
	assert.Zero(t, log.Len())
}

func TestMissingActionFailsFast(t *testing.T) {
	scene := queueScene()
	scene.Events["enqueue"] = []ir.EventBinding{
		{Widget: "queue", Action: "add_elemnt", Order: 0},
		{Widget: "grid", Action: "mark_frontier", Order: 1},
	}
	e, log := newEngine(t, scene)

	err := e.HandleEvent(context.Background(), ir.VizEvent{Type: "enqueue", StepIndex: 7})
	require.Error(t, err)
	assert.True(t, component.IsUnknownAction(err))
	assert.True(t, IsEventError(err))
	assert.Contains(t, err.Error(), `"enqueue" at step 7`)
	assert.Contains(t, err.Error(), "add_elemnt")

	assert.Empty(t, actionCalls(stub(t, e, "grid")), "later bindings must not run")
	assert.Zero(t, log.Len())
}

func TestGuardSkipsBinding(t *testing.T) {
	scene := queueScene()
	scene.Events["visit"] = []ir.EventBinding{
		{Widget: "grid", Action: "mark_path", Guard: "${event.on_path}"},
		{Widget: "grid", Action: "mark_visited", Order: 1},
	}
	e, log := newEngine(t, scene)
	ctx := context.Background()

	require.NoError(t, e.HandleEvent(ctx, ir.VizEvent{Type: "visit", StepIndex: 0, Payload: map[string]any{"on_path": false}}))
	require.NoError(t, e.HandleEvent(ctx, ir.VizEvent{Type: "visit", StepIndex: 1, Payload: map[string]any{"on_path": true}}))

	var got []string
	for _, c := range log.Calls() {
		got = append(got, c.Action)
	}
	assert.Equal(t, []string{"mark_visited", "mark_path", "mark_visited"}, got)
}

func TestBindingParamsResolveAllNamespaces(t *testing.T) {
	scene := queueScene()
	scene.Timing = &ir.TimingConfig{Mode: ir.ModeFast}
	scene.Events["enqueue"] = []ir.EventBinding{{
		Widget: "queue",
		Action: "add_element",
		Params: map[string]any{
			"element":  "${event.node}",
			"duration": "${timing.events}",
			"rows":     "${config.components.grid.rows}",
			"label":    "node ${event.node.0}",
			"static":   int64(5),
		},
	}}
	e, _ := newEngine(t, scene)

	require.NoError(t, e.HandleEvent(context.Background(), ir.VizEvent{
		Type:    "enqueue",
		Payload: map[string]any{"node": [2]int{3, 5}},
	}))

	calls := actionCalls(stub(t, e, "queue"))
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{
		"element":  [2]int{3, 5},
		"duration": 0.2,
		"rows":     int64(3),
		"label":    "node 3",
		"static":   int64(5),
	}, calls[0].Args)
}

func TestResolutionErrorDuringDispatch(t *testing.T) {
	e, _ := newEngine(t, queueScene())
	err := e.HandleEvent(context.Background(), ir.VizEvent{Type: "enqueue", StepIndex: 2, Payload: map[string]any{"id": 1}})
	require.Error(t, err)
	assert.True(t, template.IsResolutionError(err))
	assert.Contains(t, err.Error(), "event.node")

	var be *BindingError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "queue", be.Widget)
}

func TestInitializeAggregatesErrors(t *testing.T) {
	scene := queueScene()
	scene.Components = append(scene.Components, ir.ComponentSpec{Name: "broken", Type: "bomb"})
	scene.Events["visit"] = []ir.EventBinding{{Widget: "heap", Action: "push"}}
	scene.Events["found"] = []ir.EventBinding{{Widget: "grid", Action: "mark_path", Params: map[string]any{"x": "${event"}}}

	types := component.StubTypes()
	types.Register("bomb", func(context.Context, ir.ComponentSpec) (component.Component, error) {
		return nil, errors.New("boom")
	})
	e := New(scene,
		WithTypes(types),
		WithLogger(quiet),
		WithHandler(ActionWait, func(context.Context, map[string]any, float64, BeatContext) error { return nil }),
	)

	err := e.Initialize(context.Background())
	require.Error(t, err)

	var ie *InitError
	require.True(t, errors.As(err, &ie))
	assert.Len(t, ie.Errs, 4)
	assert.True(t, component.IsInitializationError(err))
	assert.True(t, template.IsSyntaxError(err))
	assert.Contains(t, err.Error(), `unknown widget "heap"`)
	assert.Contains(t, err.Error(), `handler "wait" shadows`)

	assert.ErrorIs(t, e.ExecuteBeat(context.Background(), ir.Beat{Action: ActionWait}, 1, BeatContext{}), ErrNotInitialized)
}

func TestInitializeTwice(t *testing.T) {
	e, _ := newEngine(t, queueScene())
	assert.Error(t, e.Initialize(context.Background()))
}

func TestCustomHandler(t *testing.T) {
	var gotArgs map[string]any
	var gotRun float64
	var gotCtx BeatContext
	h := func(_ context.Context, args map[string]any, runTime float64, bctx BeatContext) error {
		gotArgs, gotRun, gotCtx = args, runTime, bctx
		return nil
	}
	e, log := newEngine(t, queueScene(), WithHandler("trace_path", h))

	beat := ir.Beat{Action: "trace_path", Args: map[string]any{"speed": "${timing.effects}", "algo": "${config.algorithm}"}}
	require.NoError(t, e.ExecuteBeat(context.Background(), beat, 2.5, BeatContext{Act: 1, Shot: 2, Beat: 3}))

	assert.Equal(t, map[string]any{"speed": 0.5, "algo": "bfs"}, gotArgs)
	assert.Equal(t, 2.5, gotRun)
	assert.Equal(t, BeatContext{Act: 1, Shot: 2, Beat: 3}, gotCtx)

	calls := log.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, SceneTarget, calls[0].Component)
	assert.Equal(t, 1, calls[0].Act)
	assert.Equal(t, 3, calls[0].Beat)
}

func TestCustomHandlerErrorPropagates(t *testing.T) {
	e, _ := newEngine(t, queueScene(), WithHandler("explode", func(context.Context, map[string]any, float64, BeatContext) error {
		return errors.New("kaboom")
	}))
	err := e.ExecuteBeat(context.Background(), ir.Beat{Action: "explode"}, 1, BeatContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `handler "explode": kaboom`)
}

func TestBeatArgsCannotReferenceEvent(t *testing.T) {
	e, _ := newEngine(t, queueScene())
	err := e.ExecuteBeat(context.Background(), ir.Beat{Action: ActionShowTitle, Args: map[string]any{"text": "${event.node}"}}, 1, BeatContext{})
	require.Error(t, err)
	assert.True(t, template.IsUnknownResolver(err))
}

func TestShowAndHideNamedWidgets(t *testing.T) {
	e, log := newEngine(t, queueScene())
	ctx := context.Background()

	require.NoError(t, e.ExecuteBeat(ctx, ir.Beat{Action: ActionShowWidgets, Args: map[string]any{"widgets": []any{"queue"}}}, 1, BeatContext{}))
	assert.True(t, stub(t, e, "queue").Visible())
	assert.False(t, stub(t, e, "grid").Visible())

	require.NoError(t, e.ExecuteBeat(ctx, ir.Beat{Action: ActionHideWidgets, Args: map[string]any{"widgets": "queue"}}, 1, BeatContext{}))
	assert.False(t, stub(t, e, "queue").Visible())
	assert.Equal(t, 2, log.Len())

	err := e.ExecuteBeat(ctx, ir.Beat{Action: ActionShowWidgets, Args: map[string]any{"widgets": []any{"heap"}}}, 1, BeatContext{})
	assert.True(t, component.IsUnknownComponent(err))
}

func TestSceneLevelActionsRecord(t *testing.T) {
	e, log := newEngine(t, queueScene())
	ctx := context.Background()

	require.NoError(t, e.ExecuteBeat(ctx, ir.Beat{Action: ActionShowTitle, Args: map[string]any{"text": "BFS"}}, 1, BeatContext{}))
	require.NoError(t, e.ExecuteBeat(ctx, ir.Beat{Action: ActionWait}, 1, BeatContext{}))
	require.NoError(t, e.ExecuteBeat(ctx, ir.Beat{Action: ActionOutro}, 1, BeatContext{}))

	calls := log.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, map[string]any{"text": "BFS"}, calls[0].Args)
	for i, want := range []string{ActionShowTitle, ActionWait, ActionOutro} {
		assert.Equal(t, SceneTarget, calls[i].Component)
		assert.Equal(t, want, calls[i].Action)
		assert.Equal(t, int64(i+1), calls[i].Seq)
	}
}

func TestPlayEventsAdapterFailureCarriesLastStep(t *testing.T) {
	events := []ir.VizEvent{
		{Type: "enqueue", StepIndex: 0, Payload: map[string]any{"node": [2]int{0, 0}}},
		{Type: "dequeue", StepIndex: 1},
	}
	adapters := adapter.NewRegistry(adapter.NewScripted("bfs", events...).FailWith(errors.New("grid exploded")))
	e, _ := newEngine(t, queueScene(), WithAdapters(adapters))

	err := e.ExecuteBeat(context.Background(), ir.Beat{Action: ActionPlayEvents}, 1, BeatContext{})
	require.Error(t, err)

	var ae *AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "bfs", ae.Algorithm)
	assert.Equal(t, int64(1), ae.LastStep)
	assert.Contains(t, err.Error(), "grid exploded")
}

func TestPlayEventsUnknownAdapter(t *testing.T) {
	e, _ := newEngine(t, queueScene())
	err := e.ExecuteBeat(context.Background(), ir.Beat{Action: ActionPlayEvents, Args: map[string]any{"algorithm": "dfs"}}, 1, BeatContext{})
	require.Error(t, err)
	assert.True(t, IsAdapterError(err))
	assert.True(t, adapter.IsUnknownAdapter(err))
}

func TestPlayEventsRejectsNonIncreasingSteps(t *testing.T) {
	adapters := adapter.NewRegistry(adapter.NewScripted("bfs",
		ir.VizEvent{Type: "dequeue", StepIndex: 3},
		ir.VizEvent{Type: "dequeue", StepIndex: 3},
	))
	e, _ := newEngine(t, queueScene(), WithAdapters(adapters))

	err := e.ExecuteBeat(context.Background(), ir.Beat{Action: ActionPlayEvents}, 1, BeatContext{})
	var so *StepOrderError
	require.True(t, errors.As(err, &so))
	assert.Equal(t, int64(3), so.Previous)
	assert.Equal(t, int64(3), so.Got)
}

func TestPlayEventsBudget(t *testing.T) {
	var events []ir.VizEvent
	for i := range 5 {
		events = append(events, ir.VizEvent{Type: "dequeue", StepIndex: int64(i)})
	}
	adapters := adapter.NewRegistry(adapter.NewScripted("bfs", events...))
	e, _ := newEngine(t, queueScene(), WithAdapters(adapters), WithMaxEvents(3))

	err := e.ExecuteBeat(context.Background(), ir.Beat{Action: ActionPlayEvents}, 1, BeatContext{})
	require.Error(t, err)
	assert.True(t, IsEventsExceeded(err))
}

func TestPlayEventsWithScenario(t *testing.T) {
	scene := queueScene()
	scene.Events["visit"] = []ir.EventBinding{{Widget: "grid", Action: "mark_visited", Params: map[string]any{"cell": "${event.node}"}}}
	adapters := adapter.NewRegistry(adapter.NewBFS())
	e, log := newEngine(t, scene, WithAdapters(adapters))

	beat := ir.Beat{Action: ActionPlayEvents, Args: map[string]any{
		"scenario": map[string]any{"rows": int64(1), "cols": int64(2), "start": []any{int64(0), int64(0)}, "goal": []any{int64(0), int64(1)}},
	}}
	require.NoError(t, e.ExecuteBeat(context.Background(), beat, 1, BeatContext{}))
	assert.NotZero(t, log.Len())

	for _, c := range log.Calls() {
		require.NotNil(t, c.StepIndex)
	}
}

func TestPlaybackIsDeterministic(t *testing.T) {
	run := func() string {
		scene := queueScene()
		scene.Events["visit"] = []ir.EventBinding{{Widget: "grid", Action: "mark_visited", Params: map[string]any{"cell": "${event.node}", "depth": "${event.depth}"}}}
		adapters := adapter.NewRegistry(adapter.NewBFS())
		e, log := newEngine(t, scene, WithAdapters(adapters))
		beat := ir.Beat{Action: ActionPlayEvents, Args: map[string]any{
			"scenario": map[string]any{"rows": int64(3), "cols": int64(3), "start": []any{int64(0), int64(0)}, "goal": []any{int64(2), int64(2)}},
		}}
		require.NoError(t, e.ExecuteBeat(context.Background(), ir.Beat{Action: ActionShowWidgets}, 1, BeatContext{}))
		require.NoError(t, e.ExecuteBeat(context.Background(), beat, 1, BeatContext{Beat: 1}))
		digest, err := log.Digest()
		require.NoError(t, err)
		return digest
	}

	assert.Equal(t, run(), run())
}

func TestMetricsCountDispatchedEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := timing.NewMetrics(reg)
	adapters := adapter.NewRegistry(adapter.NewScripted("bfs",
		ir.VizEvent{Type: "enqueue", StepIndex: 0, Payload: map[string]any{"node": "a"}},
		ir.VizEvent{Type: "enqueue", StepIndex: 1, Payload: map[string]any{"node": "b"}},
	))
	e, _ := newEngine(t, queueScene(), WithAdapters(adapters), WithMetrics(m))
	require.NoError(t, e.ExecuteBeat(context.Background(), ir.Beat{Action: ActionPlayEvents}, 1, BeatContext{}))

	expected := `
# HELP storyviz_events_dispatched_total Total number of visualization events routed through bindings.
# TYPE storyviz_events_dispatched_total counter
storyviz_events_dispatched_total{event_type="enqueue"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "storyviz_events_dispatched_total"))
}

func TestCustomResolver(t *testing.T) {
	theme := template.Values(map[string]any{"accent": "#ff0"})
	scene := queueScene()
	scene.Events["enqueue"][0].Params["color"] = "${theme.accent}"
	e, _ := newEngine(t, scene, WithResolver("theme", theme))

	require.NoError(t, e.HandleEvent(context.Background(), ir.VizEvent{Type: "enqueue", Payload: map[string]any{"node": int64(1)}}))
	calls := actionCalls(stub(t, e, "queue"))
	require.Len(t, calls, 1)
	assert.Equal(t, "#ff0", calls[0].Args["color"])

	bad := New(queueScene(), WithLogger(quiet), WithResolver(template.NamespaceEvent, theme))
	assert.Error(t, bad.Initialize(context.Background()))
}

func TestCloseReleasesComponents(t *testing.T) {
	e := New(queueScene(), WithLogger(quiet))
	require.NoError(t, e.Initialize(context.Background()))
	grid := stub(t, e, "grid")
	require.NoError(t, e.Close())
	assert.True(t, grid.Closed())

	_, err := e.Component("grid")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestEventBudget(t *testing.T) {
	b := NewEventBudget(2)
	require.NoError(t, b.Check("bfs"))
	require.NoError(t, b.Check("bfs"))
	err := b.Check("bfs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 events > 2 limit")
	assert.Equal(t, 3, b.Current())
	assert.Equal(t, 2, b.Limit())
}
