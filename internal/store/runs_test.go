package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storyviz/internal/ir"
)

var started = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func testRun(id string) Run {
	return Run{
		ID:          id,
		Scene:       "bfs-grid",
		Algorithm:   "bfs",
		Storyboard:  "intro",
		Mode:        ir.ModeFast,
		SceneDigest: "abc123",
		StartedAt:   started,
	}
}

func step(i int64) *int64 { return &i }

func testCalls() []ir.Call {
	return []ir.Call{
		{Seq: 1, Component: "grid", Action: "show", Args: map[string]any{}},
		{Seq: 2, Component: "queue", Action: "add_element", Args: map[string]any{"element": [2]int{0, 0}},
			EventType: "enqueue", StepIndex: step(0), Act: 0, Shot: 1, Beat: 1},
		{Seq: 3, Component: "grid", Action: "mark_visited", Args: map[string]any{"cell": []any{int64(0), int64(0)}, "duration": 0.2},
			EventType: "visit", StepIndex: step(1), Act: 0, Shot: 1, Beat: 1},
		{Seq: 4, Component: "scene", Action: "outro", Args: nil, Act: 1},
	}
}

func TestBeginAndReadRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.BeginRun(ctx, testRun("run-1")))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "bfs-grid", run.Scene)
	assert.Equal(t, ir.ModeFast, run.Mode)
	assert.Equal(t, StatusRunning, run.Status)
	assert.True(t, started.Equal(run.StartedAt))
	assert.True(t, run.FinishedAt.IsZero())
	assert.Empty(t, run.TraceDigest)
}

func TestBeginRunDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.BeginRun(ctx, testRun("run-1")))
	assert.Error(t, s.BeginRun(ctx, testRun("run-1")))
	assert.Error(t, s.BeginRun(ctx, testRun("")))
}

func TestReadRunNotFound(t *testing.T) {
	_, err := openTestStore(t).ReadRun(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestFinishRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.BeginRun(ctx, testRun("ok")))
	require.NoError(t, s.BeginRun(ctx, testRun("bad")))

	finished := started.Add(3 * time.Second)
	require.NoError(t, s.FinishRun(ctx, "ok", "digest-1", nil, finished))
	require.NoError(t, s.FinishRun(ctx, "bad", "", errors.New("act 0 shot 0 beat 1 (trace_paht): unknown action"), finished))

	ok, err := s.ReadRun(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, ok.Status)
	assert.Equal(t, "digest-1", ok.TraceDigest)
	assert.True(t, finished.Equal(ok.FinishedAt))

	bad, err := s.ReadRun(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, bad.Status)
	assert.Contains(t, bad.Error, "trace_paht")

	err = s.FinishRun(ctx, "ghost", "", nil, finished)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListAndLatestRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.BeginRun(ctx, testRun(id)))
	}
	other := testRun("d")
	other.Scene = "dijkstra"
	require.NoError(t, s.BeginRun(ctx, other))

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids)

	latest, err := s.LatestRun(ctx, "bfs-grid")
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)

	_, err = s.LatestRun(ctx, "heapsort")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestWriteAndReadCalls(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.BeginRun(ctx, testRun("run-1")))

	rec := s.Recorder("run-1")
	for _, c := range testCalls() {
		require.NoError(t, rec.Record(ctx, c))
	}

	calls, err := s.ReadCalls(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, calls, 4)

	// Opaque values come back in the plain value model.
	assert.Equal(t, map[string]any{"element": []any{int64(0), int64(0)}}, calls[1].Args)
	assert.Equal(t, "enqueue", calls[1].EventType)
	require.NotNil(t, calls[1].StepIndex)
	assert.Equal(t, int64(0), *calls[1].StepIndex)
	assert.Equal(t, 1, calls[1].Shot)
	assert.InDelta(t, 0.2, calls[2].Args["duration"], 1e-9)
	assert.Nil(t, calls[0].StepIndex)
	assert.Equal(t, map[string]any{}, calls[3].Args)
	assert.Equal(t, 1, calls[3].Act)
}

func TestWriteCallIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.BeginRun(ctx, testRun("run-1")))

	call := ir.Call{Seq: 1, Component: "grid", Action: "reset"}
	require.NoError(t, s.WriteCall(ctx, "run-1", call))
	require.NoError(t, s.WriteCall(ctx, "run-1", call))

	calls, err := s.ReadCalls(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, calls, 1)
}

func TestWriteCallUnknownRun(t *testing.T) {
	err := openTestStore(t).WriteCall(context.Background(), "ghost", ir.Call{Seq: 1, Component: "grid", Action: "reset"})
	assert.Error(t, err)
}

func TestCallsForEvent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.BeginRun(ctx, testRun("run-1")))
	for _, c := range testCalls() {
		require.NoError(t, s.WriteCall(ctx, "run-1", c))
	}

	visits, err := s.CallsForEvent(ctx, "run-1", "visit")
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, "mark_visited", visits[0].Action)

	none, err := s.CallsForEvent(ctx, "run-1", "dequeue")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoredDigestMatchesLiveTrace(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.BeginRun(ctx, testRun("run-1")))

	live := testCalls()
	for _, c := range live {
		require.NoError(t, s.WriteCall(ctx, "run-1", c))
	}

	want, err := ir.TraceDigest(live)
	require.NoError(t, err)
	got, err := s.Digest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTimingRecords(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.BeginRun(ctx, testRun("run-1")))

	recs := []ir.TimingRecord{
		{BeatID: ir.BeatID(0, 0, 1), Action: "play_events", Expected: 0.2, Measured: 0.01, Mode: ir.ModeFast, Beat: 1, Timestamp: started.Add(time.Second)},
		{BeatID: ir.BeatID(0, 0, 0), Action: "show_title", Expected: 0.25, Measured: 0.001, Mode: ir.ModeFast, Timestamp: started},
	}
	require.NoError(t, s.WriteTimingRecords(ctx, "run-1", recs))
	require.NoError(t, s.WriteTimingRecord(ctx, "run-1", recs[0]))

	got, err := s.ReadTimingRecords(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a0.s0.b0", got[0].BeatID)
	assert.Equal(t, "show_title", got[0].Action)
	assert.InDelta(t, 0.25, got[0].Expected, 1e-9)
	assert.True(t, started.Equal(got[0].Timestamp))
	assert.Equal(t, "a0.s0.b1", got[1].BeatID)
	assert.Equal(t, ir.ModeFast, got[1].Mode)
}

func TestCompareRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.BeginRun(ctx, testRun(id)))
	}

	calls := testCalls()
	for _, c := range calls {
		require.NoError(t, s.WriteCall(ctx, "a", c))
		require.NoError(t, s.WriteCall(ctx, "b", c))
	}
	changed := calls[2]
	changed.Action = "mark_frontier"
	require.NoError(t, s.WriteCall(ctx, "c", calls[0]))
	require.NoError(t, s.WriteCall(ctx, "c", calls[1]))
	require.NoError(t, s.WriteCall(ctx, "c", changed))

	same, err := s.CompareRuns(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, same.Identical())
	assert.Equal(t, "identical", same.String())

	diff, err := s.CompareRuns(ctx, "a", "c")
	require.NoError(t, err)
	assert.False(t, diff.Identical())
	assert.Equal(t, 2, diff.Index)
	assert.Equal(t, "mark_visited", diff.Left.Action)
	assert.Equal(t, "mark_frontier", diff.Right.Action)
}

func TestCompareCallsLengthMismatch(t *testing.T) {
	calls := testCalls()

	d := CompareCalls(calls, calls[:2])
	assert.Equal(t, 2, d.Index)
	assert.NotNil(t, d.Left)
	assert.Nil(t, d.Right)
	assert.Contains(t, d.String(), "<end of trace>")
}
