package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, path string) *Scenario {
	t.Helper()
	s, err := LoadScenario(path)
	require.NoError(t, err)
	return s
}

func TestRun_SingleEnqueue(t *testing.T) {
	result, err := RunWithGolden(t, load(t, "testdata/scenarios/single_enqueue.yaml"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "single-enqueue-run", result.RunID)
	assert.Empty(t, result.RunError)
	assert.NotEmpty(t, result.Digest)
	require.Len(t, result.Calls, 3)
}

func TestRun_BFSGrid(t *testing.T) {
	result, err := Run(context.Background(), load(t, "testdata/scenarios/bfs_grid.yaml"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "test-run-default", result.RunID)
}

func TestRun_ExpectedError(t *testing.T) {
	result, err := Run(context.Background(), load(t, "testdata/scenarios/typo.yaml"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.RunError, `unknown action "trace_paht"`)
}

func TestRun_Deterministic(t *testing.T) {
	s := load(t, "testdata/scenarios/single_enqueue.yaml")
	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, first.Calls, second.Calls)
	assert.Equal(t, first.Digest, second.Digest)
}

func TestRun_FailingAssertionsReported(t *testing.T) {
	s := load(t, "testdata/scenarios/single_enqueue.yaml")
	s.Assertions = []Assertion{
		{Type: AssertCallCount, Component: "queue", Action: "add_element", Count: 5},
		{Type: AssertFinalState, Expect: map[string]any{"status": "failed"}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "5 occurrences of queue.add_element")
	assert.Contains(t, result.Errors[1], `field "status" = failed`)
}

func TestRun_UnexpectedRunError(t *testing.T) {
	s := load(t, "testdata/scenarios/typo.yaml")
	s.ExpectError = ""

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "run failed")
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	s := load(t, "testdata/scenarios/single_enqueue.yaml")
	s.ExpectError = "boom"

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `expected run error containing "boom", run completed`)
}

func TestRun_ExpectedErrorMismatch(t *testing.T) {
	s := load(t, "testdata/scenarios/typo.yaml")
	s.ExpectError = "something else"

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `expected run error containing "something else"`)
}

func TestRun_BadSceneDocument(t *testing.T) {
	s := &Scenario{
		Name:       "broken",
		Scene:      "testdata/storyboards/intro.yaml",
		Storyboard: "testdata/storyboards/intro.yaml",
	}
	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load scene")
}

func TestMarshalSnapshot(t *testing.T) {
	result, err := Run(context.Background(), load(t, "testdata/scenarios/single_enqueue.yaml"))
	require.NoError(t, err)

	data, err := MarshalSnapshot("single_enqueue", result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"single_enqueue"`)
	assert.Contains(t, string(data), `"args":{"element":[0,0]}`)
	assert.NotContains(t, string(data), `"args":null`)
}
