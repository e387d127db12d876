package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string    // Assertion type for categorization
	Expected string    // Human-readable expected outcome
	Actual   string    // Human-readable actual outcome
	Calls    []ir.Call // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Calls) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, call := range e.Calls {
			fmt.Fprintf(&buf, "  [%d] %s.%s %v\n", call.Seq, call.Component, call.Action, call.Args)
		}
	}
	return buf.String()
}

// AssertionContext provides the persisted run for final_state assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// EvaluateAssertions evaluates all assertions and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCallsContain:
			err = assertCallsContain(result.Calls, assertion)
		case AssertCallOrder:
			err = assertCallOrder(result.Calls, assertion)
		case AssertCallCount:
			err = assertCallCount(result.Calls, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a store", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, actx.RunID, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func callName(c ir.Call) string {
	return c.Component + "." + c.Action
}

// assertCallsContain checks that some call targets component.action with
// args matching the expected subset.
func assertCallsContain(calls []ir.Call, assertion Assertion) error {
	for _, call := range calls {
		if call.Component == assertion.Component && call.Action == assertion.Action && matchArgs(call.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertCallsContain,
		Expected: fmt.Sprintf("%s.%s with args %v", assertion.Component, assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Calls:    calls,
	}
}

// assertCallOrder checks that the named calls appear in order. They need not
// be consecutive; each name matches its first occurrence after the previous.
func assertCallOrder(calls []ir.Call, assertion Assertion) error {
	pos := 0
	for i, want := range assertion.Calls {
		found := false
		for pos < len(calls) {
			name := callName(calls[pos])
			pos++
			if name == want {
				found = true
				break
			}
		}
		if !found {
			actual := fmt.Sprintf("%s not found after %v", want, assertion.Calls[:i])
			if i == 0 {
				actual = fmt.Sprintf("missing call: %s", want)
			}
			return &AssertionError{
				Type:     AssertCallOrder,
				Expected: fmt.Sprintf("calls in order: %v", assertion.Calls),
				Actual:   actual,
				Calls:    calls,
			}
		}
	}
	return nil
}

// assertCallCount checks that component.action appears exactly Count times.
func assertCallCount(calls []ir.Call, assertion Assertion) error {
	count := 0
	for _, call := range calls {
		if call.Component == assertion.Component && call.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%d occurrences of %s.%s", assertion.Count, assertion.Component, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Calls:    calls,
		}
	}
	return nil
}

// assertFinalState compares fields of the persisted run row with subset
// semantics.
func assertFinalState(ctx context.Context, st *store.Store, runID string, assertion Assertion) error {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("run %s persisted", runID),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}

	row := runFields(run)
	for _, key := range ir.SortedKeys(assertion.Expect) {
		expected := assertion.Expect[key]
		actual, exists := row[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in run fields: %v", key, ir.SortedKeys(row)),
			}
		}
		if !valuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", key, expected),
				Actual:   fmt.Sprintf("field %q = %v", key, actual),
			}
		}
	}
	return nil
}

func runFields(run store.Run) map[string]any {
	return map[string]any{
		"id":           run.ID,
		"scene":        run.Scene,
		"algorithm":    run.Algorithm,
		"storyboard":   run.Storyboard,
		"mode":         string(run.Mode),
		"scene_digest": run.SceneDigest,
		"trace_digest": run.TraceDigest,
		"status":       string(run.Status),
		"error":        run.Error,
	}
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !valuesEqual(want, got) {
			return false
		}
	}
	return true
}

// valuesEqual compares values by their canonical JSON form, so a YAML list
// [0, 0] matches a [2]int{0, 0} payload value.
func valuesEqual(expected, actual any) bool {
	e, err := ir.MarshalCanonical(expected)
	if err != nil {
		return false
	}
	a, err := ir.MarshalCanonical(actual)
	if err != nil {
		return false
	}
	return bytes.Equal(e, a)
}
