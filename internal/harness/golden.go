package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/storyviz/internal/ir"
)

// TraceSnapshot captures the call trace of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string    `json:"scenario_name"`
	RunID        string    `json:"run_id,omitempty"`
	Calls        []ir.Call `json:"calls"`
}

// toCanonicalMap converts a TraceSnapshot to the plain value model accepted
// by ir.MarshalCanonical. Empty args, event types and step indices are
// omitted.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	calls := make([]any, len(s.Calls))
	for i, call := range s.Calls {
		m := map[string]any{
			"seq":       call.Seq,
			"component": call.Component,
			"action":    call.Action,
			"act":       int64(call.Act),
			"shot":      int64(call.Shot),
			"beat":      int64(call.Beat),
		}
		if len(call.Args) > 0 {
			m["args"] = call.Args
		}
		if call.EventType != "" {
			m["event_type"] = call.EventType
		}
		if call.StepIndex != nil {
			m["step_index"] = *call.StepIndex
		}
		calls[i] = m
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"calls":         calls,
	}
	if s.RunID != "" {
		result["run_id"] = s.RunID
	}
	return result
}

// MarshalSnapshot returns the canonical JSON of a scenario's trace.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		Calls:        result.Calls,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
