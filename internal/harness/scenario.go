package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/storyviz/internal/ir"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scene and Storyboard are document paths, relative to the scenario file.
	Scene      string `yaml:"scene"`
	Storyboard string `yaml:"storyboard"`

	// Mode overrides the scene's timing mode.
	Mode ir.Mode `yaml:"mode,omitempty"`

	// Events, when present, are played by a scripted adapter registered
	// under the scene's algorithm.
	Events []ir.VizEvent `yaml:"events,omitempty"`

	// ExpectError is a substring the run error must contain. Empty means the
	// run must complete.
	ExpectError string `yaml:"expect_error,omitempty"`

	Assertions []Assertion `yaml:"assertions"`

	// RunID is the fixed run ID. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// dir is the directory of the scenario file; relative paths resolve here.
	dir string
}

// Dir returns the directory scenario paths are resolved against.
func (s *Scenario) Dir() string {
	return s.dir
}

// Assertion validates the call trace or the persisted run.
type Assertion struct {
	// Type is one of calls_contain, call_order, call_count, final_state.
	Type string `yaml:"type"`

	// Component and Action select calls (calls_contain, call_count).
	Component string `yaml:"component,omitempty"`
	Action    string `yaml:"action,omitempty"`

	// Args are matched as a subset (calls_contain).
	Args map[string]any `yaml:"args,omitempty"`

	// Count is the exact number of matching calls (call_count).
	Count int `yaml:"count,omitempty"`

	// Calls lists "component.action" names in expected order (call_order).
	Calls []string `yaml:"calls,omitempty"`

	// Expect holds run fields to compare (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertCallsContain = "calls_contain"
	AssertCallOrder    = "call_order"
	AssertCallCount    = "call_count"
	AssertFinalState   = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields,
// missing required fields and missing referenced documents are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.dir = filepath.Dir(path)
	for i := range scenario.Assertions {
		a := &scenario.Assertions[i]
		a.Args = ir.NormalizeMap(a.Args)
		a.Expect = ir.NormalizeMap(a.Expect)
	}
	for i := range scenario.Events {
		ev := &scenario.Events[i]
		ev.Payload = ir.NormalizeMap(ev.Payload)
		ev.Metadata = ir.NormalizeMap(ev.Metadata)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Resolve returns p resolved against the scenario directory.
func (s *Scenario) Resolve(p string) string {
	if filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Scene == "" {
		return fmt.Errorf("scene is required")
	}
	if s.Storyboard == "" {
		return fmt.Errorf("storyboard is required")
	}
	if s.Mode != "" && !ir.ValidModes[s.Mode] {
		return fmt.Errorf("mode %q is not one of draft, normal, fast", s.Mode)
	}
	if len(s.Assertions) == 0 && s.ExpectError == "" {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}

	for _, ref := range []struct{ field, path string }{
		{"scene", s.Scene},
		{"storyboard", s.Storyboard},
	} {
		resolved := s.Resolve(ref.path)
		if _, err := os.Stat(resolved); os.IsNotExist(err) {
			return &MissingDocumentError{Field: ref.field, Path: ref.path, Resolved: resolved}
		}
	}

	for i, ev := range s.Events {
		if ev.Type == "" {
			return fmt.Errorf("events[%d]: type is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCallsContain:
		if a.Component == "" || a.Action == "" {
			return fmt.Errorf("assertions[%d]: component and action are required for calls_contain", index)
		}
	case AssertCallOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for call_order", index)
		}
	case AssertCallCount:
		if a.Component == "" || a.Action == "" {
			return fmt.Errorf("assertions[%d]: component and action are required for call_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for call_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
