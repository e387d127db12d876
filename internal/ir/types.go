package ir

import (
	"fmt"
	"time"
)

// Storyboard is the root of the narrative tree.
type Storyboard struct {
	Name string `json:"name" yaml:"name"`
	Acts []Act  `json:"acts" yaml:"acts"`
}

// Act groups shots under a title.
type Act struct {
	Title string `json:"title" yaml:"title"`
	Shots []Shot `json:"shots" yaml:"shots"`
}

// Shot is an ordered list of beats.
type Shot struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Beats []Beat `json:"beats" yaml:"beats"`
}

// Beat is the smallest narrative unit: one action plus its arguments.
type Beat struct {
	Action      string            `json:"action" yaml:"action"`
	Args        map[string]any    `json:"args,omitempty" yaml:"args,omitempty"`
	Narration   string            `json:"narration,omitempty" yaml:"narration,omitempty"`
	Cues        map[string]string `json:"cues,omitempty" yaml:"cues,omitempty"` // cue word -> action
	MinDuration *float64          `json:"min_duration,omitempty" yaml:"min_duration,omitempty"`
	MaxDuration *float64          `json:"max_duration,omitempty" yaml:"max_duration,omitempty"`
}

// BeatCount returns the total number of beats in the storyboard.
func (s *Storyboard) BeatCount() int {
	n := 0
	for _, act := range s.Acts {
		for _, shot := range act.Shots {
			n += len(shot.Beats)
		}
	}
	return n
}

// ComponentSpec declares one named visual component.
type ComponentSpec struct {
	Name   string         `json:"-" yaml:"-"` // key in the components mapping
	Type   string         `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// EventBinding maps one event type to a component action.
type EventBinding struct {
	Widget string         `json:"widget" yaml:"widget"`
	Action string         `json:"action" yaml:"action"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Order  int            `json:"order" yaml:"order"`
	Guard  string         `json:"guard,omitempty" yaml:"guard,omitempty"` // template; falsy skips the binding
}

// SceneConfig is the declarative bundle of components and event bindings
// for one algorithm/visualization pairing. Read-only after load.
type SceneConfig struct {
	Name       string                    `json:"name" yaml:"name"`
	Algorithm  string                    `json:"algorithm" yaml:"algorithm"`
	Components []ComponentSpec           `json:"components" yaml:"components"` // declaration order
	Events     map[string][]EventBinding `json:"events,omitempty" yaml:"events,omitempty"`
	Timing     *TimingConfig             `json:"timing,omitempty" yaml:"timing,omitempty"` // optional overrides
}

// ComponentNames returns component names in declaration order.
func (c *SceneConfig) ComponentNames() []string {
	names := make([]string, len(c.Components))
	for i, spec := range c.Components {
		names[i] = spec.Name
	}
	return names
}

// Component returns the spec with the given name.
func (c *SceneConfig) Component(name string) (ComponentSpec, bool) {
	for _, spec := range c.Components {
		if spec.Name == name {
			return spec, true
		}
	}
	return ComponentSpec{}, false
}

// Tree returns the configuration as a nested map, the shape exposed to
// templates under the "config" namespace.
func (c *SceneConfig) Tree() map[string]any {
	components := make(map[string]any, len(c.Components))
	for _, spec := range c.Components {
		entry := map[string]any{"type": spec.Type}
		params := make(map[string]any, len(spec.Params))
		for k, v := range spec.Params {
			params[k] = v
			// Params are also reachable directly: ${config.components.grid.rows}
			if _, clash := entry[k]; !clash {
				entry[k] = v
			}
		}
		entry["params"] = params
		components[spec.Name] = entry
	}
	return map[string]any{
		"name":       c.Name,
		"algorithm":  c.Algorithm,
		"components": components,
	}
}

// Mode is a timing mode. The set is closed.
type Mode string

const (
	ModeDraft  Mode = "draft"
	ModeNormal Mode = "normal"
	ModeFast   Mode = "fast"
)

// ValidModes defines allowed timing modes.
var ValidModes = map[Mode]bool{
	ModeDraft:  true,
	ModeNormal: true,
	ModeFast:   true,
}

// Duration bucket names.
const (
	BucketUI      = "ui"
	BucketEvents  = "events"
	BucketEffects = "effects"
	BucketWaits   = "waits"
	BucketDefault = "default"
)

// TimingConfig holds base duration buckets (seconds), the active mode and
// the mode multiplier table. When embedded in a SceneConfig, non-empty
// fields override the run defaults.
type TimingConfig struct {
	Mode          Mode               `json:"mode,omitempty" yaml:"mode,omitempty"`
	Buckets       map[string]float64 `json:"buckets,omitempty" yaml:"buckets,omitempty"`
	Multipliers   map[Mode]float64   `json:"multipliers,omitempty" yaml:"multipliers,omitempty"`
	ActionBuckets map[string]string  `json:"action_buckets,omitempty" yaml:"action_buckets,omitempty"`
}

// VizEvent is one record emitted by an algorithm adapter.
type VizEvent struct {
	Type      string         `json:"type" yaml:"type"`
	Payload   map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
	StepIndex int64          `json:"step_index" yaml:"step_index"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// TimingRecord is one append-only telemetry row per executed beat.
type TimingRecord struct {
	BeatID    string    `json:"beat_id"`
	Action    string    `json:"action"`
	Expected  float64   `json:"expected"` // seconds
	Measured  float64   `json:"measured"` // seconds
	Mode      Mode      `json:"mode"`
	Act       int       `json:"act"`
	Shot      int       `json:"shot"`
	Beat      int       `json:"beat"`
	Timestamp time.Time `json:"timestamp"`
}

// BeatID formats the stable identifier of a beat position.
func BeatID(act, shot, beat int) string {
	return fmt.Sprintf("a%d.s%d.b%d", act, shot, beat)
}

// Call is one dispatched component action. Calls are the determinism
// evidence: identical inputs must produce identical call sequences.
type Call struct {
	Seq       int64          `json:"seq"`
	Component string         `json:"component"`
	Action    string         `json:"action"`
	Args      map[string]any `json:"args"`
	EventType string         `json:"event_type,omitempty"`
	StepIndex *int64         `json:"step_index,omitempty"`
	Act       int            `json:"act"`
	Shot      int            `json:"shot"`
	Beat      int            `json:"beat"`
}
