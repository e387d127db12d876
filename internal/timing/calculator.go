package timing

import (
	"fmt"
	"math"

	"github.com/roach88/storyviz/internal/ir"
)

// Input describes one beat for duration computation.
type Input struct {
	Action string
	// Narration is the narration duration in seconds, nil when the beat is
	// not narrated or narration is disabled.
	Narration *float64
	Min       *float64
	Max       *float64
}

// Calculator computes beat durations from a validated TimingConfig.
// It never consults quality or resolution settings.
type Calculator struct {
	cfg        ir.TimingConfig
	multiplier float64
}

// NewCalculator validates cfg and returns a calculator for it.
func NewCalculator(cfg ir.TimingConfig) (*Calculator, error) {
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("timing config: %w", err)
	}
	return &Calculator{cfg: cfg, multiplier: cfg.Multipliers[cfg.Mode]}, nil
}

// Mode returns the active mode.
func (c *Calculator) Mode() ir.Mode { return c.cfg.Mode }

// Multiplier returns the active mode's multiplier.
func (c *Calculator) Multiplier() float64 { return c.multiplier }

// Config returns the underlying configuration.
func (c *Calculator) Config() ir.TimingConfig { return c.cfg }

// BucketFor returns the bucket name for action.
func (c *Calculator) BucketFor(action string) string {
	if b, ok := c.cfg.ActionBuckets[action]; ok {
		return b
	}
	return ir.BucketDefault
}

// Base returns bucket(action) * multiplier(mode).
func (c *Calculator) Base(action string) float64 {
	return c.cfg.Buckets[c.BucketFor(action)] * c.multiplier
}

// Compute applies the hybrid timing law:
//
//	base = bucket(action) * multiplier(mode)
//	run  = max(base, narration)      when narration is given
//	run  = clamp(run, min, max)
//
// min > max is a BoundsError. Narration is never clipped by the mode; only
// an explicit max can shorten it.
func (c *Calculator) Compute(in Input) (float64, error) {
	if in.Min != nil && in.Max != nil && *in.Min > *in.Max {
		return 0, &BoundsError{Action: in.Action, Min: *in.Min, Max: *in.Max}
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{{"narration", in.Narration}, {"min_duration", in.Min}, {"max_duration", in.Max}} {
		if f.v != nil && (*f.v < 0 || math.IsNaN(*f.v)) {
			return 0, fmt.Errorf("%s for %q must be a non-negative number, got %v", f.name, in.Action, *f.v)
		}
	}

	run := c.Base(in.Action)
	if in.Narration != nil {
		run = math.Max(run, *in.Narration)
	}
	if in.Min != nil {
		run = math.Max(run, *in.Min)
	}
	if in.Max != nil {
		run = math.Min(run, *in.Max)
	}
	return run, nil
}

// ForBeat computes the duration of beat with an optional narration duration.
func (c *Calculator) ForBeat(beat ir.Beat, narration *float64) (float64, error) {
	return c.Compute(Input{
		Action:    beat.Action,
		Narration: narration,
		Min:       beat.MinDuration,
		Max:       beat.MaxDuration,
	})
}

// View returns the template namespace view: every bucket scaled by the
// active multiplier plus "mode" and "multiplier".
func (c *Calculator) View() map[string]any {
	view := make(map[string]any, len(c.cfg.Buckets)+2)
	for name, seconds := range c.cfg.Buckets {
		view[name] = seconds * c.multiplier
	}
	view["mode"] = string(c.cfg.Mode)
	view["multiplier"] = c.multiplier
	return view
}
