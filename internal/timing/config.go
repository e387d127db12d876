package timing

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/storyviz/internal/ir"
)

// DefaultBuckets are the base durations in seconds.
var DefaultBuckets = map[string]float64{
	ir.BucketUI:      1.0,
	ir.BucketEvents:  0.8,
	ir.BucketEffects: 0.5,
	ir.BucketWaits:   1.0,
	ir.BucketDefault: 1.0,
}

// DefaultMultipliers scale base durations per mode.
var DefaultMultipliers = map[ir.Mode]float64{
	ir.ModeDraft:  0.5,
	ir.ModeNormal: 1.0,
	ir.ModeFast:   0.25,
}

// DefaultActionBuckets maps built-in actions to buckets. Unlisted actions
// use the default bucket.
var DefaultActionBuckets = map[string]string{
	"show_title":   ir.BucketUI,
	"outro":        ir.BucketUI,
	"show_widgets": ir.BucketUI,
	"hide_widgets": ir.BucketUI,
	"play_events":  ir.BucketEvents,
	"wait":         ir.BucketWaits,
}

// Defaults returns a fresh copy of the default timing configuration.
func Defaults() ir.TimingConfig {
	return ir.TimingConfig{
		Mode:          ir.ModeNormal,
		Buckets:       maps.Clone(DefaultBuckets),
		Multipliers:   maps.Clone(DefaultMultipliers),
		ActionBuckets: maps.Clone(DefaultActionBuckets),
	}
}

// Merge overlays override onto base. Non-empty override fields win; maps
// merge key by key. Neither input is modified.
func Merge(base ir.TimingConfig, override *ir.TimingConfig) ir.TimingConfig {
	out := ir.TimingConfig{
		Mode:          base.Mode,
		Buckets:       maps.Clone(base.Buckets),
		Multipliers:   maps.Clone(base.Multipliers),
		ActionBuckets: maps.Clone(base.ActionBuckets),
	}
	if override == nil {
		return out
	}
	if override.Mode != "" {
		out.Mode = override.Mode
	}
	out.Buckets = mergeMap(out.Buckets, override.Buckets)
	out.Multipliers = mergeMap(out.Multipliers, override.Multipliers)
	out.ActionBuckets = mergeMap(out.ActionBuckets, override.ActionBuckets)
	return out
}

func mergeMap[K comparable, V any](dst, src map[K]V) map[K]V {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[K]V, len(src))
	}
	maps.Copy(dst, src)
	return dst
}

// Validate checks a timing configuration. All problems are reported.
func Validate(cfg ir.TimingConfig) error {
	var errs []error
	if !ir.ValidModes[cfg.Mode] {
		errs = append(errs, fmt.Errorf("invalid mode %q (valid: draft, normal, fast)", cfg.Mode))
	}
	if _, ok := cfg.Multipliers[cfg.Mode]; !ok && ir.ValidModes[cfg.Mode] {
		errs = append(errs, fmt.Errorf("no multiplier for mode %q", cfg.Mode))
	}
	for _, name := range ir.SortedKeys(cfg.Buckets) {
		if cfg.Buckets[name] < 0 {
			errs = append(errs, fmt.Errorf("bucket %q: negative duration %v", name, cfg.Buckets[name]))
		}
	}
	for _, mode := range slices.Sorted(maps.Keys(cfg.Multipliers)) {
		m := cfg.Multipliers[mode]
		if !ir.ValidModes[mode] {
			errs = append(errs, fmt.Errorf("multiplier for unknown mode %q", mode))
		}
		if m < 0 {
			errs = append(errs, fmt.Errorf("multiplier for mode %q: negative value %v", mode, m))
		}
	}
	if _, ok := cfg.Buckets[ir.BucketDefault]; !ok {
		errs = append(errs, fmt.Errorf("missing %q bucket", ir.BucketDefault))
	}
	for _, action := range ir.SortedKeys(cfg.ActionBuckets) {
		bucket := cfg.ActionBuckets[action]
		if _, ok := cfg.Buckets[bucket]; !ok {
			errs = append(errs, fmt.Errorf("action %q maps to unknown bucket %q", action, bucket))
		}
	}
	return errors.Join(errs...)
}
