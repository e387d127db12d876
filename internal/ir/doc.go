// Package ir provides the canonical data model for storyviz.
//
// This package contains type definitions, codecs and canonical serialization
// only. All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - The narrative tree (Storyboard → Act → Shot → Beat) is immutable after load
//   - Scene components keep their declaration order; it drives instantiation
//     and "show all" ordering
//   - Parameter values are plain Go values (nil, bool, int64, float64, string,
//     []any, map[string]any) or opaque event payload values passed through
//     untouched
//   - All JSON/YAML tags use snake_case
//   - Call ordering uses logical seq numbers, never wall-clock timestamps
package ir
