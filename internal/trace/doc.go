// Package trace provides the ordering primitives of a render: the logical
// clock that stamps dispatched calls, call recorders, run identifiers and
// the wall clock used for timing telemetry.
//
// Call order is defined by logical sequence numbers, never by wall-clock
// timestamps. Two renders of the same inputs must record identical call
// sequences; the digest of a recorded trace is the determinism evidence.
package trace
