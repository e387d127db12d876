// Package store provides SQLite-backed durable storage for storyviz runs.
//
// The store keeps an append-only record of:
//   - Runs: one row per orchestrated storyboard render
//   - Calls: every dispatched component action, in dispatch order
//   - Timing Records: expected vs measured duration per executed beat
//
// # Ordering
//
// Calls are keyed by (run_id, seq) where seq is the engine's logical clock,
// never a timestamp. All call queries use ORDER BY seq ASC so a stored run
// reproduces the exact trace digest of the live run.
//
// Runs are listed in insertion order (rowid), newest last.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Call arguments are stored as RFC 8785 canonical JSON (ir.MarshalCanonical).
package store
