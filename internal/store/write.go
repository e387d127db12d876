package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/trace"
)

// RunStatus is the lifecycle state of a stored run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// Run is one persisted storyboard render.
type Run struct {
	ID          string
	Scene       string
	Algorithm   string
	Storyboard  string
	Mode        ir.Mode
	SceneDigest string
	TraceDigest string // set by FinishRun
	Status      RunStatus
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// BeginRun inserts a run in the running state. Run IDs are unique; a
// second BeginRun with the same ID is an error.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("begin run: empty run ID")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, scene, algorithm, storyboard, mode, scene_digest, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scene,
		run.Algorithm,
		run.Storyboard,
		string(run.Mode),
		run.SceneDigest,
		string(StatusRunning),
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun marks a run completed or failed. runErr, if non-nil, is stored
// as text and the status becomes failed.
func (s *Store) FinishRun(ctx context.Context, runID, traceDigest string, runErr error, finishedAt time.Time) error {
	status, msg := StatusCompleted, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, trace_digest = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(status), traceDigest, msg, formatTime(finishedAt), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// WriteCall inserts a dispatched call.
// Uses ON CONFLICT(run_id, seq) DO NOTHING for idempotency - rewriting the
// same call is silently ignored.
//
// The call's Args are serialized to canonical JSON per RFC 8785.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteCall(ctx context.Context, runID string, call ir.Call) error {
	argsJSON, err := marshalArgs(call.Args)
	if err != nil {
		return fmt.Errorf("write call %d: %w", call.Seq, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calls
		(run_id, seq, component, action, args, event_type, step_index, act, shot, beat)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		call.Seq,
		call.Component,
		call.Action,
		argsJSON,
		call.EventType,
		call.StepIndex,
		call.Act,
		call.Shot,
		call.Beat,
	)
	if err != nil {
		return fmt.Errorf("write call %d: %w", call.Seq, err)
	}
	return nil
}

// WriteTimingRecord inserts one beat's timing record.
// Uses ON CONFLICT(run_id, beat_id) DO NOTHING for idempotency.
func (s *Store) WriteTimingRecord(ctx context.Context, runID string, rec ir.TimingRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timing_records
		(run_id, beat_id, action, expected, measured, mode, act, shot, beat, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, beat_id) DO NOTHING
	`,
		runID,
		rec.BeatID,
		rec.Action,
		rec.Expected,
		rec.Measured,
		string(rec.Mode),
		rec.Act,
		rec.Shot,
		rec.Beat,
		formatTime(rec.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("write timing record %s: %w", rec.BeatID, err)
	}
	return nil
}

// WriteTimingRecords inserts records in one transaction.
func (s *Store) WriteTimingRecords(ctx context.Context, runID string, recs []ir.TimingRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write timing records: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, rec := range recs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO timing_records
			(run_id, beat_id, action, expected, measured, mode, act, shot, beat, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, beat_id) DO NOTHING
		`,
			runID, rec.BeatID, rec.Action, rec.Expected, rec.Measured,
			string(rec.Mode), rec.Act, rec.Shot, rec.Beat, formatTime(rec.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("write timing record %s: %w", rec.BeatID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write timing records: commit: %w", err)
	}
	return nil
}

// Recorder returns a trace.Recorder that persists every call under runID.
func (s *Store) Recorder(runID string) trace.Recorder {
	return trace.RecorderFunc(func(ctx context.Context, call ir.Call) error {
		return s.WriteCall(ctx, runID, call)
	})
}
