package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/storyviz/internal/ir"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const runColumns = `id, scene, algorithm, storyboard, mode, scene_digest, trace_digest, status, error, started_at, finished_at`

// ReadRun retrieves a single run by ID.
// Returns an error wrapping ErrRunNotFound if no row exists.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// ListRuns returns all runs in insertion order.
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently inserted run for a scene.
func (s *Store) LatestRun(ctx context.Context, scene string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE scene = ?
		ORDER BY rowid DESC
		LIMIT 1
	`, scene)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run for scene %q: %w", scene, ErrRunNotFound)
	}
	return run, err
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run                   Run
		mode, status          string
		startedAt, finishedAt string
	)
	err := row.Scan(
		&run.ID,
		&run.Scene,
		&run.Algorithm,
		&run.Storyboard,
		&mode,
		&run.SceneDigest,
		&run.TraceDigest,
		&status,
		&run.Error,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Mode = ir.Mode(mode)
	run.Status = RunStatus(status)
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", run.ID, err)
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", run.ID, err)
	}
	return run, nil
}

// ReadCalls returns every call of a run in dispatch order (seq ASC).
// Returns an empty slice (not nil) if the run has no calls.
func (s *Store) ReadCalls(ctx context.Context, runID string) ([]ir.Call, error) {
	return s.queryCalls(ctx, `
		SELECT seq, component, action, args, event_type, step_index, act, shot, beat
		FROM calls
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// CallsForEvent returns the calls dispatched for one event type, in order.
func (s *Store) CallsForEvent(ctx context.Context, runID, eventType string) ([]ir.Call, error) {
	return s.queryCalls(ctx, `
		SELECT seq, component, action, args, event_type, step_index, act, shot, beat
		FROM calls
		WHERE run_id = ? AND event_type = ?
		ORDER BY seq ASC
	`, runID, eventType)
}

func (s *Store) queryCalls(ctx context.Context, query string, args ...any) ([]ir.Call, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []ir.Call{}
	for rows.Next() {
		var (
			call     ir.Call
			argsJSON string
			step     sql.NullInt64
		)
		err := rows.Scan(
			&call.Seq,
			&call.Component,
			&call.Action,
			&argsJSON,
			&call.EventType,
			&step,
			&call.Act,
			&call.Shot,
			&call.Beat,
		)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		if call.Args, err = unmarshalArgs(argsJSON); err != nil {
			return nil, fmt.Errorf("scan call %d: %w", call.Seq, err)
		}
		if step.Valid {
			call.StepIndex = &step.Int64
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

// ReadTimingRecords returns a run's timing records in beat order.
func (s *Store) ReadTimingRecords(ctx context.Context, runID string) ([]ir.TimingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT beat_id, action, expected, measured, mode, act, shot, beat, timestamp
		FROM timing_records
		WHERE run_id = ?
		ORDER BY act ASC, shot ASC, beat ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query timing records: %w", err)
	}
	defer rows.Close()

	recs := []ir.TimingRecord{}
	for rows.Next() {
		var (
			rec      ir.TimingRecord
			mode, ts string
		)
		err := rows.Scan(&rec.BeatID, &rec.Action, &rec.Expected, &rec.Measured, &mode, &rec.Act, &rec.Shot, &rec.Beat, &ts)
		if err != nil {
			return nil, fmt.Errorf("scan timing record: %w", err)
		}
		rec.Mode = ir.Mode(mode)
		if rec.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("scan timing record %s: %w", rec.BeatID, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timing records: %w", err)
	}
	return recs, nil
}

// Digest recomputes the trace digest from the stored calls of a run.
func (s *Store) Digest(ctx context.Context, runID string) (string, error) {
	calls, err := s.ReadCalls(ctx, runID)
	if err != nil {
		return "", err
	}
	return ir.TraceDigest(calls)
}
