package trace

import (
	"context"
	"errors"
	"slices"

	"github.com/roach88/storyviz/internal/ir"
)

// Recorder receives every dispatched call in order.
type Recorder interface {
	Record(ctx context.Context, call ir.Call) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, call ir.Call) error

func (f RecorderFunc) Record(ctx context.Context, call ir.Call) error { return f(ctx, call) }

// Log is an in-memory recorder.
type Log struct {
	calls []ir.Call
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

func (l *Log) Record(_ context.Context, call ir.Call) error {
	l.calls = append(l.calls, call)
	return nil
}

// Calls returns a copy of the recorded calls.
func (l *Log) Calls() []ir.Call {
	return slices.Clone(l.calls)
}

// Len returns the number of recorded calls.
func (l *Log) Len() int {
	return len(l.calls)
}

// Digest returns the trace digest of the recorded calls.
func (l *Log) Digest() (string, error) {
	return ir.TraceDigest(l.calls)
}

// Reset discards all recorded calls.
func (l *Log) Reset() {
	l.calls = nil
}

// Tee returns a recorder that forwards each call to every recorder in
// order. All recorders see the call even if an earlier one fails.
func Tee(recorders ...Recorder) Recorder {
	return RecorderFunc(func(ctx context.Context, call ir.Call) error {
		var errs []error
		for _, r := range recorders {
			if r == nil {
				continue
			}
			if err := r.Record(ctx, call); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
