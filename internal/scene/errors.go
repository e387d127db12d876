package scene

import (
	"errors"
	"fmt"
	"strings"
)

// UnknownActionError is returned by ExecuteBeat for an action that matches
// no category. Available lists every action the engine can execute.
type UnknownActionError struct {
	Action    string
	Available []string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q (available: %s)", e.Action, strings.Join(e.Available, ", "))
}

// InitError aggregates every problem found while initializing a scene.
type InitError struct {
	Scene string
	Errs  []error
}

func (e *InitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scene %q: %d initialization error(s)", e.Scene, len(e.Errs))
	for _, err := range e.Errs {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *InitError) Unwrap() []error {
	return e.Errs
}

// AdapterError wraps a failure of the algorithm adapter during playback.
// LastStep is the step index of the last event fully processed, or -1.
type AdapterError struct {
	Algorithm string
	LastStep  int64
	Err       error
}

func (e *AdapterError) Error() string {
	if e.LastStep < 0 {
		return fmt.Sprintf("adapter %q failed before the first event: %v", e.Algorithm, e.Err)
	}
	return fmt.Sprintf("adapter %q failed after step %d: %v", e.Algorithm, e.LastStep, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// EventError wraps a dispatch failure for one event.
type EventError struct {
	Type      string
	StepIndex int64
	Err       error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("event %q at step %d: %v", e.Type, e.StepIndex, e.Err)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

// StepOrderError reports an event whose step index does not increase.
type StepOrderError struct {
	Previous int64
	Got      int64
}

func (e *StepOrderError) Error() string {
	return fmt.Sprintf("step index %d does not follow %d", e.Got, e.Previous)
}

// BindingError names the binding that failed while handling an event.
type BindingError struct {
	Widget string
	Action string
	Order  int
	Err    error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("binding %s.%s (order %d): %v", e.Widget, e.Action, e.Order, e.Err)
}

func (e *BindingError) Unwrap() error {
	return e.Err
}

// IsUnknownAction reports whether err is an UnknownActionError.
func IsUnknownAction(err error) bool {
	var ue *UnknownActionError
	return errors.As(err, &ue)
}

// IsAdapterError reports whether err is an AdapterError.
func IsAdapterError(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae)
}

// IsEventError reports whether err is an EventError.
func IsEventError(err error) bool {
	var ee *EventError
	return errors.As(err, &ee)
}
