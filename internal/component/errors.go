package component

import (
	"errors"
	"fmt"
	"strings"
)

// InitializationError reports a component that failed to construct.
type InitializationError struct {
	Component string
	Type      string
	Err       error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("component %q (type %q) failed to initialize: %v", e.Component, e.Type, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// UnknownComponentError reports a lookup of a name that was never
// instantiated.
type UnknownComponentError struct {
	Name      string
	Available []string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown component %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// UnknownActionError reports an action the target component does not
// expose.
type UnknownActionError struct {
	Component string
	Action    string
	Available []string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("component %q has no action %q (available: %s)",
		e.Component, e.Action, strings.Join(e.Available, ", "))
}

// IsInitializationError reports whether err is or wraps an InitializationError.
func IsInitializationError(err error) bool {
	var ie *InitializationError
	return errors.As(err, &ie)
}

// IsUnknownComponent reports whether err is or wraps an UnknownComponentError.
func IsUnknownComponent(err error) bool {
	var ue *UnknownComponentError
	return errors.As(err, &ue)
}

// IsUnknownAction reports whether err is or wraps an UnknownActionError.
func IsUnknownAction(err error) bool {
	var ue *UnknownActionError
	return errors.As(err, &ue)
}
