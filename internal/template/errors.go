package template

import (
	"errors"
	"fmt"
	"strings"
)

// SyntaxError reports a malformed template.
type SyntaxError struct {
	Template string
	Offset   int // byte offset into Template
	Reason   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template syntax error in %q at offset %d: %s", e.Template, e.Offset, e.Reason)
}

// UnknownResolverError reports a reference to a namespace the context does
// not provide.
type UnknownResolverError struct {
	Template  string
	Namespace string
	Available []string
}

func (e *UnknownResolverError) Error() string {
	return fmt.Sprintf("unknown namespace %q in template %q (available: %s)",
		e.Namespace, e.Template, strings.Join(e.Available, ", "))
}

// ResolutionError reports a path that could not be walked.
type ResolutionError struct {
	Template string
	Path     string // full dotted reference, e.g. "event.node.x"
	Segment  string // the segment that failed
	Reason   string
	Err      error // set when a custom resolver failed
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("cannot resolve %q in template %q: segment %q: %s", e.Path, e.Template, e.Segment, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsSyntaxError reports whether err is or wraps a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsUnknownResolver reports whether err is or wraps an UnknownResolverError.
func IsUnknownResolver(err error) bool {
	var ue *UnknownResolverError
	return errors.As(err, &ue)
}

// IsResolutionError reports whether err is or wraps a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}
