package compiler

import (
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a document that could not be turned into IR. Field is the
// dotted path inside the document; Pos points into the source when CUE
// knows it.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	More    int // further CUE errors folded into this one
}

func (e *CompileError) Error() string {
	msg := e.Message
	if e.More > 0 {
		msg = fmt.Sprintf("%s (and %d more)", msg, e.More)
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), msg)
	}
	return msg
}

// Line is the 1-based source line, or 0 when unknown.
func (e *CompileError) Line() int {
	if !e.Pos.IsValid() {
		return 0
	}
	return e.Pos.Line()
}

// formatCUEError folds a CUE error list into one CompileError positioned at
// the first error. Errors without a position pass through.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	positions := cueerrors.Positions(errs[0])
	if len(positions) == 0 {
		return err
	}
	return &CompileError{
		Field:   "cue",
		Message: errs[0].Error(),
		Pos:     positions[0],
		More:    len(errs) - 1,
	}
}
