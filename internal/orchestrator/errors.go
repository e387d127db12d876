package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlreadyStarted is returned by Run on an orchestrator that has already
// run. Orchestrators are single-use.
var ErrAlreadyStarted = errors.New("orchestrator: run already started")

// LocationError attaches the storyboard position to a failure. Shot and
// Beat are -1 when the failure happened outside them (act hooks).
type LocationError struct {
	Act    int
	Shot   int
	Beat   int
	Action string
	Err    error
}

func (e *LocationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "act %d", e.Act)
	if e.Shot >= 0 {
		fmt.Fprintf(&b, " shot %d", e.Shot)
	}
	if e.Beat >= 0 {
		fmt.Fprintf(&b, " beat %d", e.Beat)
	}
	if e.Action != "" {
		fmt.Fprintf(&b, " (%s)", e.Action)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *LocationError) Unwrap() error {
	return e.Err
}

// Location returns the position of err in the storyboard, if it has one.
func Location(err error) (*LocationError, bool) {
	var le *LocationError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
