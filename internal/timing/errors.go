package timing

import (
	"errors"
	"fmt"
)

// BoundsError reports a min duration greater than the max duration.
type BoundsError struct {
	Action string
	Min    float64
	Max    float64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("invalid duration bounds for %q: min_duration %v > max_duration %v", e.Action, e.Min, e.Max)
}

// IsBoundsError reports whether err is or wraps a BoundsError.
func IsBoundsError(err error) bool {
	var be *BoundsError
	return errors.As(err, &be)
}
