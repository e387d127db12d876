package scene

import (
	"errors"
	"fmt"
)

// DefaultMaxEvents is the default event budget of one play_events action.
const DefaultMaxEvents = 100000

// EventBudget counts the events of one playback and enforces a limit.
// It stops adapters that never terminate.
type EventBudget struct {
	limit   int
	current int
}

// NewEventBudget returns a budget allowing limit events.
func NewEventBudget(limit int) *EventBudget {
	return &EventBudget{limit: limit}
}

// Check counts one event and fails once the limit is exceeded.
func (b *EventBudget) Check(algorithm string) error {
	b.current++
	if b.current > b.limit {
		return &EventsExceededError{Algorithm: algorithm, Events: b.current, Limit: b.limit}
	}
	return nil
}

// Current returns the number of events counted.
func (b *EventBudget) Current() int {
	return b.current
}

// Limit returns the configured limit.
func (b *EventBudget) Limit() int {
	return b.limit
}

// EventsExceededError is returned when one playback emits more events
// than the budget allows.
type EventsExceededError struct {
	Algorithm string
	Events    int
	Limit     int
}

func (e *EventsExceededError) Error() string {
	return fmt.Sprintf("adapter %q exceeded event budget: %d events > %d limit", e.Algorithm, e.Events, e.Limit)
}

// IsEventsExceeded reports whether err is an EventsExceededError.
func IsEventsExceeded(err error) bool {
	var ee *EventsExceededError
	return errors.As(err, &ee)
}
