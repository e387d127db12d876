package testutil

// FixedRunID returns the same run ID every time, so persisted runs and
// golden traces are byte-identical across executions.
//
// Implements trace.RunIDGenerator. Stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// NewFixedRunID returns a generator for id. An empty id yields
// "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

func (g *FixedRunID) Generate() string {
	return g.id
}
