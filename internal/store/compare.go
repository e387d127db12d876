package store

import (
	"context"
	"fmt"
	"reflect"

	"github.com/roach88/storyviz/internal/ir"
)

// Divergence describes the first point where two call traces differ.
// Index is -1 when the traces are identical.
type Divergence struct {
	Index int
	Left  *ir.Call // nil when the left trace ended first
	Right *ir.Call // nil when the right trace ended first
}

// Identical reports whether the traces matched call for call.
func (d Divergence) Identical() bool { return d.Index < 0 }

func (d Divergence) String() string {
	if d.Identical() {
		return "identical"
	}
	describe := func(c *ir.Call) string {
		if c == nil {
			return "<end of trace>"
		}
		return fmt.Sprintf("%s.%s %v", c.Component, c.Action, c.Args)
	}
	return fmt.Sprintf("call %d: %s != %s", d.Index, describe(d.Left), describe(d.Right))
}

// CompareCalls finds the first divergent call between two traces.
func CompareCalls(left, right []ir.Call) Divergence {
	n := max(len(left), len(right))
	for i := range n {
		var l, r *ir.Call
		if i < len(left) {
			l = &left[i]
		}
		if i < len(right) {
			r = &right[i]
		}
		if l == nil || r == nil || !reflect.DeepEqual(*l, *r) {
			return Divergence{Index: i, Left: l, Right: r}
		}
	}
	return Divergence{Index: -1}
}

// CompareRuns loads two runs' calls and compares them.
func (s *Store) CompareRuns(ctx context.Context, leftID, rightID string) (Divergence, error) {
	left, err := s.ReadCalls(ctx, leftID)
	if err != nil {
		return Divergence{}, fmt.Errorf("compare runs: %w", err)
	}
	right, err := s.ReadCalls(ctx, rightID)
	if err != nil {
		return Divergence{}, fmt.Errorf("compare runs: %w", err)
	}
	return CompareCalls(left, right), nil
}
