package adapter

import (
	"context"
	"fmt"
	"iter"

	"github.com/roach88/storyviz/internal/ir"
)

// Cell is a grid coordinate (row, col). It is the payload type of grid
// events and passes through templates unchanged.
type Cell [2]int

// BFS runs breadth-first search over a rectangular grid. Scenario keys:
//
//	rows, cols   grid size (required)
//	start        [row, col] (required)
//	goal         [row, col] (optional; search stops there)
//	walls        list of [row, col]
//
// Events, in order: enqueue{node, depth}, dequeue{node}, visit{node, depth},
// and when the goal is reached found{node, depth} then path{nodes}.
// Neighbors are expanded up, right, down, left.
type BFS struct{}

// NewBFS returns the grid BFS adapter.
func NewBFS() *BFS { return &BFS{} }

func (*BFS) Name() string { return "bfs" }

type bfsScenario struct {
	rows, cols int
	start      Cell
	goal       *Cell
	walls      map[Cell]bool
}

func parseBFSScenario(s map[string]any) (bfsScenario, error) {
	var sc bfsScenario
	var err error
	if sc.rows, err = intField(s, "rows"); err != nil {
		return sc, err
	}
	if sc.cols, err = intField(s, "cols"); err != nil {
		return sc, err
	}
	if sc.rows <= 0 || sc.cols <= 0 {
		return sc, fmt.Errorf("grid size must be positive, got %dx%d", sc.rows, sc.cols)
	}
	if sc.start, err = cellField(s["start"]); err != nil {
		return sc, fmt.Errorf("start: %w", err)
	}
	if !sc.in(sc.start) {
		return sc, fmt.Errorf("start %v outside grid", sc.start)
	}
	if raw, ok := s["goal"]; ok {
		g, err := cellField(raw)
		if err != nil {
			return sc, fmt.Errorf("goal: %w", err)
		}
		sc.goal = &g
	}
	sc.walls = make(map[Cell]bool)
	if raw, ok := s["walls"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return sc, fmt.Errorf("walls: expected a list, got %T", raw)
		}
		for i, w := range list {
			c, err := cellField(w)
			if err != nil {
				return sc, fmt.Errorf("walls[%d]: %w", i, err)
			}
			sc.walls[c] = true
		}
	}
	return sc, nil
}

func (sc bfsScenario) in(c Cell) bool {
	return c[0] >= 0 && c[0] < sc.rows && c[1] >= 0 && c[1] < sc.cols
}

func intField(s map[string]any, key string) (int, error) {
	switch v := ir.NormalizeValue(s[key]).(type) {
	case int64:
		return int(v), nil
	case nil:
		return 0, fmt.Errorf("scenario %s is required", key)
	default:
		return 0, fmt.Errorf("scenario %s must be an integer, got %T", key, v)
	}
}

func cellField(raw any) (Cell, error) {
	switch v := raw.(type) {
	case Cell:
		return v, nil
	case [2]int:
		return Cell(v), nil
	}
	list, ok := ir.NormalizeValue(raw).([]any)
	if !ok || len(list) != 2 {
		return Cell{}, fmt.Errorf("expected [row, col], got %v", raw)
	}
	var c Cell
	for i, item := range list {
		n, ok := item.(int64)
		if !ok {
			return Cell{}, fmt.Errorf("expected integer coordinates, got %v", raw)
		}
		c[i] = int(n)
	}
	return c, nil
}

var bfsDirections = []Cell{{-1, 0}, {0, 1}, {1, 0}, {0, -1}}

func (*BFS) Run(ctx context.Context, scenario map[string]any) iter.Seq2[ir.VizEvent, error] {
	return func(yield func(ir.VizEvent, error) bool) {
		sc, err := parseBFSScenario(scenario)
		if err != nil {
			yield(ir.VizEvent{}, fmt.Errorf("bfs: %w", err))
			return
		}

		var step int64
		emit := func(typ string, payload map[string]any) bool {
			ev := ir.VizEvent{Type: typ, Payload: payload, StepIndex: step}
			step++
			return yield(ev, nil)
		}

		depth := map[Cell]int{sc.start: 0}
		parent := map[Cell]Cell{}
		queue := []Cell{sc.start}
		if !emit("enqueue", map[string]any{"node": sc.start, "depth": int64(0)}) {
			return
		}

		for len(queue) > 0 {
			if err := ctx.Err(); err != nil {
				yield(ir.VizEvent{}, err)
				return
			}
			cur := queue[0]
			queue = queue[1:]
			if !emit("dequeue", map[string]any{"node": cur}) {
				return
			}
			if !emit("visit", map[string]any{"node": cur, "depth": int64(depth[cur])}) {
				return
			}

			if sc.goal != nil && cur == *sc.goal {
				if !emit("found", map[string]any{"node": cur, "depth": int64(depth[cur])}) {
					return
				}
				emit("path", map[string]any{"nodes": reconstruct(parent, sc.start, cur)})
				return
			}

			for _, d := range bfsDirections {
				next := Cell{cur[0] + d[0], cur[1] + d[1]}
				if !sc.in(next) || sc.walls[next] {
					continue
				}
				if _, seen := depth[next]; seen {
					continue
				}
				depth[next] = depth[cur] + 1
				parent[next] = cur
				queue = append(queue, next)
				if !emit("enqueue", map[string]any{"node": next, "depth": int64(depth[next])}) {
					return
				}
			}
		}
	}
}

func reconstruct(parent map[Cell]Cell, start, end Cell) []Cell {
	path := []Cell{end}
	for cur := end; cur != start; {
		cur = parent[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
