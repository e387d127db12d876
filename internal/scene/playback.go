package scene

import (
	"context"
	"fmt"
)

// playEvents drains the adapter named by the "algorithm" argument (default:
// the scene's algorithm) and handles every event in order.
func (e *Engine) playEvents(ctx context.Context, args map[string]any) error {
	algorithm := e.scene.Algorithm
	if raw, ok := args["algorithm"]; ok {
		s, ok := raw.(string)
		if !ok || s == "" {
			return fmt.Errorf("action %q: algorithm must be a non-empty string, got %v", ActionPlayEvents, raw)
		}
		algorithm = s
	}

	var scenario map[string]any
	if raw, ok := args["scenario"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("action %q: scenario must be a mapping, got %T", ActionPlayEvents, raw)
		}
		scenario = m
	}

	a, err := e.adapters.Get(algorithm)
	if err != nil {
		return &AdapterError{Algorithm: algorithm, LastStep: -1, Err: err}
	}

	budget := NewEventBudget(e.maxEvents)
	last, started := int64(-1), false
	for ev, err := range a.Run(ctx, scenario) {
		if err != nil {
			return &AdapterError{Algorithm: algorithm, LastStep: last, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if started && ev.StepIndex <= last {
			return &AdapterError{
				Algorithm: algorithm,
				LastStep:  last,
				Err:       &StepOrderError{Previous: last, Got: ev.StepIndex},
			}
		}
		if err := budget.Check(algorithm); err != nil {
			return err
		}
		if err := e.HandleEvent(ctx, ev); err != nil {
			return err
		}
		last, started = ev.StepIndex, true
	}

	e.logger.Info("events played",
		"algorithm", algorithm,
		"events", budget.Current(),
		"last_step", last,
	)
	return nil
}
