package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/storyviz/internal/adapter"
	"github.com/roach88/storyviz/internal/compiler"
	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/render"
	"github.com/roach88/storyviz/internal/store"
	"github.com/roach88/storyviz/internal/testutil"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the run matched expect_error and every assertion held.
	Pass bool `json:"pass"`

	RunID  string    `json:"run_id"`
	Digest string    `json:"digest"`
	Calls  []ir.Call `json:"calls"`

	// RunError is the render error text, empty when the run completed.
	RunError string `json:"run_error,omitempty"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Calls:  []ir.Call{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Option configures a harness run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger passed to the render pipeline. Default:
// a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store. An error is returned
// only when the scenario could not be executed at all (documents fail to
// load, store fails to open); run failures and assertion failures are
// reported in Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	sc, err := compiler.LoadScene(scenario.Resolve(scenario.Scene))
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}
	sb, err := compiler.LoadStoryboard(scenario.Resolve(scenario.Storyboard))
	if err != nil {
		return nil, fmt.Errorf("load storyboard: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	adapters, err := scenarioAdapters(scenario, sc)
	if err != nil {
		return nil, err
	}

	out, runErr := render.Run(ctx, render.Options{
		Scene:      sc,
		Storyboard: sb,
		Mode:       scenario.Mode,
		Adapters:   adapters,
		Store:      st,
		RunIDs:     testutil.NewFixedRunID(scenario.RunID),
		WallClock:  testutil.NewSteppingClock(time.Millisecond),
		Logger:     cfg.logger,
	})
	if out == nil {
		return nil, fmt.Errorf("render: %w", runErr)
	}

	result := NewResult()
	result.RunID = out.RunID
	result.Digest = out.Digest
	result.Calls = append(result.Calls, out.Calls...)
	if runErr != nil {
		result.RunError = runErr.Error()
	}

	switch {
	case scenario.ExpectError == "" && runErr != nil:
		result.AddError(fmt.Sprintf("run failed: %v", runErr))
	case scenario.ExpectError != "" && runErr == nil:
		result.AddError(fmt.Sprintf("expected run error containing %q, run completed", scenario.ExpectError))
	case scenario.ExpectError != "" && !strings.Contains(runErr.Error(), scenario.ExpectError):
		result.AddError(fmt.Sprintf("expected run error containing %q, got: %v", scenario.ExpectError, runErr))
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, RunID: out.RunID}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// scenarioAdapters returns the default adapters, with a scripted adapter
// under the scene's algorithm when the scenario lists events.
func scenarioAdapters(scenario *Scenario, sc *ir.SceneConfig) (*adapter.Registry, error) {
	if len(scenario.Events) == 0 {
		return render.DefaultAdapters(scenario.Dir()), nil
	}
	reg := adapter.NewRegistry(adapter.NewScripted(sc.Algorithm, scenario.Events...))
	for _, a := range []adapter.Adapter{adapter.NewBFS(), adapter.NewRecorded("recorded", scenario.Dir())} {
		if a.Name() == sc.Algorithm {
			continue
		}
		if err := reg.Register(a); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
