// Package render wires a loaded scene and storyboard into one orchestrated
// run: scene engine, orchestrator, call trace and optional persistence.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/roach88/storyviz/internal/adapter"
	"github.com/roach88/storyviz/internal/component"
	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/narration"
	"github.com/roach88/storyviz/internal/orchestrator"
	"github.com/roach88/storyviz/internal/scene"
	"github.com/roach88/storyviz/internal/store"
	"github.com/roach88/storyviz/internal/timing"
	"github.com/roach88/storyviz/internal/trace"
)

// Options configures one render. Scene and Storyboard are required.
type Options struct {
	Scene      *ir.SceneConfig
	Storyboard *ir.Storyboard

	// Mode overrides the scene's timing mode when set.
	Mode ir.Mode

	Adapters  *adapter.Registry  // default: DefaultAdapters(".")
	Types     *component.Types   // default: component.StubTypes()
	Narration narration.Provider // nil disables narration
	Hooks     orchestrator.Hooks
	MaxEvents int // 0 means scene.DefaultMaxEvents

	// Store persists the run, its calls and timing records when set.
	Store  *store.Store
	RunIDs trace.RunIDGenerator // default: trace.UUIDv7Generator

	WallClock      trace.WallClock // default: trace.SystemClock
	Metrics        *timing.Metrics
	TracerProvider oteltrace.TracerProvider
	Logger         *slog.Logger
}

// Result is the outcome of a render. It is returned even when the run
// failed part way, holding every call dispatched before the failure.
type Result struct {
	RunID   string
	Mode    ir.Mode
	Calls   []ir.Call
	Digest  string
	Records []ir.TimingRecord
	State   orchestrator.State
}

// DefaultAdapters returns the built-in adapters: breadth-first search and
// recorded event files resolved against baseDir.
func DefaultAdapters(baseDir string) *adapter.Registry {
	return adapter.NewRegistry(
		adapter.NewBFS(),
		adapter.NewRecorded("recorded", baseDir),
	)
}

// Calculator builds the timing calculator for a scene, applying a mode
// override when mode is non-empty.
func Calculator(sc *ir.SceneConfig, mode ir.Mode) (*timing.Calculator, error) {
	cfg := timing.Merge(timing.Defaults(), sc.Timing)
	if mode != "" {
		cfg.Mode = mode
	}
	return timing.NewCalculator(cfg)
}

// Run renders the storyboard once. The returned error is the run error
// (setup or orchestration); Result is nil only when the run never started.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Scene == nil || opts.Storyboard == nil {
		return nil, errors.New("render: scene and storyboard are required")
	}
	opts = withDefaults(opts)

	calc, err := Calculator(opts.Scene, opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("render: timing: %w", err)
	}

	res := &Result{
		RunID: opts.RunIDs.Generate(),
		Mode:  calc.Mode(),
		State: orchestrator.NotStarted,
	}
	logger := opts.Logger.With("run_id", res.RunID)

	calls := trace.NewLog()
	var recorder trace.Recorder = calls
	if opts.Store != nil {
		digest, err := ir.SceneDigest(opts.Scene)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		err = opts.Store.BeginRun(ctx, store.Run{
			ID:          res.RunID,
			Scene:       opts.Scene.Name,
			Algorithm:   opts.Scene.Algorithm,
			Storyboard:  opts.Storyboard.Name,
			Mode:        calc.Mode(),
			SceneDigest: digest,
			StartedAt:   opts.WallClock.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		recorder = trace.Tee(calls, opts.Store.Recorder(res.RunID))
	}

	runErr := run(ctx, opts, calc, recorder, logger, res)

	res.Calls = calls.Calls()
	if res.Digest, err = calls.Digest(); err != nil {
		runErr = errors.Join(runErr, err)
	}

	if opts.Store != nil {
		if len(res.Records) > 0 {
			if err := opts.Store.WriteTimingRecords(ctx, res.RunID, res.Records); err != nil {
				runErr = errors.Join(runErr, err)
			}
		}
		if err := opts.Store.FinishRun(ctx, res.RunID, res.Digest, runErr, opts.WallClock.Now()); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	if runErr != nil {
		logger.Error("render failed", "calls", len(res.Calls), "error", runErr)
	} else {
		logger.Info("render completed", "calls", len(res.Calls), "digest", res.Digest)
	}
	return res, runErr
}

func run(ctx context.Context, opts Options, calc *timing.Calculator, rec trace.Recorder, logger *slog.Logger, res *Result) error {
	eng := scene.New(opts.Scene,
		scene.WithTypes(opts.Types),
		scene.WithAdapters(opts.Adapters),
		scene.WithRecorder(rec),
		scene.WithCalculator(calc),
		scene.WithMetrics(opts.Metrics),
		scene.WithLogger(logger),
		scene.WithMaxEvents(opts.MaxEvents),
	)
	if err := eng.Initialize(ctx); err != nil {
		res.State = orchestrator.Failed
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("closing components", "error", err)
		}
	}()

	orchOpts := []orchestrator.Option{
		orchestrator.WithHooks(opts.Hooks),
		orchestrator.WithMetrics(opts.Metrics),
		orchestrator.WithWallClock(opts.WallClock),
		orchestrator.WithLogger(logger),
	}
	if opts.Narration != nil {
		orchOpts = append(orchOpts, orchestrator.WithNarration(opts.Narration))
	}
	if opts.TracerProvider != nil {
		orchOpts = append(orchOpts, orchestrator.WithTracerProvider(opts.TracerProvider))
	}

	orch := orchestrator.New(opts.Storyboard, eng, calc, orchOpts...)
	err := orch.Run(ctx)
	res.State = orch.State()
	res.Records = orch.Log().Records()
	return err
}

func withDefaults(opts Options) Options {
	if opts.Adapters == nil {
		opts.Adapters = DefaultAdapters(".")
	}
	if opts.Types == nil {
		opts.Types = component.StubTypes()
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = scene.DefaultMaxEvents
	}
	if opts.RunIDs == nil {
		opts.RunIDs = trace.UUIDv7Generator{}
	}
	if opts.WallClock == nil {
		opts.WallClock = trace.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}
