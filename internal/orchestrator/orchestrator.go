// Package orchestrator walks a storyboard act by act, shot by shot and beat
// by beat, computes each beat's duration and hands every beat to the scene
// engine. It records one timing record per executed beat.
//
// The run is a state machine: NotStarted -> Running -> Completed or Failed.
// The first error aborts the run; nothing is retried.
package orchestrator

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/narration"
	"github.com/roach88/storyviz/internal/scene"
	"github.com/roach88/storyviz/internal/timing"
	"github.com/roach88/storyviz/internal/trace"
)

const tracerName = "github.com/roach88/storyviz/internal/orchestrator"

// State is the run state.
type State int

const (
	NotStarted State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Executor executes one beat. *scene.Engine implements it.
type Executor interface {
	ExecuteBeat(ctx context.Context, beat ir.Beat, runTime float64, bctx scene.BeatContext) error
}

// Hooks run around acts and shots (fades, pauses). Nil hooks are skipped.
type Hooks struct {
	EnterAct  func(ctx context.Context, index int, act ir.Act) error
	ExitAct   func(ctx context.Context, index int, act ir.Act) error
	EnterShot func(ctx context.Context, act, index int, shot ir.Shot) error
	ExitShot  func(ctx context.Context, act, index int, shot ir.Shot) error
}

// Orchestrator runs one storyboard once.
type Orchestrator struct {
	storyboard *ir.Storyboard
	engine     Executor
	calc       *timing.Calculator
	narration  narration.Provider
	hooks      Hooks
	log        *timing.Log
	metrics    *timing.Metrics
	wall       trace.WallClock
	logger     *slog.Logger
	tracer     oteltrace.Tracer

	state State
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNarration enables narration. Without a provider, narration text is
// ignored and beats use their base durations.
func WithNarration(p narration.Provider) Option {
	return func(o *Orchestrator) {
		o.narration = p
	}
}

// WithHooks sets the act and shot hooks.
func WithHooks(h Hooks) Option {
	return func(o *Orchestrator) {
		o.hooks = h
	}
}

// WithTimingLog sets the log timing records are appended to.
func WithTimingLog(l *timing.Log) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// WithMetrics records every timing record in m.
func WithMetrics(m *timing.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithWallClock sets the clock used to measure beats.
func WithWallClock(c trace.WallClock) Option {
	return func(o *Orchestrator) {
		o.wall = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithTracerProvider sets the OpenTelemetry provider. Default: the global
// provider.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(o *Orchestrator) {
		o.tracer = tp.Tracer(tracerName)
	}
}

// New returns an orchestrator for storyboard. calc computes beat durations;
// pass the calculator of the engine so the timing namespace and the
// computed durations agree.
func New(storyboard *ir.Storyboard, engine Executor, calc *timing.Calculator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		storyboard: storyboard,
		engine:     engine,
		calc:       calc,
		log:        timing.NewLog(),
		wall:       trace.SystemClock{},
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current run state.
func (o *Orchestrator) State() State {
	return o.state
}

// Log returns the timing log.
func (o *Orchestrator) Log() *timing.Log {
	return o.log
}

// Run executes the whole storyboard.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.state != NotStarted {
		return ErrAlreadyStarted
	}
	o.state = Running

	ctx, span := o.tracer.Start(ctx, "storyboard", oteltrace.WithAttributes(
		attribute.String("storyboard.name", o.storyboard.Name),
		attribute.String("timing.mode", string(o.calc.Mode())),
		attribute.Int("storyboard.beats", o.storyboard.BeatCount()),
	))
	defer span.End()

	o.logger.Info("storyboard starting",
		"storyboard", o.storyboard.Name,
		"acts", len(o.storyboard.Acts),
		"beats", o.storyboard.BeatCount(),
		"mode", o.calc.Mode(),
	)

	for ai, act := range o.storyboard.Acts {
		if err := o.runAct(ctx, ai, act); err != nil {
			o.state = Failed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.Error("storyboard aborted", "storyboard", o.storyboard.Name, "error", err)
			return err
		}
	}

	o.state = Completed
	o.logger.Info("storyboard completed", "storyboard", o.storyboard.Name, "beats", o.log.Len())
	return nil
}

func (o *Orchestrator) runAct(ctx context.Context, ai int, act ir.Act) error {
	ctx, span := o.tracer.Start(ctx, "act", oteltrace.WithAttributes(
		attribute.Int("act.index", ai),
		attribute.String("act.title", act.Title),
	))
	defer span.End()

	fail := func(hook string, err error) error {
		err = &LocationError{Act: ai, Shot: -1, Beat: -1, Action: hook, Err: err}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if h := o.hooks.EnterAct; h != nil {
		if err := h(ctx, ai, act); err != nil {
			return fail("enter_act", err)
		}
	}
	for si, shot := range act.Shots {
		if err := o.runShot(ctx, ai, si, shot); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	if h := o.hooks.ExitAct; h != nil {
		if err := h(ctx, ai, act); err != nil {
			return fail("exit_act", err)
		}
	}
	return nil
}

func (o *Orchestrator) runShot(ctx context.Context, ai, si int, shot ir.Shot) error {
	ctx, span := o.tracer.Start(ctx, "shot", oteltrace.WithAttributes(
		attribute.Int("act.index", ai),
		attribute.Int("shot.index", si),
		attribute.String("shot.name", shot.Name),
	))
	defer span.End()

	fail := func(hook string, err error) error {
		err = &LocationError{Act: ai, Shot: si, Beat: -1, Action: hook, Err: err}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if h := o.hooks.EnterShot; h != nil {
		if err := h(ctx, ai, si, shot); err != nil {
			return fail("enter_shot", err)
		}
	}
	for bi, beat := range shot.Beats {
		if err := o.runBeat(ctx, ai, si, bi, beat); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	if h := o.hooks.ExitShot; h != nil {
		if err := h(ctx, ai, si, shot); err != nil {
			return fail("exit_shot", err)
		}
	}
	return nil
}

func (o *Orchestrator) runBeat(ctx context.Context, ai, si, bi int, beat ir.Beat) error {
	beatID := ir.BeatID(ai, si, bi)
	ctx, span := o.tracer.Start(ctx, "beat", oteltrace.WithAttributes(
		attribute.String("beat.id", beatID),
		attribute.String("beat.action", beat.Action),
	))
	defer span.End()

	fail := func(action string, err error) error {
		err = &LocationError{Act: ai, Shot: si, Beat: bi, Action: action, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := o.wall.Now()

	var narrated *float64
	if beat.Narration != "" && o.narration != nil {
		lease, err := o.narration.Acquire(ctx, beat.Narration)
		if err != nil {
			return fail(beat.Action, fmt.Errorf("acquire narration: %w", err))
		}
		defer func() {
			if rerr := lease.Release(); rerr != nil {
				o.logger.Warn("narration release failed", "beat", beatID, "error", rerr)
			}
		}()
		d := lease.Duration()
		narrated = &d
		span.SetAttributes(attribute.Float64("beat.narration_seconds", d))
	}

	runTime, err := o.calc.ForBeat(beat, narrated)
	if err != nil {
		return fail(beat.Action, err)
	}

	bctx := scene.BeatContext{Act: ai, Shot: si, Beat: bi}
	if narrated != nil {
		bctx.Narration = *narrated
	}
	if err := o.engine.ExecuteBeat(ctx, beat, runTime, bctx); err != nil {
		return fail(beat.Action, err)
	}
	for _, action := range cueOrder(beat) {
		cue := ir.Beat{Action: action}
		if err := o.engine.ExecuteBeat(ctx, cue, o.calc.Base(action), bctx); err != nil {
			return fail(action, fmt.Errorf("cue: %w", err))
		}
	}

	end := o.wall.Now()
	rec := ir.TimingRecord{
		BeatID:    beatID,
		Action:    beat.Action,
		Expected:  runTime,
		Measured:  end.Sub(start).Seconds(),
		Mode:      o.calc.Mode(),
		Act:       ai,
		Shot:      si,
		Beat:      bi,
		Timestamp: start.UTC(),
	}
	o.log.Append(rec)
	o.metrics.Observe(rec)

	span.SetAttributes(
		attribute.Float64("beat.expected_seconds", rec.Expected),
		attribute.Float64("beat.measured_seconds", rec.Measured),
	)
	o.logger.Info("beat executed",
		"beat", beatID,
		"action", beat.Action,
		"expected", rec.Expected,
		"measured", rec.Measured,
	)
	return nil
}

// cueOrder returns the beat's cue actions ordered by where their cue word
// first appears in the narration. Words absent from the narration follow,
// sorted by word.
func cueOrder(beat ir.Beat) []string {
	if len(beat.Cues) == 0 {
		return nil
	}
	type cue struct {
		word   string
		action string
		pos    int
	}
	text := strings.ToLower(beat.Narration)
	cues := make([]cue, 0, len(beat.Cues))
	for word, action := range beat.Cues {
		pos := strings.Index(text, strings.ToLower(word))
		if pos < 0 {
			pos = len(text) + 1
		}
		cues = append(cues, cue{word: word, action: action, pos: pos})
	}
	slices.SortFunc(cues, func(a, b cue) int {
		return cmp.Or(cmp.Compare(a.pos, b.pos), cmp.Compare(a.word, b.word))
	})

	actions := make([]string, len(cues))
	for i, c := range cues {
		actions[i] = c.action
	}
	return actions
}
