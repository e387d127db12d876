package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/storyviz/internal/adapter"
	"github.com/roach88/storyviz/internal/binding"
	"github.com/roach88/storyviz/internal/component"
	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/template"
	"github.com/roach88/storyviz/internal/timing"
	"github.com/roach88/storyviz/internal/trace"
)

// Built-in beat actions.
const (
	ActionShowTitle   = "show_title"
	ActionOutro       = "outro"
	ActionShowWidgets = "show_widgets"
	ActionHideWidgets = "hide_widgets"
	ActionWait        = "wait"
	ActionPlayEvents  = "play_events"
)

// SceneTarget is the component name recorded for calls the engine executes
// itself (title cards, waits, custom handlers).
const SceneTarget = "scene"

var sceneActions = []string{ActionShowTitle, ActionOutro, ActionShowWidgets, ActionHideWidgets, ActionWait}

// ErrNotInitialized is returned when a beat or event reaches an engine
// before Initialize succeeded.
var ErrNotInitialized = errors.New("scene: engine not initialized")

// BeatContext locates the executing beat in the storyboard.
type BeatContext struct {
	Act  int
	Shot int
	Beat int
	// Narration is the narration duration in seconds, 0 without narration.
	Narration float64
}

// Handler executes a custom beat action.
type Handler func(ctx context.Context, args map[string]any, runTime float64, bctx BeatContext) error

// Engine executes beats against one scene configuration.
type Engine struct {
	scene     *ir.SceneConfig
	types     *component.Types
	adapters  *adapter.Registry
	handlers  map[string]Handler
	resolvers map[string]template.Resolver
	recorder  trace.Recorder
	clock     *trace.Clock
	calc      *timing.Calculator
	metrics   *timing.Metrics
	logger    *slog.Logger
	maxEvents int

	// Set by Initialize.
	registry    *component.Registry
	table       *binding.Table
	base        *template.Context
	initialized bool

	current BeatContext
}

// Option configures an Engine.
type Option func(*Engine)

// WithTypes sets the component type table. Default: component.StubTypes().
func WithTypes(t *component.Types) Option {
	return func(e *Engine) {
		e.types = t
	}
}

// WithAdapters sets the algorithm adapters available to play_events.
func WithAdapters(r *adapter.Registry) Option {
	return func(e *Engine) {
		e.adapters = r
	}
}

// WithHandler registers a custom beat action. Names must not shadow a
// built-in action; Initialize reports shadowing.
func WithHandler(name string, h Handler) Option {
	return func(e *Engine) {
		e.handlers[name] = h
	}
}

// WithResolver adds a custom template namespace.
func WithResolver(namespace string, r template.Resolver) Option {
	return func(e *Engine) {
		e.resolvers[namespace] = r
	}
}

// WithRecorder sets where dispatched calls are recorded.
func WithRecorder(r trace.Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithClock sets the logical clock that sequences recorded calls.
func WithClock(c *trace.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithCalculator sets the timing calculator. Default: the scene's timing
// overrides merged over timing.Defaults().
func WithCalculator(c *timing.Calculator) Option {
	return func(e *Engine) {
		e.calc = c
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *timing.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMaxEvents sets the event budget of one play_events action.
//
// Default: 100000 (DefaultMaxEvents).
func WithMaxEvents(n int) Option {
	return func(e *Engine) {
		e.maxEvents = n
	}
}

// New returns an engine for scene. Call Initialize before executing beats.
func New(scene *ir.SceneConfig, opts ...Option) *Engine {
	e := &Engine{
		scene:     scene,
		types:     component.StubTypes(),
		adapters:  adapter.NewRegistry(),
		handlers:  make(map[string]Handler),
		resolvers: make(map[string]template.Resolver),
		clock:     trace.NewClock(),
		logger:    slog.Default(),
		maxEvents: DefaultMaxEvents,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize instantiates every component, builds the binding table and
// checks custom handlers and resolvers. Every problem is reported in one
// InitError. On failure, components already constructed are closed.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.initialized {
		return fmt.Errorf("scene %q: engine already initialized", e.scene.Name)
	}

	var errs []error
	if e.calc == nil {
		calc, err := timing.NewCalculator(timing.Merge(timing.Defaults(), e.scene.Timing))
		if err != nil {
			errs = append(errs, fmt.Errorf("timing: %w", err))
		}
		e.calc = calc
	}

	e.registry = component.NewRegistry(e.types, component.WithLogger(e.logger))
	errs = append(errs, flatten(e.registry.InstantiateAll(ctx, e.scene.Components))...)

	table, err := binding.NewTable(e.scene.Events, e.scene.ComponentNames())
	errs = append(errs, flatten(err)...)

	for _, name := range slices.Sorted(maps.Keys(e.handlers)) {
		if isBuiltin(name) {
			errs = append(errs, fmt.Errorf("handler %q shadows a built-in action", name))
		}
	}
	for _, ns := range slices.Sorted(maps.Keys(e.resolvers)) {
		switch ns {
		case template.NamespaceEvent, template.NamespaceConfig, template.NamespaceTiming:
			errs = append(errs, fmt.Errorf("resolver %q shadows a standard namespace", ns))
		}
	}

	if len(errs) > 0 {
		if err := e.registry.Close(); err != nil {
			e.logger.Warn("closing components after failed initialization", "scene", e.scene.Name, "error", err)
		}
		return &InitError{Scene: e.scene.Name, Errs: errs}
	}

	e.table = table
	base := template.NewContext()
	for ns, r := range e.resolvers {
		base = base.With(ns, r)
	}
	e.base = base.
		WithValues(template.NamespaceConfig, e.scene.Tree()).
		WithValues(template.NamespaceTiming, e.calc.View())
	e.initialized = true

	e.logger.Info("scene initialized",
		"scene", e.scene.Name,
		"algorithm", e.scene.Algorithm,
		"components", len(e.scene.Components),
		"event_types", len(table.EventTypes()),
	)
	return nil
}

func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func isBuiltin(action string) bool {
	return action == ActionPlayEvents || slices.Contains(sceneActions, action)
}

// Actions returns every action ExecuteBeat accepts, sorted.
func (e *Engine) Actions() []string {
	actions := append(slices.Clone(sceneActions), ActionPlayEvents)
	for name := range e.handlers {
		if !isBuiltin(name) {
			actions = append(actions, name)
		}
	}
	slices.Sort(actions)
	return actions
}

// ExecuteBeat runs one beat. Beat args are resolved against the config and
// timing namespaces before the action is executed.
func (e *Engine) ExecuteBeat(ctx context.Context, beat ir.Beat, runTime float64, bctx BeatContext) error {
	if !e.initialized {
		return ErrNotInitialized
	}

	handler, custom := e.handlers[beat.Action]
	switch {
	case slices.Contains(sceneActions, beat.Action), beat.Action == ActionPlayEvents:
	case custom:
	default:
		return &UnknownActionError{Action: beat.Action, Available: e.Actions()}
	}

	e.current = bctx
	args, err := e.resolveBeatArgs(beat.Args)
	if err != nil {
		return fmt.Errorf("action %q: %w", beat.Action, err)
	}

	e.logger.Debug("executing beat",
		"action", beat.Action,
		"act", bctx.Act, "shot", bctx.Shot, "beat", bctx.Beat,
		"run_time", runTime,
	)

	switch {
	case beat.Action == ActionPlayEvents:
		return e.playEvents(ctx, args)
	case custom:
		if err := handler(ctx, args, runTime, bctx); err != nil {
			return fmt.Errorf("handler %q: %w", beat.Action, err)
		}
		return e.record(ctx, ir.Call{Component: SceneTarget, Action: beat.Action, Args: args})
	default:
		return e.executeSceneAction(ctx, beat.Action, args)
	}
}

func (e *Engine) resolveBeatArgs(raw map[string]any) (map[string]any, error) {
	params, err := template.CompileMap(raw)
	if err != nil {
		return nil, err
	}
	return template.ResolveMap(params, e.base)
}

func (e *Engine) executeSceneAction(ctx context.Context, action string, args map[string]any) error {
	switch action {
	case ActionShowWidgets, ActionHideWidgets:
		names, err := widgetNames(args, e.registry.Names())
		if err != nil {
			return fmt.Errorf("action %q: %w", action, err)
		}
		for _, name := range names {
			c, err := e.registry.Get(name)
			if err != nil {
				return fmt.Errorf("action %q: %w", action, err)
			}
			lifecycle, verb := c.Show, "show"
			if action == ActionHideWidgets {
				lifecycle, verb = c.Hide, "hide"
			}
			if err := lifecycle(ctx); err != nil {
				return fmt.Errorf("action %q: %s %q: %w", action, verb, name, err)
			}
			if err := e.record(ctx, ir.Call{Component: name, Action: verb}); err != nil {
				return err
			}
		}
		return nil
	default:
		return e.record(ctx, ir.Call{Component: SceneTarget, Action: action, Args: args})
	}
}

// widgetNames reads the optional "widgets" argument: a name or a list of
// names. Without it every component is targeted, in declaration order.
func widgetNames(args map[string]any, all []string) ([]string, error) {
	raw, ok := args["widgets"]
	if !ok || raw == nil {
		return all, nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []any:
		names := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("widgets[%d]: expected a component name, got %T", i, item)
			}
			names[i] = s
		}
		return names, nil
	case []string:
		return v, nil
	default:
		return nil, fmt.Errorf("widgets: expected a name or list of names, got %T", raw)
	}
}

// HandleEvent dispatches ev through its bindings, in order. Events without
// bindings are ignored. The first failing binding aborts the event.
func (e *Engine) HandleEvent(ctx context.Context, ev ir.VizEvent) error {
	if !e.initialized {
		return ErrNotInitialized
	}

	e.metrics.EventDispatched(ev.Type)
	bindings := e.table.For(ev.Type)
	if len(bindings) == 0 {
		e.logger.Debug("no bindings for event", "type", ev.Type, "step", ev.StepIndex)
		return nil
	}

	tctx := e.base.WithValues(template.NamespaceEvent, ev.Payload)
	for _, b := range bindings {
		if err := e.dispatch(ctx, tctx, ev, b); err != nil {
			return &EventError{Type: ev.Type, StepIndex: ev.StepIndex, Err: err}
		}
	}
	return nil
}

func (e *Engine) dispatch(ctx context.Context, tctx *template.Context, ev ir.VizEvent, b binding.Compiled) error {
	fail := func(err error) error {
		return &BindingError{Widget: b.Widget, Action: b.Action, Order: b.Order, Err: err}
	}

	if b.Guard != nil {
		v, err := b.Guard.Eval(tctx)
		if err != nil {
			return fail(fmt.Errorf("guard: %w", err))
		}
		if !ir.Truthy(v) {
			e.logger.Debug("binding skipped by guard", "type", ev.Type, "widget", b.Widget, "action", b.Action)
			return nil
		}
	}

	args, err := template.ResolveMap(b.Params, tctx)
	if err != nil {
		return fail(err)
	}
	action, err := e.registry.Action(b.Widget, b.Action)
	if err != nil {
		return fail(err)
	}
	if err := action(ctx, args); err != nil {
		return fail(err)
	}

	e.logger.Debug("dispatched",
		"type", ev.Type, "step", ev.StepIndex,
		"widget", b.Widget, "action", b.Action,
	)
	step := ev.StepIndex
	return e.record(ctx, ir.Call{
		Component: b.Widget,
		Action:    b.Action,
		Args:      args,
		EventType: ev.Type,
		StepIndex: &step,
	})
}

func (e *Engine) record(ctx context.Context, call ir.Call) error {
	call.Seq = e.clock.Next()
	call.Act, call.Shot, call.Beat = e.current.Act, e.current.Shot, e.current.Beat
	if e.recorder == nil {
		return nil
	}
	if err := e.recorder.Record(ctx, call); err != nil {
		return fmt.Errorf("record call %s.%s: %w", call.Component, call.Action, err)
	}
	return nil
}

// Scene returns the scene configuration.
func (e *Engine) Scene() *ir.SceneConfig {
	return e.scene
}

// Calculator returns the timing calculator. It is nil before Initialize
// unless set with WithCalculator.
func (e *Engine) Calculator() *timing.Calculator {
	return e.calc
}

// Component returns a live component by name.
func (e *Engine) Component(name string) (component.Component, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	return e.registry.Get(name)
}

// Close releases every component. The engine cannot be reused.
func (e *Engine) Close() error {
	if e.registry == nil {
		return nil
	}
	e.initialized = false
	return e.registry.Close()
}
