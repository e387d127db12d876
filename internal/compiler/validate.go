package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/storyviz/internal/component"
	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/template"
	"github.com/roach88/storyviz/internal/timing"
)

// Validation error codes (E100-E199)
const (
	// Scene errors (E101-E109)
	ErrSceneNameEmpty       = "E101" // scene name is required
	ErrAlgorithmEmpty       = "E102" // algorithm is required
	ErrComponentTypeEmpty   = "E103" // component type is required
	ErrUnknownComponentType = "E104" // type not registered
	ErrDuplicateComponent   = "E105" // component declared twice

	// Binding and template errors (E110-E119)
	ErrUnknownWidget      = "E110" // binding targets an undeclared component
	ErrBindingActionEmpty = "E111" // binding action is required
	ErrTemplateSyntax     = "E112" // malformed ${...} template
	ErrUnknownNamespace   = "E113" // namespace not available in this position
	ErrUnresolvedRef      = "E114" // config/timing reference does not resolve
	ErrEventTypeEmpty     = "E115" // empty event type key

	// Timing errors (E120-E129)
	ErrInvalidTiming = "E120" // mode, bucket or multiplier is invalid

	// Storyboard errors (E130-E139)
	ErrNoBeats          = "E130" // storyboard has no beats
	ErrBeatActionEmpty  = "E131" // beat action is required
	ErrUnknownAction    = "E132" // beat or cue action is not known
	ErrDurationBounds   = "E133" // min_duration > max_duration
	ErrNegativeDuration = "E134" // duration bound below zero
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Options tune validation.
type Options struct {
	// Types is the component type registry. Nil skips E104.
	Types *component.Types
	// Actions lists the beat actions the scene engine accepts. Nil skips E132.
	Actions []string
	// Namespaces lists extra template namespaces provided by custom resolvers.
	Namespaces []string
}

// Validate checks a scene and a storyboard (either may be nil) and returns
// every error found (does not fail-fast), in document order.
func Validate(sc *ir.SceneConfig, sb *ir.Storyboard, opts Options) []ValidationError {
	v := &validator{opts: opts}
	if sc != nil {
		v.scene(sc)
	}
	if sb != nil {
		v.storyboard(sb)
	}
	return v.errs
}

type validator struct {
	opts Options
	errs []ValidationError

	config     map[string]any // nil when no scene was given
	timingView map[string]any // nil when timing is invalid or unknown
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) scene(sc *ir.SceneConfig) {
	if strings.TrimSpace(sc.Name) == "" {
		v.add("name", ErrSceneNameEmpty, "scene name is required")
	}
	if strings.TrimSpace(sc.Algorithm) == "" {
		v.add("algorithm", ErrAlgorithmEmpty, "algorithm is required")
	}

	seen := make(map[string]bool, len(sc.Components))
	for _, spec := range sc.Components {
		field := "components." + spec.Name
		if seen[spec.Name] {
			v.add(field, ErrDuplicateComponent, "duplicate component %q", spec.Name)
		}
		seen[spec.Name] = true

		switch {
		case strings.TrimSpace(spec.Type) == "":
			v.add(field+".type", ErrComponentTypeEmpty, "component %q has no type", spec.Name)
		case v.opts.Types != nil && !v.opts.Types.Has(spec.Type):
			v.add(field+".type", ErrUnknownComponentType, "unknown component type %q (available: %s)",
				spec.Type, strings.Join(v.opts.Types.Names(), ", "))
		}
	}

	cfg := timing.Merge(timing.Defaults(), sc.Timing)
	if err := timing.Validate(cfg); err != nil {
		v.add("timing", ErrInvalidTiming, "%v", err)
	} else if calc, err := timing.NewCalculator(cfg); err == nil {
		v.timingView = calc.View()
	}
	v.config = sc.Tree()

	for _, eventType := range slices.Sorted(maps.Keys(sc.Events)) {
		if strings.TrimSpace(eventType) == "" {
			v.add("events", ErrEventTypeEmpty, "event type must be non-empty")
		}
		for i, b := range sc.Events[eventType] {
			field := fmt.Sprintf("events.%s[%d]", eventType, i)
			if !seen[b.Widget] {
				v.add(field+".widget", ErrUnknownWidget, "binding targets unknown component %q", b.Widget)
			}
			if strings.TrimSpace(b.Action) == "" {
				v.add(field+".action", ErrBindingActionEmpty, "binding action is required")
			}
			for _, k := range ir.SortedKeys(b.Params) {
				v.template(field+".params."+k, b.Params[k], true)
			}
			if b.Guard != "" {
				v.template(field+".guard", b.Guard, true)
			}
		}
	}
}

func (v *validator) storyboard(sb *ir.Storyboard) {
	if sb.BeatCount() == 0 {
		v.add("acts", ErrNoBeats, "storyboard %q has no beats", sb.Name)
	}
	for a, act := range sb.Acts {
		for s, shot := range act.Shots {
			for b, beat := range shot.Beats {
				v.beat(fmt.Sprintf("acts[%d].shots[%d].beats[%d]", a, s, b), beat)
			}
		}
	}
}

func (v *validator) beat(field string, beat ir.Beat) {
	switch {
	case strings.TrimSpace(beat.Action) == "":
		v.add(field+".action", ErrBeatActionEmpty, "beat action is required")
	case !v.knownAction(beat.Action):
		v.add(field+".action", ErrUnknownAction, "unknown action %q (available: %s)",
			beat.Action, strings.Join(v.opts.Actions, ", "))
	}

	for _, word := range slices.Sorted(maps.Keys(beat.Cues)) {
		if action := beat.Cues[word]; !v.knownAction(action) {
			v.add(field+".cues."+word, ErrUnknownAction, "unknown cue action %q", action)
		}
	}

	if beat.MinDuration != nil && *beat.MinDuration < 0 {
		v.add(field+".min_duration", ErrNegativeDuration, "min_duration must be >= 0, got %g", *beat.MinDuration)
	}
	if beat.MaxDuration != nil && *beat.MaxDuration < 0 {
		v.add(field+".max_duration", ErrNegativeDuration, "max_duration must be >= 0, got %g", *beat.MaxDuration)
	}
	if beat.MinDuration != nil && beat.MaxDuration != nil && *beat.MinDuration > *beat.MaxDuration {
		v.add(field, ErrDurationBounds, "min_duration %g exceeds max_duration %g", *beat.MinDuration, *beat.MaxDuration)
	}

	for _, k := range ir.SortedKeys(beat.Args) {
		v.template(field+".args."+k, beat.Args[k], false)
	}
}

func (v *validator) knownAction(action string) bool {
	return v.opts.Actions == nil || slices.Contains(v.opts.Actions, action)
}

// template parses raw and checks every reference. Event references are only
// legal inside bindings; they cannot be checked before an event exists.
func (v *validator) template(field string, raw any, allowEvent bool) {
	expr, err := template.Parse(raw)
	if err != nil {
		v.add(field, ErrTemplateSyntax, "%v", err)
		return
	}

	for _, ref := range template.Refs(expr) {
		var root map[string]any
		switch ref.Namespace {
		case template.NamespaceEvent:
			if !allowEvent {
				v.add(field, ErrUnknownNamespace, "%s: event values are only available in bindings", ref)
			}
			continue
		case template.NamespaceConfig:
			root = v.config
		case template.NamespaceTiming:
			root = v.timingView
		default:
			if !slices.Contains(v.opts.Namespaces, ref.Namespace) {
				v.add(field, ErrUnknownNamespace, "unknown namespace %q in %s", ref.Namespace, ref)
			}
			continue
		}
		if root == nil {
			continue
		}
		if _, err := template.Walk(root, ref.Path); err != nil {
			v.add(field, ErrUnresolvedRef, "%s does not resolve: %v", ref, err)
		}
	}
}
