package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/storyviz/internal/ir"
)

// CompileScene parses a CUE value into a SceneConfig. Uses the CUE Go API
// directly.
//
// The value is the scene struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`scene: { algorithm: "bfs", components: {...} }`)
//	sc, err := CompileScene(v.LookupPath(cue.ParsePath("scene")))
//
// Components keep their CUE declaration order. When name is omitted, the
// struct label is used.
func CompileScene(v cue.Value) (*ir.SceneConfig, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	if err := checkFields(v, "scene", "name", "algorithm", "components", "events", "timing"); err != nil {
		return nil, err
	}

	sc := &ir.SceneConfig{}
	var err error
	if sc.Name, err = stringField(v, "name", "scene", false); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		sc.Name = label(v)
	}
	if sc.Algorithm, err = stringField(v, "algorithm", "scene", true); err != nil {
		return nil, err
	}
	if sc.Components, err = compileComponents(v); err != nil {
		return nil, err
	}
	if sc.Events, err = compileEvents(v); err != nil {
		return nil, err
	}
	if tv, ok := lookup(v, "timing"); ok {
		t, err := compileTiming(tv)
		if err != nil {
			return nil, err
		}
		sc.Timing = &t
	}

	sc.Normalize()
	return sc, nil
}

func compileComponents(v cue.Value) ([]ir.ComponentSpec, error) {
	cv, ok := lookup(v, "components")
	if !ok {
		return nil, nil
	}
	it, err := cv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ir.ComponentSpec
	for it.Next() {
		name := it.Label()
		field := "components." + name
		val := it.Value()
		if err := checkFields(val, field, "type", "params"); err != nil {
			return nil, err
		}
		spec := ir.ComponentSpec{Name: name}
		if spec.Type, err = stringField(val, "type", field, true); err != nil {
			return nil, err
		}
		if spec.Params, err = mapField(val, "params", field); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func compileEvents(v cue.Value) (map[string][]ir.EventBinding, error) {
	ev, ok := lookup(v, "events")
	if !ok {
		return nil, nil
	}
	it, err := ev.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	events := make(map[string][]ir.EventBinding)
	for it.Next() {
		eventType := it.Label()
		list, err := it.Value().List()
		if err != nil {
			return nil, &CompileError{
				Field:   "events." + eventType,
				Message: "expected a list of bindings",
				Pos:     it.Value().Pos(),
			}
		}
		var bindings []ir.EventBinding
		for i := 0; list.Next(); i++ {
			b, err := compileBinding(list.Value(), fmt.Sprintf("events.%s[%d]", eventType, i))
			if err != nil {
				return nil, err
			}
			bindings = append(bindings, b)
		}
		events[eventType] = bindings
	}
	return events, nil
}

func compileBinding(v cue.Value, field string) (ir.EventBinding, error) {
	var b ir.EventBinding
	if err := checkFields(v, field, "widget", "action", "params", "order", "guard"); err != nil {
		return b, err
	}

	var err error
	if b.Widget, err = stringField(v, "widget", field, true); err != nil {
		return b, err
	}
	if b.Action, err = stringField(v, "action", field, true); err != nil {
		return b, err
	}
	if b.Guard, err = stringField(v, "guard", field, false); err != nil {
		return b, err
	}
	if b.Params, err = mapField(v, "params", field); err != nil {
		return b, err
	}
	if ov, ok := lookup(v, "order"); ok {
		order, err := ov.Int64()
		if err != nil {
			return b, &CompileError{Field: field + ".order", Message: "must be an integer", Pos: ov.Pos()}
		}
		b.Order = int(order)
	}
	return b, nil
}

func compileTiming(v cue.Value) (ir.TimingConfig, error) {
	var t ir.TimingConfig
	if err := checkFields(v, "timing", "mode", "buckets", "multipliers", "action_buckets"); err != nil {
		return t, err
	}

	mode, err := stringField(v, "mode", "timing", false)
	if err != nil {
		return t, err
	}
	t.Mode = ir.Mode(mode)

	if bv, ok := lookup(v, "buckets"); ok {
		t.Buckets = make(map[string]float64)
		if err := eachField(bv, "timing.buckets", func(name string, fv cue.Value, field string) error {
			n, err := numberValue(fv, field)
			t.Buckets[name] = n
			return err
		}); err != nil {
			return t, err
		}
	}
	if mv, ok := lookup(v, "multipliers"); ok {
		t.Multipliers = make(map[ir.Mode]float64)
		if err := eachField(mv, "timing.multipliers", func(name string, fv cue.Value, field string) error {
			n, err := numberValue(fv, field)
			t.Multipliers[ir.Mode(name)] = n
			return err
		}); err != nil {
			return t, err
		}
	}
	if av, ok := lookup(v, "action_buckets"); ok {
		t.ActionBuckets = make(map[string]string)
		if err := eachField(av, "timing.action_buckets", func(name string, fv cue.Value, field string) error {
			s, err := fv.String()
			if err != nil {
				return &CompileError{Field: field, Message: "must be a bucket name", Pos: fv.Pos()}
			}
			t.ActionBuckets[name] = s
			return nil
		}); err != nil {
			return t, err
		}
	}
	return t, nil
}

func eachField(v cue.Value, field string, fn func(name string, fv cue.Value, field string) error) error {
	it, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for it.Next() {
		if err := fn(it.Label(), it.Value(), field+"."+it.Label()); err != nil {
			return err
		}
	}
	return nil
}
