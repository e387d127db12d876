package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/storyviz/internal/ir"
)

// CompileStoryboard parses a CUE value into a Storyboard:
//
//	storyboard: {
//		name: "bfs-intro"
//		acts: [{
//			title: "Breadth first"
//			shots: [{beats: [{action: "show_widgets"}, {action: "play_events"}]}]
//		}]
//	}
func CompileStoryboard(v cue.Value) (*ir.Storyboard, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	if err := checkFields(v, "storyboard", "name", "acts"); err != nil {
		return nil, err
	}

	sb := &ir.Storyboard{}
	var err error
	if sb.Name, err = stringField(v, "name", "storyboard", false); err != nil {
		return nil, err
	}
	if sb.Name == "" {
		sb.Name = label(v)
	}

	err = eachElem(v, "acts", "storyboard", func(av cue.Value, field string) error {
		act, err := compileAct(av, field)
		sb.Acts = append(sb.Acts, act)
		return err
	})
	if err != nil {
		return nil, err
	}

	sb.Normalize()
	return sb, nil
}

func compileAct(v cue.Value, field string) (ir.Act, error) {
	var act ir.Act
	if err := checkFields(v, field, "title", "shots"); err != nil {
		return act, err
	}
	var err error
	if act.Title, err = stringField(v, "title", field, false); err != nil {
		return act, err
	}
	err = eachElem(v, "shots", field, func(sv cue.Value, field string) error {
		shot, err := compileShot(sv, field)
		act.Shots = append(act.Shots, shot)
		return err
	})
	return act, err
}

func compileShot(v cue.Value, field string) (ir.Shot, error) {
	var shot ir.Shot
	if err := checkFields(v, field, "name", "beats"); err != nil {
		return shot, err
	}
	var err error
	if shot.Name, err = stringField(v, "name", field, false); err != nil {
		return shot, err
	}
	err = eachElem(v, "beats", field, func(bv cue.Value, field string) error {
		beat, err := compileBeat(bv, field)
		shot.Beats = append(shot.Beats, beat)
		return err
	})
	return shot, err
}

func compileBeat(v cue.Value, field string) (ir.Beat, error) {
	var beat ir.Beat
	if err := checkFields(v, field, "action", "args", "narration", "cues", "min_duration", "max_duration"); err != nil {
		return beat, err
	}

	var err error
	if beat.Action, err = stringField(v, "action", field, true); err != nil {
		return beat, err
	}
	if beat.Narration, err = stringField(v, "narration", field, false); err != nil {
		return beat, err
	}
	if beat.Args, err = mapField(v, "args", field); err != nil {
		return beat, err
	}
	if beat.MinDuration, err = optionalNumber(v, "min_duration", field); err != nil {
		return beat, err
	}
	if beat.MaxDuration, err = optionalNumber(v, "max_duration", field); err != nil {
		return beat, err
	}
	if cv, ok := lookup(v, "cues"); ok {
		beat.Cues = make(map[string]string)
		err := eachField(cv, field+".cues", func(word string, av cue.Value, field string) error {
			action, err := av.String()
			if err != nil {
				return &CompileError{Field: field, Message: "cue must name an action", Pos: av.Pos()}
			}
			beat.Cues[word] = action
			return nil
		})
		if err != nil {
			return beat, err
		}
	}
	return beat, nil
}

// eachElem calls fn for every element of the optional list field name.
func eachElem(v cue.Value, name, field string, fn func(elem cue.Value, field string) error) error {
	lv, ok := lookup(v, name)
	if !ok {
		return nil
	}
	it, err := lv.List()
	if err != nil {
		return &CompileError{Field: field + "." + name, Message: "expected a list", Pos: lv.Pos()}
	}
	for i := 0; it.Next(); i++ {
		if err := fn(it.Value(), fmt.Sprintf("%s.%s[%d]", field, name, i)); err != nil {
			return err
		}
	}
	return nil
}
