package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/storyviz/internal/ir"
)

// Recorded replays events captured ahead of time. The scenario selects the
// source:
//
//	events: [...]        inline list of events
//	file: trace.jsonl    file relative to the adapter's base directory
//
// Files ending in .jsonl or .ndjson hold one JSON event per line; .json
// holds a JSON array; .yaml and .yml hold a YAML list.
type Recorded struct {
	name    string
	baseDir string
}

// NewRecorded returns a recorded-events adapter registered as name.
func NewRecorded(name, baseDir string) *Recorded {
	return &Recorded{name: name, baseDir: baseDir}
}

func (r *Recorded) Name() string { return r.name }

func (r *Recorded) Run(ctx context.Context, scenario map[string]any) iter.Seq2[ir.VizEvent, error] {
	return func(yield func(ir.VizEvent, error) bool) {
		if inline, ok := scenario["events"]; ok {
			list, ok := inline.([]any)
			if !ok {
				yield(ir.VizEvent{}, fmt.Errorf("scenario events: expected a list, got %T", inline))
				return
			}
			for i, raw := range list {
				if err := ctx.Err(); err != nil {
					yield(ir.VizEvent{}, err)
					return
				}
				ev, err := DecodeEvent(raw)
				if err != nil {
					yield(ir.VizEvent{}, fmt.Errorf("scenario events[%d]: %w", i, err))
					return
				}
				if !yield(ev, nil) {
					return
				}
			}
			return
		}

		file, ok := scenario["file"].(string)
		if !ok || file == "" {
			yield(ir.VizEvent{}, fmt.Errorf("scenario needs an events list or a file"))
			return
		}
		path := file
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.baseDir, path)
		}
		r.replayFile(ctx, path, yield)
	}
}

func (r *Recorded) replayFile(ctx context.Context, path string, yield func(ir.VizEvent, error) bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jsonl", ".ndjson", ".json", ".yaml", ".yml":
	default:
		yield(ir.VizEvent{}, fmt.Errorf("%s: unsupported recorded events format", path))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		yield(ir.VizEvent{}, fmt.Errorf("open recorded events: %w", err))
		return
	}
	defer f.Close()

	switch ext {
	case ".jsonl", ".ndjson":
		dec := json.NewDecoder(f)
		dec.UseNumber()
		for i := 0; ; i++ {
			if err := ctx.Err(); err != nil {
				yield(ir.VizEvent{}, err)
				return
			}
			var raw any
			if err := dec.Decode(&raw); errors.Is(err, io.EOF) {
				return
			} else if err != nil {
				yield(ir.VizEvent{}, fmt.Errorf("%s: event %d: %w", path, i, err))
				return
			}
			ev, err := DecodeEvent(raw)
			if err != nil {
				yield(ir.VizEvent{}, fmt.Errorf("%s: event %d: %w", path, i, err))
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	default:
		data, err := io.ReadAll(f)
		if err != nil {
			yield(ir.VizEvent{}, fmt.Errorf("read recorded events: %w", err))
			return
		}
		var list []any
		if ext == ".json" {
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			err = dec.Decode(&list)
		} else {
			err = yaml.Unmarshal(data, &list)
		}
		if err != nil {
			yield(ir.VizEvent{}, fmt.Errorf("%s: %w", path, err))
			return
		}
		for i, raw := range list {
			ev, err := DecodeEvent(raw)
			if err != nil {
				yield(ir.VizEvent{}, fmt.Errorf("%s: event %d: %w", path, i, err))
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// DecodeEvent converts a decoded document value into a VizEvent.
func DecodeEvent(raw any) (ir.VizEvent, error) {
	m, ok := ir.NormalizeValue(raw).(map[string]any)
	if !ok {
		return ir.VizEvent{}, fmt.Errorf("event must be a mapping, got %T", raw)
	}
	for k := range m {
		switch k {
		case "type", "payload", "step_index", "metadata":
		default:
			return ir.VizEvent{}, fmt.Errorf("unknown event field %q", k)
		}
	}

	var ev ir.VizEvent
	typ, ok := m["type"].(string)
	if !ok || typ == "" {
		return ir.VizEvent{}, fmt.Errorf("event type is required")
	}
	ev.Type = typ

	switch step := m["step_index"].(type) {
	case int64:
		ev.StepIndex = step
	case nil:
		return ir.VizEvent{}, fmt.Errorf("event %q: step_index is required", typ)
	default:
		return ir.VizEvent{}, fmt.Errorf("event %q: step_index must be an integer, got %T", typ, step)
	}

	var err error
	if ev.Payload, err = mapField(m, "payload"); err != nil {
		return ir.VizEvent{}, fmt.Errorf("event %q: %w", typ, err)
	}
	if ev.Metadata, err = mapField(m, "metadata"); err != nil {
		return ir.VizEvent{}, fmt.Errorf("event %q: %w", typ, err)
	}
	return ev, nil
}

func mapField(m map[string]any, key string) (map[string]any, error) {
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("%s must be a mapping, got %T", key, v)
	}
}
