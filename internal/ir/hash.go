package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix allows the
// digest algorithm to change without colliding with old values.
const (
	DomainTrace = "storyviz/trace/v1"
	DomainCall  = "storyviz/call/v1"
	DomainScene = "storyviz/scene/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// callObject is the digest view of a call. Seq is included so that two
// traces with the same calls in a different order never collide.
func callObject(c Call) map[string]any {
	obj := map[string]any{
		"seq":       c.Seq,
		"component": c.Component,
		"action":    c.Action,
		"args":      c.Args,
		"act":       int64(c.Act),
		"shot":      int64(c.Shot),
		"beat":      int64(c.Beat),
	}
	if obj["args"] == nil {
		obj["args"] = map[string]any{}
	}
	if c.EventType != "" {
		obj["event_type"] = c.EventType
	}
	if c.StepIndex != nil {
		obj["step_index"] = *c.StepIndex
	}
	return obj
}

// CallDigest computes the content digest of a single call.
func CallDigest(c Call) (string, error) {
	canonical, err := MarshalCanonical(callObject(c))
	if err != nil {
		return "", fmt.Errorf("CallDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCall, canonical), nil
}

// TraceDigest computes the digest of an ordered call sequence. Identical
// inputs to a render must produce identical digests.
func TraceDigest(calls []Call) (string, error) {
	list := make([]any, len(calls))
	for i, c := range calls {
		list[i] = callObject(c)
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("TraceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// SceneDigest computes the digest of a scene configuration's template tree
// and bindings, used to tag persisted runs.
func SceneDigest(cfg *SceneConfig) (string, error) {
	events := make(map[string]any, len(cfg.Events))
	for eventType, list := range cfg.Events {
		bindings := make([]any, len(list))
		for i, b := range list {
			bindings[i] = map[string]any{
				"widget": b.Widget,
				"action": b.Action,
				"params": nilToEmpty(b.Params),
				"order":  int64(b.Order),
				"guard":  b.Guard,
			}
		}
		events[eventType] = bindings
	}
	components := make([]any, len(cfg.Components))
	for i, spec := range cfg.Components {
		components[i] = map[string]any{
			"name":   spec.Name,
			"type":   spec.Type,
			"params": nilToEmpty(spec.Params),
		}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"name":       cfg.Name,
		"algorithm":  cfg.Algorithm,
		"components": components,
		"events":     events,
	})
	if err != nil {
		return "", fmt.Errorf("SceneDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainScene, canonical), nil
}

func nilToEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// MustTraceDigest is like TraceDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTraceDigest(calls []Call) string {
	d, err := TraceDigest(calls)
	if err != nil {
		panic(err)
	}
	return d
}
