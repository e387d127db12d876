package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// sceneFields lists the keys accepted at the top level of a scene document.
var sceneFields = []string{"name", "algorithm", "components", "events", "timing"}

// sceneBody is SceneConfig without the ordered components mapping.
type sceneBody struct {
	Name      string                    `json:"name" yaml:"name"`
	Algorithm string                    `json:"algorithm" yaml:"algorithm"`
	Events    map[string][]EventBinding `json:"events,omitempty" yaml:"events,omitempty"`
	Timing    *TimingConfig             `json:"timing,omitempty" yaml:"timing,omitempty"`
}

// UnmarshalYAML decodes a scene document, keeping the components mapping in
// declaration order. Duplicate component names and unknown top-level keys
// are errors.
func (c *SceneConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: scene must be a mapping", node.Line)
	}

	var components *yaml.Node
	body := &yaml.Node{Kind: yaml.MappingNode, Tag: node.Tag, Line: node.Line, Column: node.Column}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if !slices.Contains(sceneFields, key.Value) {
			return fmt.Errorf("line %d: field %s not found in scene", key.Line, key.Value)
		}
		if key.Value == "components" {
			components = value
			continue
		}
		body.Content = append(body.Content, key, value)
	}

	var b sceneBody
	if err := body.Decode(&b); err != nil {
		return err
	}
	specs, err := decodeComponentsYAML(components)
	if err != nil {
		return err
	}

	*c = SceneConfig{
		Name:       b.Name,
		Algorithm:  b.Algorithm,
		Components: specs,
		Events:     b.Events,
		Timing:     b.Timing,
	}
	c.Normalize()
	return nil
}

func decodeComponentsYAML(node *yaml.Node) ([]ComponentSpec, error) {
	if node == nil || node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: components must be a mapping of name to spec", node.Line)
	}

	specs := make([]ComponentSpec, 0, len(node.Content)/2)
	seen := make(map[string]int, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if first, dup := seen[key.Value]; dup {
			return nil, fmt.Errorf("line %d: duplicate component %q (first declared on line %d)", key.Line, key.Value, first)
		}
		seen[key.Value] = key.Line

		var spec ComponentSpec
		if err := value.Decode(&spec); err != nil {
			return nil, fmt.Errorf("component %q: %w", key.Value, err)
		}
		spec.Name = key.Value
		specs = append(specs, spec)
	}
	return specs, nil
}

// MarshalYAML encodes the scene with components as an ordered mapping.
func (c SceneConfig) MarshalYAML() (any, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value any) error {
		var v yaml.Node
		if err := v.Encode(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &v)
		return nil
	}

	if err := add("name", c.Name); err != nil {
		return nil, err
	}
	if err := add("algorithm", c.Algorithm); err != nil {
		return nil, err
	}

	comps := &yaml.Node{Kind: yaml.MappingNode}
	for _, spec := range c.Components {
		var v yaml.Node
		if err := v.Encode(spec); err != nil {
			return nil, fmt.Errorf("component %q: %w", spec.Name, err)
		}
		comps.Content = append(comps.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: spec.Name}, &v)
	}
	root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "components"}, comps)

	if len(c.Events) > 0 {
		if err := add("events", c.Events); err != nil {
			return nil, err
		}
	}
	if c.Timing != nil {
		if err := add("timing", c.Timing); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// UnmarshalJSON decodes a scene document, keeping the components object in
// declaration order.
func (c *SceneConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if !slices.Contains(sceneFields, key) {
			return fmt.Errorf("json: unknown field %q in scene", key)
		}
	}

	var b sceneBody
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&b); err != nil {
		return err
	}
	specs, err := decodeComponentsJSON(raw["components"])
	if err != nil {
		return err
	}

	*c = SceneConfig{
		Name:       b.Name,
		Algorithm:  b.Algorithm,
		Components: specs,
		Events:     b.Events,
		Timing:     b.Timing,
	}
	c.Normalize()
	return nil
}

func decodeComponentsJSON(data json.RawMessage) ([]ComponentSpec, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("json: components must be an object of name to spec")
	}

	var specs []ComponentSpec
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)
		if seen[name] {
			return nil, fmt.Errorf("json: duplicate component %q", name)
		}
		seen[name] = true

		var spec ComponentSpec
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("component %q: %w", name, err)
		}
		spec.Name = name
		specs = append(specs, spec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return specs, nil
}

// MarshalJSON encodes the scene with components as an ordered object.
func (c SceneConfig) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	write := func(key string, value any) error {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(b)
		return nil
	}

	buf.WriteByte('{')
	if err := write("name", c.Name); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := write("algorithm", c.Algorithm); err != nil {
		return nil, err
	}
	buf.WriteString(`,"components":{`)
	for i, spec := range c.Components {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := write(spec.Name, spec); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	if len(c.Events) > 0 {
		buf.WriteByte(',')
		if err := write("events", c.Events); err != nil {
			return nil, err
		}
	}
	if c.Timing != nil {
		buf.WriteByte(',')
		if err := write("timing", c.Timing); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
