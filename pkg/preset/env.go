package preset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// nodeAlias has the identical field set to Node but types Env as a raw
// document fragment, so UnmarshalYAML/UnmarshalJSON can decode it themselves
// and preserve declaration order (see EnvVar's doc comment).
type nodeAlias struct {
	Kind         NodeKind    `yaml:"kind" json:"kind"`
	Name         string      `yaml:"name,omitempty" json:"name,omitempty"`
	Command      string      `yaml:"command,omitempty" json:"command,omitempty"`
	Cwd          string      `yaml:"cwd,omitempty" json:"cwd,omitempty"`
	Env          yaml.Node   `yaml:"env,omitempty" json:"-"`
	EnvRaw       json.RawMessage `yaml:"-" json:"env,omitempty"`
	Focus        bool        `yaml:"focus,omitempty" json:"focus,omitempty"`
	Title        string      `yaml:"title,omitempty" json:"title,omitempty"`
	Ephemeral    bool        `yaml:"ephemeral,omitempty" json:"ephemeral,omitempty"`
	CloseOnError bool        `yaml:"closeOnError,omitempty" json:"closeOnError,omitempty"`
	DelayMs      int         `yaml:"delayMs,omitempty" json:"delayMs,omitempty"`
	Orientation  Orientation `yaml:"orientation,omitempty" json:"orientation,omitempty"`
	Ratio        []float64   `yaml:"ratio,omitempty" json:"ratio,omitempty"`
	Children     []Node      `yaml:"children,omitempty" json:"children,omitempty"`
}

// UnmarshalYAML decodes a layout node, preserving env key order by reading
// the mapping node's Content pairs directly instead of via a Go map.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var alias nodeAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}

	env, err := envFromYAMLNode(&alias.Env)
	if err != nil {
		return err
	}

	*n = Node{
		Kind:         alias.Kind,
		Name:         alias.Name,
		Command:      alias.Command,
		Cwd:          alias.Cwd,
		Env:          env,
		Focus:        alias.Focus,
		Title:        alias.Title,
		Ephemeral:    alias.Ephemeral,
		CloseOnError: alias.CloseOnError,
		DelayMs:      alias.DelayMs,
		Orientation:  alias.Orientation,
		Ratio:        alias.Ratio,
		Children:     alias.Children,
	}
	return nil
}

func envFromYAMLNode(node *yaml.Node) ([]EnvVar, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("env must be a mapping, got kind %v", node.Kind)
	}
	env := make([]EnvVar, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1].Value
		env = append(env, EnvVar{Key: key, Value: val})
	}
	return env, nil
}

// UnmarshalJSON decodes a layout node from JSON, preserving env key order
// via token-based decoding rather than json.Unmarshal into a Go map.
func (n *Node) UnmarshalJSON(data []byte) error {
	var alias nodeAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	env, err := envFromJSONRaw(alias.EnvRaw)
	if err != nil {
		return err
	}

	*n = Node{
		Kind:         alias.Kind,
		Name:         alias.Name,
		Command:      alias.Command,
		Cwd:          alias.Cwd,
		Env:          env,
		Focus:        alias.Focus,
		Title:        alias.Title,
		Ephemeral:    alias.Ephemeral,
		CloseOnError: alias.CloseOnError,
		DelayMs:      alias.DelayMs,
		Orientation:  alias.Orientation,
		Ratio:        alias.Ratio,
		Children:     alias.Children,
	}
	return nil
}

func envFromJSONRaw(raw json.RawMessage) ([]EnvVar, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("env must be a JSON object")
	}

	var env []EnvVar
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("env key must be a string")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		env = append(env, EnvVar{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return env, nil
}
