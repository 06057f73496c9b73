// Package preset defines the user-authored layout tree and the compiler
// that validates and canonicalizes it into a CompiledPreset. The tree shape
// is recursive split/terminal nodes (rather than a flat window/action list)
// so it can model nested pane splits, with json and yaml struct tags side
// by side for dual-format decoding.
package preset

// Orientation is the split direction of a split node.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// NodeKind tags which variant a Node holds.
type NodeKind string

const (
	KindTerminal NodeKind = "terminal"
	KindSplit    NodeKind = "split"
)

// EnvVar is one KEY=VALUE entry. Presets use a slice rather than a Go map so
// that the declared insertion order survives decoding: both the YAML and
// JSON custom unmarshalers (see env.go) read keys in document order, and
// terminal command preparation must replay `export` statements in that same
// order.
type EnvVar struct {
	Key   string
	Value string
}

// Node is a closed sum of a terminal leaf and a split branch. Exactly the
// fields relevant to Kind are meaningful; this mirrors the "tagged variants
// over subtype hierarchies" design note rather than introducing an
// interface + two implementing structs.
type Node struct {
	Kind NodeKind `json:"kind" yaml:"kind"`

	// Terminal leaf fields (meaningful when Kind == KindTerminal).
	Name         string      `json:"name,omitempty" yaml:"name,omitempty"`
	Command      string      `json:"command,omitempty" yaml:"command,omitempty"`
	Cwd          string      `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	Env          []EnvVar    `json:"env,omitempty" yaml:"env,omitempty"`
	Focus        bool        `json:"focus,omitempty" yaml:"focus,omitempty"`
	Title        string      `json:"title,omitempty" yaml:"title,omitempty"`
	Ephemeral    bool        `json:"ephemeral,omitempty" yaml:"ephemeral,omitempty"`
	CloseOnError bool        `json:"closeOnError,omitempty" yaml:"closeOnError,omitempty"`
	DelayMs      int         `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`

	// Split branch fields (meaningful when Kind == KindSplit).
	Orientation Orientation `json:"orientation,omitempty" yaml:"orientation,omitempty"`
	Ratio       []float64   `json:"ratio,omitempty" yaml:"ratio,omitempty"`
	Children    []Node      `json:"children,omitempty" yaml:"children,omitempty"`
}

// Preset is the root document: a layout tree plus metadata.
type Preset struct {
	Name     string            `json:"name,omitempty" yaml:"name,omitempty"`
	Version  string            `json:"version,omitempty" yaml:"version,omitempty"`
	Backend  string            `json:"backend,omitempty" yaml:"backend,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Root     Node              `json:"root" yaml:"root"`
}

// CompiledPreset is structurally identical to Preset but its Root has passed
// Compile: ratios are normalized, exactly one leaf is focused, leaf names
// are unique, and env keys are valid identifiers.
type CompiledPreset struct {
	Name     string
	Version  string
	Backend  string
	Metadata map[string]string
	Root     Node
}
