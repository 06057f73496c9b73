package preset

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"vde-layout/pkg/errs"
)

const ratioEpsilon = 1e-9

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compile validates p's structural shape, normalizes ratios, resolves
// focus, and checks name/env-key invariants, returning a CompiledPreset or a
// structured *errs.Error.
func Compile(p Preset) (CompiledPreset, error) {
	root := p.Root

	seenNames := make(map[string]string) // name -> path, for DUPLICATE_NAME messages
	focusPath := ""

	normalized, err := compileNode(root, "root", seenNames, &focusPath)
	if err != nil {
		return CompiledPreset{}, err
	}

	if focusPath == "" {
		normalized = assignFirstFocus(normalized)
	}

	return CompiledPreset{
		Name:     p.Name,
		Version:  p.Version,
		Backend:  p.Backend,
		Metadata: p.Metadata,
		Root:     normalized,
	}, nil
}

func compileNode(n Node, path string, seenNames map[string]string, focusPath *string) (Node, error) {
	switch n.Kind {
	case KindTerminal:
		return compileTerminal(n, path, seenNames, focusPath)
	case KindSplit:
		return compileSplit(n, path, seenNames, focusPath)
	default:
		return Node{}, errs.New(errs.CodeInvalidLayout, fmt.Sprintf("node has unknown kind %q", n.Kind)).WithPath(path)
	}
}

func compileTerminal(n Node, path string, seenNames map[string]string, focusPath *string) (Node, error) {
	if n.Name == "" {
		return Node{}, errs.New(errs.CodeInvalidLayout, "terminal leaf missing name").WithPath(path)
	}
	if prior, dup := seenNames[n.Name]; dup {
		return Node{}, errs.New(errs.CodeDuplicateName, fmt.Sprintf("leaf name %q reused (first seen at %s)", n.Name, prior)).WithPath(path)
	}
	seenNames[n.Name] = path

	for _, ev := range n.Env {
		if !envKeyPattern.MatchString(ev.Key) {
			return Node{}, errs.New(errs.CodeInvalidEnvKey, fmt.Sprintf("invalid env key %q", ev.Key)).WithPath(path)
		}
	}

	if n.Command != "" {
		if err := checkShellSyntax(n.Command); err != nil {
			return Node{}, errs.New(errs.CodeInvalidLayout, fmt.Sprintf("command is not valid shell syntax: %s", err)).WithPath(path)
		}
	}

	if n.Focus {
		if *focusPath != "" {
			return Node{}, errs.New(errs.CodeMultipleFocus, fmt.Sprintf("multiple focus leaves: %s and %s", *focusPath, path)).WithPath(path)
		}
		*focusPath = path
	}

	if n.DelayMs < 0 {
		n.DelayMs = 0
	}

	return n, nil
}

func compileSplit(n Node, path string, seenNames map[string]string, focusPath *string) (Node, error) {
	if n.Orientation != Horizontal && n.Orientation != Vertical {
		return Node{}, errs.New(errs.CodeInvalidLayout, fmt.Sprintf("split has invalid orientation %q", n.Orientation)).WithPath(path)
	}
	if len(n.Children) < 2 {
		return Node{}, errs.New(errs.CodeInvalidLayout, "split requires at least 2 children").WithPath(path)
	}
	if len(n.Ratio) != len(n.Children) {
		return Node{}, errs.New(errs.CodeInvalidLayout,
			fmt.Sprintf("ratio length %d does not match children length %d", len(n.Ratio), len(n.Children))).WithPath(path)
	}

	sum := 0.0
	for i, r := range n.Ratio {
		if r <= 0 {
			return Node{}, errs.New(errs.CodeInvalidRatio, fmt.Sprintf("ratio element %d (%v) must be positive", i, r)).
				WithPath(fmt.Sprintf("%s.%d", path, i))
		}
		sum += r
	}
	if sum <= 0 || math.IsNaN(sum) {
		return Node{}, errs.New(errs.CodeInvalidRatio, "ratio sum must be positive").WithPath(path)
	}

	normalizedRatio := make([]float64, len(n.Ratio))
	for i, r := range n.Ratio {
		normalizedRatio[i] = r / sum
	}
	if !sumsToOne(normalizedRatio) {
		return Node{}, errs.New(errs.CodeInvalidRatio, "normalized ratio does not sum to 1.0").WithPath(path)
	}

	children := make([]Node, len(n.Children))
	for i, child := range n.Children {
		compiled, err := compileNode(child, fmt.Sprintf("%s.%d", path, i), seenNames, focusPath)
		if err != nil {
			return Node{}, err
		}
		children[i] = compiled
	}

	out := n
	out.Ratio = normalizedRatio
	out.Children = children
	return out, nil
}

func sumsToOne(ratio []float64) bool {
	sum := 0.0
	for _, r := range ratio {
		sum += r
	}
	return math.Abs(sum-1.0) < ratioEpsilon*float64(len(ratio)+1)
}

// assignFirstFocus walks n in pre-order and marks the first terminal leaf
// found as the focus leaf, used when the preset declares no focus at all.
func assignFirstFocus(n Node) Node {
	assigned := false
	return assignFirstFocusRec(n, &assigned)
}

func assignFirstFocusRec(n Node, assigned *bool) Node {
	if *assigned {
		return n
	}
	if n.Kind == KindTerminal {
		n.Focus = true
		*assigned = true
		return n
	}
	children := make([]Node, len(n.Children))
	for i, c := range n.Children {
		children[i] = assignFirstFocusRec(c, assigned)
	}
	n.Children = children
	return n
}

// checkShellSyntax parses cmd as a POSIX shell line without executing it,
// catching malformed commands (unbalanced quotes, dangling operators) before
// any pane is created.
func checkShellSyntax(cmd string) error {
	parser := syntax.NewParser()
	_, err := parser.Parse(strings.NewReader(cmd), "")
	return err
}
