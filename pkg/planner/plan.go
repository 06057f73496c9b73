// Package planner assigns stable virtual pane ids to a CompiledPreset's
// tree, producing a LayoutPlan. Plan is pure and total: it never fails on a
// preset that has already passed preset.Compile.
package planner

import (
	"fmt"

	"vde-layout/pkg/preset"
)

// PlanNode mirrors preset.Node but carries a stable virtual pane Id.
type PlanNode struct {
	Id   string
	Node preset.Node

	// Children holds the planned children for split nodes, in order,
	// with ids of the form "<Id>.<k>".
	Children []PlanNode
}

// LayoutPlan is a CompiledPreset annotated with stable ids.
type LayoutPlan struct {
	Root        PlanNode
	FocusPaneId string
}

// Build performs a pre-order traversal assigning Id as described in the
// data model: the root is "root"; a split's k-th child is "<parent>.<k>".
func Build(cp preset.CompiledPreset) LayoutPlan {
	focusID := ""
	root := buildNode(cp.Root, "root", &focusID)
	return LayoutPlan{Root: root, FocusPaneId: focusID}
}

func buildNode(n preset.Node, id string, focusID *string) PlanNode {
	pn := PlanNode{Id: id, Node: n}

	if n.Kind == preset.KindTerminal {
		if n.Focus {
			*focusID = id
		}
		return pn
	}

	pn.Children = make([]PlanNode, len(n.Children))
	for i, child := range n.Children {
		pn.Children[i] = buildNode(child, fmt.Sprintf("%s.%d", id, i), focusID)
	}
	return pn
}
