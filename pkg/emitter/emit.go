// Package emitter lowers a LayoutPlan into an ordered, backend-neutral
// sequence of CommandStep values plus per-leaf EmittedTerminal records, and
// computes the stable content hash used for idempotence checks.
package emitter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"vde-layout/pkg/planner"
	"vde-layout/pkg/preset"
)

// StepKind tags a CommandStep variant.
type StepKind string

const (
	StepSplit StepKind = "split"
	StepFocus StepKind = "focus"
)

// SizingMode is how a split step's size is expressed.
type SizingMode string

const (
	SizingPercent      SizingMode = "percent"
	SizingDynamicCells SizingMode = "dynamic-cells"
)

// Sizing describes how large the newly created pane of a split step should
// be, in whichever mode was resolvable at emission time.
type Sizing struct {
	Mode           SizingMode
	Percentage     int     // meaningful when Mode == SizingPercent, in [1, 99]
	RequestedRatio float64 // meaningful when Mode == SizingDynamicCells
}

// CommandStep is one backend-neutral instruction in emission order.
type CommandStep struct {
	ID            string
	Kind          StepKind
	TargetPaneId  string
	CreatedPaneId string // meaningful when Kind == StepSplit
	Orientation   preset.Orientation
	Sizing        Sizing
	Summary       string
	Command       []string // advisory fallback arg vector
}

// EmittedTerminal is the per-leaf record carried from the plan into terminal
// command preparation.
type EmittedTerminal struct {
	VirtualPaneId string
	Command       string
	Cwd           string
	Env           []preset.EnvVar
	Focus         bool
	Name          string
	Title         string
	Ephemeral     bool
	CloseOnError  bool
	DelayMs       int
}

// Summary is the high-level overview of an emission.
type Summary struct {
	StepsCount    int
	FocusPaneId   string
	InitialPaneId string
}

// PlanEmission is the full output of Emit: ordered steps, terminal records,
// a summary, and a stable content hash over all three (excluding the hash
// itself).
type PlanEmission struct {
	Steps     []CommandStep
	Terminals []EmittedTerminal
	Summary   Summary
	Hash      string
}

// Emit lowers plan into a PlanEmission. It is pure: the same plan always
// produces the same steps, terminals, and hash.
func Emit(plan planner.LayoutPlan) PlanEmission {
	e := &emission{}
	e.walk(plan.Root, plan.Root.Id)

	if len(e.steps) > 0 || plan.FocusPaneId != "" {
		e.addStep(CommandStep{
			Kind:         StepFocus,
			TargetPaneId: plan.FocusPaneId,
			Summary:      fmt.Sprintf("select pane %s", plan.FocusPaneId),
			Command:      []string{"focus", plan.FocusPaneId},
		})
	}

	summary := Summary{
		StepsCount:    len(e.steps),
		FocusPaneId:   plan.FocusPaneId,
		InitialPaneId: "root",
	}

	return PlanEmission{
		Steps:     e.steps,
		Terminals: e.terminals,
		Summary:   summary,
		Hash:      computeHash(e.steps, e.terminals, summary),
	}
}

type emission struct {
	steps     []CommandStep
	terminals []EmittedTerminal
	nextStep  int
}

func (e *emission) addStep(s CommandStep) {
	s.ID = fmt.Sprintf("step-%d", e.nextStep)
	e.nextStep++
	e.steps = append(e.steps, s)
}

// walk emits a node's splits (if any) and recurses pre-order, then appends
// the leaf's terminal record; this matches "terminals are listed in
// pre-order by virtual id." pane is the virtual id of the pane that
// physically holds n: n.Id itself, except for the last child of a split,
// which holds its parent's pane.
func (e *emission) walk(n planner.PlanNode, pane string) {
	if n.Node.Kind == preset.KindTerminal {
		e.terminals = append(e.terminals, EmittedTerminal{
			VirtualPaneId: n.Id,
			Command:       n.Node.Command,
			Cwd:           n.Node.Cwd,
			Env:           n.Node.Env,
			Focus:         n.Node.Focus,
			Name:          n.Node.Name,
			Title:         n.Node.Title,
			Ephemeral:     n.Node.Ephemeral,
			CloseOnError:  n.Node.CloseOnError,
			DelayMs:       n.Node.DelayMs,
		})
		return
	}

	e.emitSplits(n, pane)
	for i, child := range n.Children {
		childPane := child.Id
		if i == len(n.Children)-1 {
			childPane = pane
		}
		e.walk(child, childPane)
	}
}

// emitSplits lowers a single split node with n children into n-1 progressive
// split steps. Every step targets the same pane, pane (the one physically
// holding the node): splitting a pane leaves the original pane's real id
// unchanged and carves a new peer out of it (this is how both tmux
// split-window and wezterm split-pane behave), so re-targeting it on each
// iteration is what "progressively cleave the target pane" means in
// practice. The n-th (last) child is never the createdPaneId of any step —
// it is simply whatever remains of that pane once all n-1 peers have been
// carved off, and at apply time its virtual id resolves through its
// parent's id to that same real pane.
func (e *emission) emitSplits(n planner.PlanNode, pane string) {
	remainingShare := 1.0

	for i := 0; i < len(n.Children)-1; i++ {
		childShare := n.Node.Ratio[i]
		created := n.Children[i].Id

		requestedRatio := childShare / remainingShare
		sizing := resolveSizing(requestedRatio)

		e.addStep(CommandStep{
			Kind:          StepSplit,
			TargetPaneId:  pane,
			CreatedPaneId: created,
			Orientation:   n.Node.Orientation,
			Sizing:        sizing,
			Summary:       fmt.Sprintf("split %s", n.Id),
			Command:       []string{"split", n.Id, created, string(n.Node.Orientation)},
		})

		remainingShare -= childShare
	}
}

// resolveSizing converts a requested ratio share into percent sizing when it
// is cleanly expressible as an integer percentage in [1,99]; otherwise it
// falls back to dynamic-cells so the backend can resolve exact pane cells at
// apply time.
func resolveSizing(requestedRatio float64) Sizing {
	percentage := int(requestedRatio*100 + 0.5) // round to nearest
	if percentage >= 1 && percentage <= 99 && math.Abs(requestedRatio*100-float64(percentage)) < 1e-6 {
		return Sizing{Mode: SizingPercent, Percentage: percentage}
	}
	return Sizing{Mode: SizingDynamicCells, RequestedRatio: requestedRatio}
}

// computeHash produces a stable SHA-256 digest over a canonical textual
// serialization of steps, terminals, and summary. The serialization does
// not rely on any non-deterministic iteration order (field order here is
// fixed, and env entries are already order-preserving slices).
func computeHash(steps []CommandStep, terminals []EmittedTerminal, summary Summary) string {
	var b strings.Builder

	for _, s := range steps {
		fmt.Fprintf(&b, "STEP|%s|%s|%s|%s|%s|%d|%.6f\n",
			s.ID, s.Kind, s.TargetPaneId, s.CreatedPaneId, s.Orientation, s.Sizing.Percentage, s.Sizing.RequestedRatio)
	}
	for _, t := range terminals {
		fmt.Fprintf(&b, "TERM|%s|%s|%s|%t|%s|%s|%t|%t|%d\n",
			t.VirtualPaneId, t.Command, t.Cwd, t.Focus, t.Name, t.Title, t.Ephemeral, t.CloseOnError, t.DelayMs)
		for _, ev := range t.Env {
			fmt.Fprintf(&b, "ENV|%s|%s=%s\n", t.VirtualPaneId, ev.Key, ev.Value)
		}
	}
	fmt.Fprintf(&b, "SUMMARY|%d|%s|%s\n", summary.StepsCount, summary.FocusPaneId, summary.InitialPaneId)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
