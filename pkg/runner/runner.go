// Package runner drives a pane-oriented backend (tmux-class) through a
// PlanEmission: it owns the virtual-to-real pane id registry, the
// current-window/new-window decision, the idempotence guard, and the fixed
// cwd -> env -> title -> command replay order. A concrete backend only has
// to implement PaneDriver's small set of primitive operations, keeping one
// thin per-backend wrapper with the higher-level session assembly layered
// on top of it.
//
// Wezterm-class backends do not use this package: their applyPlan is a
// self-contained state machine (window/tab/pane discovery is JSON-based
// rather than registry-based) and is implemented directly in
// pkg/backend/weztermbackend.
package runner

import (
	"context"
	"fmt"
	"strings"

	"vde-layout/pkg/backend"
	"vde-layout/pkg/emitter"
	"vde-layout/pkg/errs"
	"vde-layout/pkg/preset"
	"vde-layout/pkg/termprep"
)

// PaneDriver is the minimal set of pane-level primitives a tmux-class
// backend must provide; ExecutePlan sequences calls to it and never touches
// the multiplexer directly.
type PaneDriver interface {
	// IdentityKey returns a stable string identifying the window ExecutePlan
	// is about to target, used as part of the idempotence record key. It
	// must not mutate anything.
	IdentityKey(ctx context.Context, windowMode backend.WindowMode, windowName string) (string, error)

	// NewWindow creates a fresh window/tab named windowName (if non-empty)
	// with the given starting cwd, returning the real id of its sole pane.
	NewWindow(ctx context.Context, windowName, cwd string) (realPaneId string, err error)

	// ListActivePanes returns the real ids of every pane in the active
	// window, in a driver-defined stable order where index 0 is the pane
	// that should be kept when others are killed.
	ListActivePanes(ctx context.Context) ([]string, error)

	// KillPanes kills the given real pane ids.
	KillPanes(ctx context.Context, realPaneIds []string) error

	// Split carves targetRealPaneId per sizing/orientation, returning the
	// newly created pane's real id.
	Split(ctx context.Context, targetRealPaneId string, orientation preset.Orientation, sizing emitter.Sizing) (realPaneId string, err error)

	// Focus selects targetRealPaneId.
	Focus(ctx context.Context, targetRealPaneId string) error

	// RunTerminal replays a prepared terminal's cwd/env/title/command
	// sequence against realPaneId, honoring DelayMs between commands as the
	// driver sees fit.
	RunTerminal(ctx context.Context, realPaneId string, prepared termprep.PreparedTerminal) error
}

// Request bundles everything ExecutePlan needs beyond the driver itself.
type Request struct {
	Emission      emitter.PlanEmission
	Terminals     []emitter.EmittedTerminal
	WindowMode    backend.WindowMode
	WindowName    string
	InitialCwd    string
	OnConfirmKill backend.OnConfirmKill
	Force         bool
}

// ExecutePlan sequences req.Emission's steps against driver, applying the
// idempotence guard first and replaying terminal commands last.
func ExecutePlan(ctx context.Context, driver PaneDriver, req Request) (backend.ApplyResult, error) {
	store, err := newIdempotenceStore()
	if err == nil {
		key, keyErr := driver.IdentityKey(ctx, req.WindowMode, req.WindowName)
		if keyErr == nil {
			alreadyApplied, guardErr := store.checkAndRecord(req.WindowMode, req.WindowName, key, req.Emission.Hash, req.Force)
			if guardErr == nil && alreadyApplied {
				return backend.ApplyResult{ExecutedSteps: 0, AlreadyApplied: true}, nil
			}
			// A guard read/write failure is not fatal to the apply itself;
			// idempotence is a best-effort convenience, not a correctness
			// requirement of the emission.
		}
	}

	registry := map[string]string{}

	var rootReal string
	switch req.WindowMode {
	case backend.NewWindow:
		rootReal, err = driver.NewWindow(ctx, req.WindowName, req.InitialCwd)
		if err != nil {
			return backend.ApplyResult{}, err
		}
	case backend.CurrentWindow:
		panes, err := driver.ListActivePanes(ctx)
		if err != nil {
			return backend.ApplyResult{}, err
		}
		if len(panes) == 0 {
			return backend.ApplyResult{}, errs.New(errs.CodeMissingTarget, "active window has no panes")
		}
		rootReal = panes[0]
		if len(panes) > 1 {
			others := panes[1:]
			if req.OnConfirmKill == nil || !req.OnConfirmKill(others) {
				return backend.ApplyResult{}, errs.New(errs.CodeUserCancelled, "user declined to close existing panes")
			}
			if err := driver.KillPanes(ctx, others); err != nil {
				return backend.ApplyResult{}, err
			}
		}
	default:
		return backend.ApplyResult{}, errs.New(errs.CodeInvalidPlan, fmt.Sprintf("unknown window mode %q", req.WindowMode))
	}

	registry["root"] = rootReal
	executed := 0

	// resolveReal maps a virtual pane id to its real pane. The last child of
	// a split is never a step's createdPaneId: it keeps the pane its parent
	// held, so an unregistered id resolves through its parent's id.
	resolveReal := func(virtualPaneId string) (string, bool) {
		for id := virtualPaneId; ; {
			if realId, ok := registry[id]; ok {
				return realId, true
			}
			i := strings.LastIndexByte(id, '.')
			if i < 0 {
				return "", false
			}
			id = id[:i]
		}
	}

	for _, step := range req.Emission.Steps {
		switch step.Kind {
		case emitter.StepSplit:
			targetReal, ok := registry[step.TargetPaneId]
			if !ok {
				return backend.ApplyResult{}, errs.New(errs.CodeMissingTarget, fmt.Sprintf("split step targets unregistered pane %q", step.TargetPaneId)).
					WithDetails(map[string]any{"stepId": step.ID})
			}
			newReal, err := driver.Split(ctx, targetReal, step.Orientation, step.Sizing)
			if err != nil {
				return backend.ApplyResult{}, err
			}
			registry[step.CreatedPaneId] = newReal
			// The target's virtual id continues to denote the real
			// remainder pane, i.e. targetReal.
			registry[step.TargetPaneId] = targetReal
			executed++
		case emitter.StepFocus:
			targetReal, ok := resolveReal(step.TargetPaneId)
			if !ok {
				return backend.ApplyResult{}, errs.New(errs.CodeMissingTarget, fmt.Sprintf("focus step targets unregistered pane %q", step.TargetPaneId)).
					WithDetails(map[string]any{"stepId": step.ID})
			}
			if err := driver.Focus(ctx, targetReal); err != nil {
				return backend.ApplyResult{}, err
			}
			executed++
		default:
			return backend.ApplyResult{}, errs.New(errs.CodeUnsupportedStepKind, fmt.Sprintf("unsupported step kind %q", step.Kind)).
				WithDetails(map[string]any{"stepId": step.ID})
		}
	}

	prepared, err := termprep.Prepare(termprep.Input{
		Terminals:          req.Terminals,
		FocusPaneVirtualId: req.Emission.Summary.FocusPaneId,
		ResolveRealPaneId:  resolveReal,
	})
	if err != nil {
		return backend.ApplyResult{}, err
	}

	for _, p := range prepared.Commands {
		if err := driver.RunTerminal(ctx, p.RealPaneId, p); err != nil {
			return backend.ApplyResult{}, errs.Wrap(errs.CodeTerminalCommandFailed, err, fmt.Sprintf("terminal %s failed", p.VirtualPaneId)).
				WithDetails(map[string]any{"realPaneId": p.RealPaneId})
		}
	}

	if err := driver.Focus(ctx, prepared.FocusPaneRealId); err != nil {
		return backend.ApplyResult{}, err
	}

	return backend.ApplyResult{ExecutedSteps: executed}, nil
}
