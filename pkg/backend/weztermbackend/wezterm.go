// Package weztermbackend implements the wezterm-class backend.Backend. Pane
// discovery is JSON-based (wezterm cli list --format json) rather than
// registry-based like tmux-class, so ApplyPlan is a self-contained state
// machine instead of going through pkg/runner. The JSON payload is decoded
// with the standard library's encoding/json: no third-party JSON library
// appears anywhere in the retrieved corpus, so this is the one place in the
// transport layer that intentionally does not reach for an external
// dependency.
package weztermbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"vde-layout/pkg/backend"
	"vde-layout/pkg/emitter"
	"vde-layout/pkg/errs"
	"vde-layout/pkg/preset"
	"vde-layout/pkg/quoting"
	"vde-layout/pkg/termprep"
)

// paneInfo mirrors the fields vde-layout reads from `wezterm cli list
// --format json`.
type paneInfo struct {
	WindowId  int    `json:"window_id"`
	Workspace string `json:"workspace"`
	TabId     int    `json:"tab_id"`
	PaneId    int    `json:"pane_id"`
	IsActive  bool   `json:"is_active"`
}

// Backend is the wezterm-class backend.Backend implementation.
type Backend struct {
	bin         string
	dryRun      bool
	scopePaneId string
}

// New constructs a wezterm-class Backend. It ignores ctx.Executor: wezterm's
// CLI is invoked directly via exec.CommandContext as a single small binary
// wrapper.
func New(ctx backend.Context) (backend.Backend, error) {
	return &Backend{bin: "wezterm", dryRun: ctx.DryRun, scopePaneId: ctx.PaneId}, nil
}

func (b *Backend) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, b.bin, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errs.Wrap(errs.CodeTerminalCommandFailed, err, fmt.Sprintf("wezterm %s failed", strings.Join(args, " "))).
			WithDetails(map[string]any{"args": args, "stdout": stdout.String(), "stderr": stderr.String()})
	}
	return stdout.String(), nil
}

// VerifyEnvironment checks the wezterm CLI is reachable; skipped entirely in
// dry-run mode.
func (b *Backend) VerifyEnvironment(ctx context.Context) error {
	if b.dryRun {
		return nil
	}
	if _, err := b.run(ctx, "cli", "--version"); err != nil {
		return errs.Wrap(errs.CodeWeztermNotFound, err, "wezterm binary not usable")
	}
	return nil
}

func (b *Backend) snapshot(ctx context.Context) ([]paneInfo, error) {
	out, err := b.run(ctx, "cli", "list", "--format", "json")
	if err != nil {
		return nil, err
	}
	var panes []paneInfo
	if err := json.Unmarshal([]byte(out), &panes); err != nil {
		return nil, errs.Wrap(errs.CodeTerminalCommandFailed, err, "failed to decode wezterm pane list JSON")
	}
	return b.scoped(panes), nil
}

// scoped filters panes to the workspace of b.scopePaneId, when that pane is
// present in the snapshot, so operations never reach into a workspace the
// caller didn't ask about.
func (b *Backend) scoped(panes []paneInfo) []paneInfo {
	if b.scopePaneId == "" {
		return panes
	}
	scopePaneId, err := strconv.Atoi(b.scopePaneId)
	if err != nil {
		return panes
	}
	var workspace string
	found := false
	for _, p := range panes {
		if p.PaneId == scopePaneId {
			workspace = p.Workspace
			found = true
			break
		}
	}
	if !found {
		return panes
	}
	out := make([]paneInfo, 0, len(panes))
	for _, p := range panes {
		if p.Workspace == workspace {
			out = append(out, p)
		}
	}
	return out
}

// ApplyPlan implements the wezterm-class state machine described for
// applyPlan: snapshot, determine/create the target window, seed the
// registry with the initial real pane id, replay splits (registering the new
// pane id that split-pane prints, without re-snapshotting) and focuses, then
// per-terminal send-text.
func (b *Backend) ApplyPlan(ctx context.Context, req backend.ApplyRequest) (backend.ApplyResult, error) {
	panes, err := b.snapshot(ctx)
	if err != nil {
		return backend.ApplyResult{}, err
	}

	initialReal, err := b.determineTarget(ctx, panes, req)
	if err != nil {
		return backend.ApplyResult{}, err
	}

	registry := map[string]string{"root": initialReal}
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
	seen := map[int]bool{}
	for _, p := range panes {
		seen[p.PaneId] = true
	}

	executed := 0
	for _, step := range req.Emission.Steps {
		switch step.Kind {
		case emitter.StepSplit:
			targetReal, ok := registry[step.TargetPaneId]
			if !ok {
				return backend.ApplyResult{}, errs.New(errs.CodeMissingTarget, fmt.Sprintf("split step targets unregistered pane %q", step.TargetPaneId)).
					WithDetails(map[string]any{"stepId": step.ID})
			}
			newReal, err := b.split(ctx, targetReal, step, seen)
			if err != nil {
				return backend.ApplyResult{}, err
			}
			registry[step.CreatedPaneId] = newReal
			registry[step.TargetPaneId] = targetReal
			executed++
		case emitter.StepFocus:
			targetReal, ok := resolveReal(step.TargetPaneId)
			if !ok {
				return backend.ApplyResult{}, errs.New(errs.CodeMissingTarget, fmt.Sprintf("focus step targets unregistered pane %q", step.TargetPaneId)).
					WithDetails(map[string]any{"stepId": step.ID})
			}
			if _, err := b.run(ctx, "cli", "activate-pane", "--pane-id", targetReal); err != nil {
				return backend.ApplyResult{}, err
			}
			executed++
		default:
			return backend.ApplyResult{}, errs.New(errs.CodeUnsupportedStepKind, fmt.Sprintf("unsupported step kind %q", step.Kind)).
				WithDetails(map[string]any{"stepId": step.ID})
		}
	}

	prepared, err := termprep.Prepare(termprep.Input{
		Terminals:          req.Emission.Terminals,
		FocusPaneVirtualId: req.Emission.Summary.FocusPaneId,
		ResolveRealPaneId:  resolveReal,
	})
	if err != nil {
		return backend.ApplyResult{}, err
	}

	for _, p := range prepared.Commands {
		if err := b.runTerminal(ctx, p); err != nil {
			return backend.ApplyResult{}, errs.Wrap(errs.CodeTerminalCommandFailed, err, fmt.Sprintf("terminal %s failed", p.VirtualPaneId)).
				WithDetails(map[string]any{"realPaneId": p.RealPaneId})
		}
	}

	if _, err := b.run(ctx, "cli", "activate-pane", "--pane-id", prepared.FocusPaneRealId); err != nil {
		return backend.ApplyResult{}, err
	}

	return backend.ApplyResult{ExecutedSteps: executed}, nil
}

func (b *Backend) determineTarget(ctx context.Context, panes []paneInfo, req backend.ApplyRequest) (string, error) {
	switch req.WindowMode {
	case backend.CurrentWindow:
		active := panes
		if len(active) == 1 {
			return strconv.Itoa(active[0].PaneId), nil
		}
		var activePane *paneInfo
		var others []string
		for i, p := range active {
			if p.IsActive {
				activePane = &active[i]
			}
		}
		if activePane == nil && len(active) > 0 {
			activePane = &active[0]
		}
		for _, p := range active {
			if activePane != nil && p.PaneId != activePane.PaneId {
				others = append(others, strconv.Itoa(p.PaneId))
			}
		}
		if len(others) > 0 {
			if req.OnConfirmKill == nil || !req.OnConfirmKill(others) {
				return "", errs.New(errs.CodeUserCancelled, "user declined to close existing panes")
			}
			for _, id := range others {
				if _, err := b.run(ctx, "cli", "kill-pane", "--pane-id", id); err != nil {
					return "", err
				}
			}
		}
		if activePane == nil {
			return "", errs.New(errs.CodeMissingTarget, "no active pane found in current window")
		}
		return strconv.Itoa(activePane.PaneId), nil

	case backend.NewWindow:
		var args []string
		if len(panes) > 0 {
			args = []string{"cli", "spawn", "--window-id", strconv.Itoa(panes[0].WindowId)}
		} else {
			args = []string{"cli", "spawn", "--new-window"}
		}
		if req.InitialCwd != "" {
			args = append(args, "--cwd", req.InitialCwd)
		}
		out, err := b.run(ctx, args...)
		if err != nil {
			return "", err
		}
		fields := strings.Fields(strings.TrimSpace(out))
		if len(fields) == 0 {
			return "", errs.New(errs.CodeMissingTarget, "wezterm spawn produced no pane id")
		}
		return fields[0], nil

	default:
		return "", errs.New(errs.CodeInvalidPlan, fmt.Sprintf("unknown window mode %q", req.WindowMode))
	}
}

func (b *Backend) split(ctx context.Context, targetReal string, step emitter.CommandStep, seen map[int]bool) (string, error) {
	args := []string{"cli", "split-pane"}
	if step.Orientation == preset.Horizontal {
		args = append(args, "--right")
	} else {
		args = append(args, "--bottom")
	}
	percent := step.Sizing.Percentage
	if step.Sizing.Mode != emitter.SizingPercent {
		// wezterm has no cell-count sizing: downgrade to the nearest percentage.
		percent = min(99, max(1, int(step.Sizing.RequestedRatio*100+0.5)))
	}
	args = append(args, "--percent", strconv.Itoa(percent))
	args = append(args, "--pane-id", targetReal)

	out, err := b.run(ctx, args...)
	if err != nil {
		return "", err
	}
	direct := strings.Fields(strings.TrimSpace(out))
	if len(direct) > 0 {
		if id, err := strconv.Atoi(direct[0]); err == nil {
			seen[id] = true
			return direct[0], nil
		}
	}
	return "", errs.New(errs.CodeSplitSizeResolution, "wezterm split-pane produced no pane id")
}

// runTerminal sends the cwd, env and command lines as one send-text payload.
// The prepared Title is not applied: nothing sets a title on the pane.
func (b *Backend) runTerminal(ctx context.Context, p termprep.PreparedTerminal) error {
	if p.DelayMs > 0 {
		time.Sleep(time.Duration(p.DelayMs) * time.Millisecond)
	}
	var payload strings.Builder
	if p.CwdCommand != "" {
		payload.WriteString(p.CwdCommand)
		payload.WriteString("\r")
	}
	for _, envCmd := range p.EnvCommands {
		payload.WriteString(envCmd)
		payload.WriteString("\r")
	}
	if p.Command != "" {
		payload.WriteString(p.Command)
		payload.WriteString("\r")
	}
	if payload.Len() == 0 {
		return nil
	}
	_, err := b.run(ctx, "cli", "send-text", "--pane-id", p.RealPaneId, "--no-paste", "--", quoting.Single(payload.String()))
	return err
}

// GetDryRunSteps renders req's steps without touching wezterm.
func (b *Backend) GetDryRunSteps(req backend.ApplyRequest) []backend.DryRunStep {
	out := make([]backend.DryRunStep, 0, len(req.Emission.Steps))
	for _, s := range req.Emission.Steps {
		switch s.Kind {
		case emitter.StepSplit:
			dir := "--bottom"
			if s.Orientation == preset.Horizontal {
				dir = "--right"
			}
			args := []string{"cli", "split-pane", dir}
			percent := s.Sizing.Percentage
			if s.Sizing.Mode != emitter.SizingPercent {
				percent = min(99, max(1, int(s.Sizing.RequestedRatio*100+0.5)))
			}
			args = append(args, "--percent", strconv.Itoa(percent))
			args = append(args, "--pane-id", s.TargetPaneId)
			out = append(out, backend.DryRunStep{Summary: s.Summary, Args: args})
		case emitter.StepFocus:
			out = append(out, backend.DryRunStep{Summary: s.Summary, Args: []string{"cli", "activate-pane", "--pane-id", s.TargetPaneId}})
		}
	}
	return out
}
