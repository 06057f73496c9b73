// Package tmuxbackend implements the tmux-class backend.Backend: a thin,
// context-aware wrapper around the tmux binary that translates
// CommandStep/runner.PaneDriver calls into tmux CLI invocations and
// classifies every failure into the shared error taxonomy. The wrapper
// style (Bin/Executor fields, capturing stdout+stderr, formatting both into
// the returned error) runs through context.Context-aware exec calls, so a
// caller-supplied cancellation aborts an in-flight tmux invocation promptly.
package tmuxbackend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"vde-layout/pkg/backend"
	"vde-layout/pkg/emitter"
	"vde-layout/pkg/errs"
	"vde-layout/pkg/preset"
	"vde-layout/pkg/runner"
	"vde-layout/pkg/termprep"
)

// execExecutor is the default backend.Executor, shelling out via
// exec.CommandContext.
type execExecutor struct {
	bin string
}

func (e execExecutor) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Backend is the tmux-class backend.Backend implementation.
type Backend struct {
	executor        backend.Executor
	bin             string
	detectedVersion string
	dryRun          bool
}

// New constructs a tmux-class Backend. If ctx.Executor is nil, a default
// context-aware exec.CommandContext executor is used.
func New(ctx backend.Context) (backend.Backend, error) {
	exr := ctx.Executor
	if exr == nil {
		exr = execExecutor{bin: "tmux"}
	}
	return &Backend{executor: exr, bin: "tmux", dryRun: ctx.DryRun}, nil
}

func (b *Backend) run(ctx context.Context, args ...string) (string, string, error) {
	stdout, stderr, err := b.executor.Run(ctx, "tmux", args...)
	if err != nil {
		return stdout, stderr, errs.Wrap(errs.CodeTerminalCommandFailed, err, fmt.Sprintf("tmux %s failed", strings.Join(args, " "))).
			WithDetails(map[string]any{"args": args, "stdout": stdout, "stderr": stderr})
	}
	return stdout, stderr, nil
}

// VerifyEnvironment checks this process is inside a tmux client session and
// the tmux binary responds to a version query, caching the detected
// version.
func (b *Backend) VerifyEnvironment(ctx context.Context) error {
	if os.Getenv("TMUX") == "" {
		return errs.New(errs.CodeNotInTmux, "not running inside a tmux client session")
	}
	out, _, err := b.executor.Run(ctx, b.bin, "-V")
	if err != nil {
		return errs.Wrap(errs.CodeTmuxNotFound, err, "tmux binary not usable")
	}
	b.detectedVersion = strings.TrimSpace(out)
	return nil
}

// ApplyPlan drives req through pkg/runner, using this Backend as the
// runner.PaneDriver.
func (b *Backend) ApplyPlan(ctx context.Context, req backend.ApplyRequest) (backend.ApplyResult, error) {
	return runner.ExecutePlan(ctx, b, runner.Request{
		Emission:      req.Emission,
		Terminals:     req.Emission.Terminals,
		WindowMode:    req.WindowMode,
		WindowName:    req.WindowName,
		InitialCwd:    req.InitialCwd,
		OnConfirmKill: req.OnConfirmKill,
		Force:         req.Force,
	})
}

// GetDryRunSteps renders req's steps without touching tmux.
func (b *Backend) GetDryRunSteps(req backend.ApplyRequest) []backend.DryRunStep {
	out := make([]backend.DryRunStep, 0, len(req.Emission.Steps))
	for _, s := range req.Emission.Steps {
		switch s.Kind {
		case emitter.StepSplit:
			flag := "-v"
			if s.Orientation == preset.Horizontal {
				flag = "-h"
			}
			args := []string{"split-window", flag, "-t", s.TargetPaneId}
			if s.Sizing.Mode == emitter.SizingPercent {
				args = append(args, "-p", strconv.Itoa(s.Sizing.Percentage))
			} else {
				args = append(args, "-l", "<dynamic>")
			}
			out = append(out, backend.DryRunStep{Summary: s.Summary, Args: args})
		case emitter.StepFocus:
			out = append(out, backend.DryRunStep{Summary: s.Summary, Args: []string{"select-pane", "-t", s.TargetPaneId}})
		}
	}
	return out
}

// --- runner.PaneDriver ---

func (b *Backend) IdentityKey(ctx context.Context, mode backend.WindowMode, windowName string) (string, error) {
	out, _, err := b.run(ctx, "display-message", "-p", "-F", "#{session_name}:#{window_id}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (b *Backend) NewWindow(ctx context.Context, windowName, cwd string) (string, error) {
	args := []string{"new-window", "-P", "-F", "#{pane_id}"}
	if cwd != "" {
		args = append(args, "-c", cwd)
	}
	if windowName != "" {
		args = append(args, "-n", windowName)
	}
	out, _, err := b.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (b *Backend) ListActivePanes(ctx context.Context) ([]string, error) {
	out, _, err := b.run(ctx, "list-panes", "-F", "#{pane_id}")
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, nil
}

func (b *Backend) KillPanes(ctx context.Context, realPaneIds []string) error {
	for _, id := range realPaneIds {
		if _, _, err := b.run(ctx, "kill-pane", "-t", id); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) Split(ctx context.Context, targetRealPaneId string, orientation preset.Orientation, sizing emitter.Sizing) (string, error) {
	flag := "-v"
	if orientation == preset.Horizontal {
		flag = "-h"
	}
	args := []string{"split-window", flag, "-t", targetRealPaneId, "-P", "-F", "#{pane_id}"}

	switch sizing.Mode {
	case emitter.SizingPercent:
		args = append(args, "-p", strconv.Itoa(sizing.Percentage))
	default:
		cells, err := b.resolveDynamicCells(ctx, targetRealPaneId, orientation, sizing.RequestedRatio)
		if err != nil {
			return "", errs.Wrap(errs.CodeSplitSizeResolution, err, "failed to resolve dynamic split size")
		}
		args = append(args, "-l", strconv.Itoa(cells))
	}

	out, _, err := b.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (b *Backend) resolveDynamicCells(ctx context.Context, targetRealPaneId string, orientation preset.Orientation, requestedRatio float64) (int, error) {
	format := "#{pane_width}"
	if orientation == preset.Vertical {
		format = "#{pane_height}"
	}
	out, _, err := b.run(ctx, "display-message", "-p", "-t", targetRealPaneId, "-F", format)
	if err != nil {
		return 0, err
	}
	total, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("unparseable pane dimension %q: %w", out, err)
	}
	cells := int(float64(total)*requestedRatio + 0.5)
	if cells < 1 {
		cells = 1
	}
	return cells, nil
}

func (b *Backend) Focus(ctx context.Context, targetRealPaneId string) error {
	_, _, err := b.run(ctx, "select-pane", "-t", targetRealPaneId)
	return err
}

func (b *Backend) RunTerminal(ctx context.Context, realPaneId string, prepared termprep.PreparedTerminal) error {
	if prepared.DelayMs > 0 {
		time.Sleep(time.Duration(prepared.DelayMs) * time.Millisecond)
	}
	if prepared.CwdCommand != "" {
		if _, _, err := b.run(ctx, "send-keys", "-t", realPaneId, prepared.CwdCommand, "Enter"); err != nil {
			return err
		}
	}
	for _, envCmd := range prepared.EnvCommands {
		if _, _, err := b.run(ctx, "send-keys", "-t", realPaneId, envCmd, "Enter"); err != nil {
			return err
		}
	}
	if prepared.Title != "" {
		if _, _, err := b.run(ctx, "select-pane", "-t", realPaneId, "-T", prepared.Title); err != nil {
			return err
		}
	}
	if prepared.Command != "" {
		if _, _, err := b.run(ctx, "send-keys", "-t", realPaneId, prepared.Command, "Enter"); err != nil {
			return err
		}
	}
	return nil
}
