package tmuxbackend

import (
	"context"
	"strings"
	"testing"

	"vde-layout/pkg/backend"
	"vde-layout/pkg/emitter"
	"vde-layout/pkg/preset"
)

type scriptedExecutor struct {
	calls     [][]string
	responses map[string]string // key: joined args -> stdout
	err       error
}

func (s *scriptedExecutor) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	s.calls = append(s.calls, args)
	if s.err != nil {
		return "", "", s.err
	}
	key := strings.Join(args, " ")
	for prefix, resp := range s.responses {
		if strings.HasPrefix(key, prefix) {
			return resp, "", nil
		}
	}
	return "", "", nil
}

func TestBackend_Split_PercentMode(t *testing.T) {
	t.Parallel()
	exr := &scriptedExecutor{responses: map[string]string{"split-window": "%3\n"}}
	b := &Backend{executor: exr, bin: "tmux"}

	realId, err := b.Split(context.Background(), "%0", preset.Horizontal, emitter.Sizing{Mode: emitter.SizingPercent, Percentage: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if realId != "%3" {
		t.Errorf("realId = %q, want %%3", realId)
	}
	if len(exr.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(exr.calls))
	}
	args := exr.calls[0]
	if args[0] != "split-window" || args[1] != "-h" {
		t.Errorf("unexpected args: %v", args)
	}
	foundPercent := false
	for i, a := range args {
		if a == "-p" && i+1 < len(args) && args[i+1] == "40" {
			foundPercent = true
		}
	}
	if !foundPercent {
		t.Errorf("expected -p 40 in args, got %v", args)
	}
}

func TestBackend_Split_DynamicCellsMode(t *testing.T) {
	t.Parallel()
	exr := &scriptedExecutor{responses: map[string]string{
		"display-message": "200\n",
		"split-window":    "%4\n",
	}}
	b := &Backend{executor: exr, bin: "tmux"}

	realId, err := b.Split(context.Background(), "%0", preset.Vertical, emitter.Sizing{Mode: emitter.SizingDynamicCells, RequestedRatio: 0.25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if realId != "%4" {
		t.Errorf("realId = %q, want %%4", realId)
	}
	var splitArgs []string
	for _, c := range exr.calls {
		if c[0] == "split-window" {
			splitArgs = c
		}
	}
	foundCells := false
	for i, a := range splitArgs {
		if a == "-l" && i+1 < len(splitArgs) && splitArgs[i+1] == "50" {
			foundCells = true
		}
	}
	if !foundCells {
		t.Errorf("expected -l 50 (200*0.25) in args, got %v", splitArgs)
	}
}

func TestBackend_VerifyEnvironment_NotInTmux(t *testing.T) {
	t.Setenv("TMUX", "")
	b := &Backend{executor: &scriptedExecutor{}, bin: "tmux"}
	if err := b.VerifyEnvironment(context.Background()); err == nil {
		t.Fatal("expected error when TMUX env var is unset")
	}
}

func TestBackend_GetDryRunSteps(t *testing.T) {
	t.Parallel()
	b := &Backend{}
	req := backend.ApplyRequest{
		Emission: emitter.PlanEmission{
			Steps: []emitter.CommandStep{
				{Kind: emitter.StepSplit, TargetPaneId: "root", Orientation: preset.Horizontal, Sizing: emitter.Sizing{Mode: emitter.SizingPercent, Percentage: 50}, Summary: "split root"},
				{Kind: emitter.StepFocus, TargetPaneId: "root.1", Summary: "select pane root.1"},
			},
		},
	}
	steps := b.GetDryRunSteps(req)
	if len(steps) != 2 {
		t.Fatalf("expected 2 dry run steps, got %d", len(steps))
	}
	if steps[0].Args[0] != "split-window" || steps[1].Args[0] != "select-pane" {
		t.Errorf("unexpected dry run steps: %+v", steps)
	}
}
