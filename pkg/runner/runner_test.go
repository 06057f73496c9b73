package runner

import (
	"context"
	"fmt"
	"testing"

	"vde-layout/pkg/backend"
	"vde-layout/pkg/emitter"
	"vde-layout/pkg/errs"
	"vde-layout/pkg/planner"
	"vde-layout/pkg/preset"
	"vde-layout/pkg/termprep"
)

type fakeDriver struct {
	identityKey string
	newWindowID string
	panes       []string
	splitSeq    int
	killed      []string
	focused     []string
	ran         []string
	splitErr    error
}

func (f *fakeDriver) IdentityKey(ctx context.Context, mode backend.WindowMode, name string) (string, error) {
	return f.identityKey, nil
}

func (f *fakeDriver) NewWindow(ctx context.Context, windowName, cwd string) (string, error) {
	return f.newWindowID, nil
}

func (f *fakeDriver) ListActivePanes(ctx context.Context) ([]string, error) {
	return f.panes, nil
}

func (f *fakeDriver) KillPanes(ctx context.Context, realPaneIds []string) error {
	f.killed = append(f.killed, realPaneIds...)
	return nil
}

func (f *fakeDriver) Split(ctx context.Context, target string, orientation preset.Orientation, sizing emitter.Sizing) (string, error) {
	if f.splitErr != nil {
		return "", f.splitErr
	}
	f.splitSeq++
	return fmt.Sprintf("%%%d", f.splitSeq), nil
}

func (f *fakeDriver) Focus(ctx context.Context, target string) error {
	f.focused = append(f.focused, target)
	return nil
}

func (f *fakeDriver) RunTerminal(ctx context.Context, realPaneId string, prepared termprep.PreparedTerminal) error {
	f.ran = append(f.ran, realPaneId+":"+prepared.Command)
	return nil
}

func buildEmission(t *testing.T, p preset.Preset) emitter.PlanEmission {
	t.Helper()
	cp, err := preset.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	plan := planner.Build(cp)
	return emitter.Emit(plan)
}

func twoPanePreset() preset.Preset {
	return preset.Preset{
		Root: preset.Node{
			Kind:        preset.KindSplit,
			Orientation: preset.Horizontal,
			Ratio:       []float64{0.5, 0.5},
			Children: []preset.Node{
				{Kind: preset.KindTerminal, Name: "main", Command: "nvim", Focus: true},
				{Kind: preset.KindTerminal, Name: "aux", Command: "npm run dev"},
			},
		},
	}
}

func TestExecutePlan_NewWindow(t *testing.T) {
	t.Parallel()
	p := twoPanePreset()
	emission := buildEmission(t, p)
	cp, _ := preset.Compile(p)
	plan := planner.Build(cp)
	_ = plan

	driver := &fakeDriver{identityKey: "unique-key-1", newWindowID: "%0"}
	res, err := ExecutePlan(context.Background(), driver, Request{
		Emission:   emission,
		Terminals:  emission.Terminals,
		WindowMode: backend.NewWindow,
		WindowName: "work",
		InitialCwd: "/tmp",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AlreadyApplied {
		t.Fatal("expected a fresh apply, not AlreadyApplied")
	}
	if res.ExecutedSteps != len(emission.Steps) {
		t.Errorf("executed %d steps, want %d", res.ExecutedSteps, len(emission.Steps))
	}
	if len(driver.ran) != 2 {
		t.Fatalf("expected 2 terminal commands run, got %d: %v", len(driver.ran), driver.ran)
	}
}

func TestExecutePlan_CurrentWindowConfirmedKill(t *testing.T) {
	t.Parallel()
	p := twoPanePreset()
	emission := buildEmission(t, p)

	driver := &fakeDriver{identityKey: "unique-key-2", panes: []string{"%5", "%6", "%7"}}
	confirmed := false
	res, err := ExecutePlan(context.Background(), driver, Request{
		Emission:   emission,
		Terminals:  emission.Terminals,
		WindowMode: backend.CurrentWindow,
		OnConfirmKill: func(ids []string) bool {
			confirmed = true
			if len(ids) != 2 {
				t.Errorf("expected 2 panes to confirm killing, got %d", len(ids))
			}
			return true
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !confirmed {
		t.Error("expected OnConfirmKill to be invoked")
	}
	if len(driver.killed) != 2 {
		t.Errorf("expected 2 panes killed, got %d", len(driver.killed))
	}
	if res.ExecutedSteps == 0 {
		t.Error("expected some steps executed")
	}
}

func TestExecutePlan_CurrentWindowRefusedKillCancels(t *testing.T) {
	t.Parallel()
	p := twoPanePreset()
	emission := buildEmission(t, p)

	driver := &fakeDriver{identityKey: "unique-key-3", panes: []string{"%5", "%6"}}
	_, err := ExecutePlan(context.Background(), driver, Request{
		Emission:   emission,
		Terminals:  emission.Terminals,
		WindowMode: backend.CurrentWindow,
		OnConfirmKill: func(ids []string) bool {
			return false
		},
	})
	if !errs.Is(err, errs.CodeUserCancelled) {
		t.Fatalf("expected CodeUserCancelled, got %v", err)
	}
	if len(driver.killed) != 0 {
		t.Error("expected no panes killed on refusal")
	}
}

func TestExecutePlan_SingleLeafNoSplitsStillRunsTerminal(t *testing.T) {
	t.Parallel()
	p := preset.Preset{Root: preset.Node{Kind: preset.KindTerminal, Name: "main", Command: "htop", Focus: true}}
	emission := buildEmission(t, p)

	driver := &fakeDriver{identityKey: "unique-key-4", newWindowID: "%0"}
	res, err := ExecutePlan(context.Background(), driver, Request{
		Emission:   emission,
		Terminals:  emission.Terminals,
		WindowMode: backend.NewWindow,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(driver.ran) != 1 || driver.ran[0] != "%0:htop" {
		t.Errorf("unexpected ran commands: %v", driver.ran)
	}
	_ = res
}
