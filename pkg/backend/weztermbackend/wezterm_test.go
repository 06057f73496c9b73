package weztermbackend

import (
	"testing"

	"vde-layout/pkg/backend"
	"vde-layout/pkg/emitter"
	"vde-layout/pkg/preset"
)

func TestBackend_Scoped_FiltersToMatchingWorkspace(t *testing.T) {
	t.Parallel()
	b := &Backend{scopePaneId: "2"}
	panes := []paneInfo{
		{PaneId: 1, Workspace: "default"},
		{PaneId: 2, Workspace: "work"},
		{PaneId: 3, Workspace: "work"},
		{PaneId: 4, Workspace: "default"},
	}
	got := b.scoped(panes)
	if len(got) != 2 {
		t.Fatalf("expected 2 panes in scoped workspace, got %d", len(got))
	}
	for _, p := range got {
		if p.Workspace != "work" {
			t.Errorf("unexpected workspace %q leaked into scope", p.Workspace)
		}
	}
}

func TestBackend_Scoped_NoScopeReturnsAll(t *testing.T) {
	t.Parallel()
	b := &Backend{}
	panes := []paneInfo{{PaneId: 1}, {PaneId: 2}}
	if got := b.scoped(panes); len(got) != 2 {
		t.Errorf("expected unfiltered pass-through, got %d panes", len(got))
	}
}

func TestBackend_Scoped_UnknownScopePaneReturnsAll(t *testing.T) {
	t.Parallel()
	b := &Backend{scopePaneId: "999"}
	panes := []paneInfo{{PaneId: 1, Workspace: "default"}, {PaneId: 2, Workspace: "work"}}
	if got := b.scoped(panes); len(got) != 2 {
		t.Errorf("expected unfiltered pass-through when scope pane absent, got %d panes", len(got))
	}
}

func TestBackend_GetDryRunSteps(t *testing.T) {
	t.Parallel()
	b := &Backend{}
	req := backend.ApplyRequest{
		Emission: emitter.PlanEmission{
			Steps: []emitter.CommandStep{
				{Kind: emitter.StepSplit, TargetPaneId: "root", Orientation: preset.Horizontal, Sizing: emitter.Sizing{Mode: emitter.SizingPercent, Percentage: 30}, Summary: "split root"},
				{Kind: emitter.StepFocus, TargetPaneId: "root.1", Summary: "activate root.1"},
			},
		},
	}
	steps := b.GetDryRunSteps(req)
	if len(steps) != 2 {
		t.Fatalf("expected 2 dry run steps, got %d", len(steps))
	}
	if steps[0].Args[0] != "cli" || steps[0].Args[1] != "split-pane" {
		t.Errorf("unexpected split args: %v", steps[0].Args)
	}
	if steps[1].Args[1] != "activate-pane" {
		t.Errorf("unexpected focus args: %v", steps[1].Args)
	}
}
