package backend

import "testing"

func TestResolve_CLIFlagWins(t *testing.T) {
	t.Parallel()
	k, err := Resolve("wezterm", "tmux", map[string]string{"TMUX": "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != KindWezterm {
		t.Errorf("got %v, want KindWezterm", k)
	}
}

func TestResolve_PresetBeatsEnvProbe(t *testing.T) {
	t.Parallel()
	k, err := Resolve("", "wezterm-class", map[string]string{"TMUX": "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != KindWezterm {
		t.Errorf("got %v, want KindWezterm", k)
	}
}

func TestResolve_EnvProbeDetectsTmux(t *testing.T) {
	t.Parallel()
	k, err := Resolve("", "", map[string]string{"TMUX": "/tmp/tmux-1000/default,123,0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != KindTmux {
		t.Errorf("got %v, want KindTmux", k)
	}
}

func TestResolve_EnvProbeDetectsWezterm(t *testing.T) {
	t.Parallel()
	k, err := Resolve("", "", map[string]string{"WEZTERM_PANE": "0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != KindWezterm {
		t.Errorf("got %v, want KindWezterm", k)
	}
}

func TestResolve_DefaultsToTmux(t *testing.T) {
	t.Parallel()
	k, err := Resolve("", "", map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != KindTmux {
		t.Errorf("got %v, want KindTmux", k)
	}
}

func TestResolve_UnknownNameFails(t *testing.T) {
	t.Parallel()
	if _, err := Resolve("screen", "", nil); err == nil {
		t.Fatal("expected error for unknown backend name")
	}
}
