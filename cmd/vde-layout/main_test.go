package main

import (
	"testing"

	"vde-layout/pkg/backend"
	"vde-layout/pkg/config"
	"vde-layout/pkg/errs"
	"vde-layout/pkg/preset"
)

func TestExitCodeFromErr(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"user cancelled", errs.New(errs.CodeUserCancelled, "no"), 1},
		{"cancelled", errs.New(errs.CodeCancelled, "no"), 1},
		{"conflicting flags", errs.New(errs.CodeCLIConflictingFlags, "bad"), 1},
		{"preset not found", errs.New(errs.CodePresetNotFound, "missing"), 1},
		{"execution failure", errs.New(errs.CodeTerminalCommandFailed, "boom"), 1},
		{"unstructured", errBare{}, 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFromErr(tc.err); got != tc.want {
				t.Errorf("exitCodeFromErr(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

type errBare struct{}

func (errBare) Error() string { return "bare error" }

func TestResolveWindowMode(t *testing.T) {
	t.Run("current window flag wins", func(t *testing.T) {
		flagCurrentWindow, flagNewWindow = true, false
		t.Cleanup(func() { flagCurrentWindow, flagNewWindow = false, false })
		if got := resolveWindowMode(config.GlobalDefaults{}); got != backend.CurrentWindow {
			t.Errorf("got %v, want CurrentWindow", got)
		}
	})

	t.Run("new window flag wins", func(t *testing.T) {
		flagCurrentWindow, flagNewWindow = false, true
		t.Cleanup(func() { flagCurrentWindow, flagNewWindow = false, false })
		if got := resolveWindowMode(config.GlobalDefaults{}); got != backend.NewWindow {
			t.Errorf("got %v, want NewWindow", got)
		}
	})

	t.Run("global default current-window applies with no flags", func(t *testing.T) {
		flagCurrentWindow, flagNewWindow = false, false
		if got := resolveWindowMode(config.GlobalDefaults{DefaultWindowMode: "current-window"}); got != backend.CurrentWindow {
			t.Errorf("got %v, want CurrentWindow", got)
		}
	})

	t.Run("defaults to new window", func(t *testing.T) {
		flagCurrentWindow, flagNewWindow = false, false
		if got := resolveWindowMode(config.GlobalDefaults{}); got != backend.NewWindow {
			t.Errorf("got %v, want NewWindow", got)
		}
	})
}

func TestPresetDisplayName(t *testing.T) {
	t.Parallel()
	if got := presetDisplayName(preset.Preset{Name: "dev"}, "preset://ignored"); got != "dev" {
		t.Errorf("got %q, want dev", got)
	}
	if got := presetDisplayName(preset.Preset{}, "preset://fallback"); got != "fallback" {
		t.Errorf("got %q, want fallback", got)
	}
}

func TestNewBackend_UnknownKindFails(t *testing.T) {
	t.Parallel()
	if _, err := newBackend(backend.Kind("bogus"), backend.Context{}); !errs.Is(err, errs.CodeUnknownBackend) {
		t.Fatalf("expected CodeUnknownBackend, got %v", err)
	}
}
