package loader

import (
	"os"
	"path/filepath"
	"testing"

	"vde-layout/pkg/errs"
)

func TestParseURI_DefaultsToDefaultName(t *testing.T) {
	t.Parallel()
	if got := ParseURI("preset://"); got != "default" {
		t.Errorf("got %q, want default", got)
	}
	if got := ParseURI(""); got != "default" {
		t.Errorf("got %q, want default", got)
	}
	if got := ParseURI("preset://dev"); got != "dev" {
		t.Errorf("got %q, want dev", got)
	}
}

func TestResolve_ReadsProjectLocalYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.MkdirAll(filepath.Join(dir, ".vde-layout"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	doc := []byte(`
name: dev
root:
  kind: terminal
  name: main
  command: nvim
  focus: true
`)
	if err := os.WriteFile(filepath.Join(dir, ".vde-layout", "dev.yaml"), doc, 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}

	p, err := Resolve("preset://dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "dev" || p.Root.Name != "main" || p.Root.Command != "nvim" {
		t.Errorf("unexpected preset: %+v", p)
	}
}

func TestResolve_MissingPresetFails(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := Resolve("preset://ghost")
	if !errs.Is(err, errs.CodePresetNotFound) {
		t.Fatalf("expected CodePresetNotFound, got %v", err)
	}
}

func TestResolve_ReadsJSONPreset(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.MkdirAll(filepath.Join(dir, ".vde-layout"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	doc := []byte(`{"name":"dev","root":{"kind":"terminal","name":"main","focus":true}}`)
	if err := os.WriteFile(filepath.Join(dir, ".vde-layout", "dev.json"), doc, 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}

	p, err := Resolve("preset://dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Root.Name != "main" {
		t.Errorf("unexpected preset: %+v", p)
	}
}

func TestDiscoverNames_FindsProjectLocalPresets(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.MkdirAll(filepath.Join(dir, ".vde-layout"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"dev.yaml", "prod.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, ".vde-layout", name), []byte("root:\n  kind: terminal\n  name: x\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	names := DiscoverNames()
	if len(names) != 2 {
		t.Fatalf("expected 2 discovered names, got %d: %v", len(names), names)
	}
}
