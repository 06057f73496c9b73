package tokens

import (
	"testing"

	"vde-layout/pkg/errs"
)

func resolverFor(names map[string]string, this, focus string) Resolver {
	return Resolver{
		ResolveByName: func(name string) (string, bool) {
			id, ok := names[name]
			return id, ok
		},
		ThisPaneID:  this,
		FocusPaneID: focus,
	}
}

func TestExpand_NoTokensIsIdempotent(t *testing.T) {
	t.Parallel()
	got, err := Expand("echo hello world", resolverFor(nil, "%1", "%0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "echo hello world" {
		t.Errorf("Expand() = %q, want unchanged input", got)
	}
}

func TestExpand_AllTokenKinds(t *testing.T) {
	t.Parallel()
	r := resolverFor(map[string]string{"main": "%0"}, "%1", "%0")
	got, err := Expand("echo {{pane_id:main}} {{this_pane}} {{focus_pane}}", r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "echo %0 %1 %0"
	if got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}
}

func TestExpand_UnknownPaneName(t *testing.T) {
	t.Parallel()
	r := resolverFor(map[string]string{"main": "%0"}, "%1", "%0")
	_, err := Expand("echo {{pane_id:ghost}}", r)
	if err == nil {
		t.Fatal("expected error for unknown pane name")
	}
	if !errs.Is(err, errs.CodeTemplateTokenUnknown) {
		t.Errorf("expected CodeTemplateTokenUnknown, got %v", err)
	}
}

func TestExpand_UnknownTokenKind(t *testing.T) {
	t.Parallel()
	r := resolverFor(nil, "%1", "%0")
	_, err := Expand("echo {{bogus_kind}}", r)
	if err == nil {
		t.Fatal("expected error for unknown token kind")
	}
	if !errs.Is(err, errs.CodeTemplateTokenInvalid) {
		t.Errorf("expected CodeTemplateTokenInvalid, got %v", err)
	}
}
