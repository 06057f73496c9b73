// Package backend defines the multiplexer-agnostic surface the runner drives
// (verifyEnvironment / applyPlan / getDryRunSteps) plus the resolver that
// picks a concrete backend kind; the factory that constructs one lives in
// cmd/vde-layout. Tmux-class and wezterm-class
// backends (pkg/backend/tmuxbackend, pkg/backend/weztermbackend) each wrap
// their external binary thinly and context-aware, funneling every failure
// through the structured error taxonomy rather than a raw *exec.ExitError.
package backend

import (
	"context"
	"os"
	"strings"

	"vde-layout/pkg/emitter"
	"vde-layout/pkg/errs"
)

// WindowMode selects whether the runner reuses the active window/tab or
// opens a fresh one.
type WindowMode string

const (
	CurrentWindow WindowMode = "current-window"
	NewWindow     WindowMode = "new-window"
)

// Kind names a concrete backend implementation.
type Kind string

const (
	KindTmux    Kind = "tmux-class"
	KindWezterm Kind = "wezterm-class"
)

// Executor runs an external command and captures its output. Tmux-class
// backends use one when given and otherwise fall back to their own
// exec-based caller; wezterm-class backends use a direct subprocess
// caller internally and ignore it (see weztermbackend).
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// OnConfirmKill asks the user whether the listed pre-existing panes may be
// killed to make room for a fresh layout. Returning false aborts the apply
// with USER_CANCELLED.
type OnConfirmKill func(paneIds []string) bool

// ApplyRequest bundles everything a Backend needs to apply or dry-run an
// emission.
type ApplyRequest struct {
	Emission      emitter.PlanEmission
	WindowMode    WindowMode
	WindowName    string
	InitialCwd    string
	OnConfirmKill OnConfirmKill
	Force         bool // bypass the idempotence guard (tmux-class only; wezterm-class ignores it)
}

// ApplyResult reports how many steps were actually executed. ExecutedSteps
// is 0 when the idempotence guard short-circuited the apply.
type ApplyResult struct {
	ExecutedSteps  int
	AlreadyApplied bool
}

// DryRunStep is a human-readable rendering of one step, for --dry-run
// output; it never touches the multiplexer.
type DryRunStep struct {
	Summary string
	Args    []string
}

// Backend is the contract every multiplexer driver satisfies.
type Backend interface {
	// VerifyEnvironment checks that the backend's CLI is usable (binary on
	// PATH, inside the right kind of session where applicable) without
	// mutating anything.
	VerifyEnvironment(ctx context.Context) error

	// ApplyPlan executes req against the real multiplexer.
	ApplyPlan(ctx context.Context, req ApplyRequest) (ApplyResult, error)

	// GetDryRunSteps renders req's steps without executing anything.
	GetDryRunSteps(req ApplyRequest) []DryRunStep
}

// Context bundles the construction-time dependencies a concrete backend
// constructor needs. Tmux-class uses Executor when set and otherwise its
// own exec-based caller; wezterm-class uses a
// direct subprocess caller internally and ignores it. Factory construction
// itself lives in cmd/vde-layout, which is the one place allowed to import
// both this package and the concrete tmuxbackend/weztermbackend packages
// without creating an import cycle (each of those packages imports this one
// for the shared types, so this package cannot import them back).
type Context struct {
	Executor Executor // optional for tmux-class; nil selects its exec-based default
	DryRun   bool
	Verbose  bool
	Cwd      string
	PaneId   string // wezterm-class workspace scoping hint
}

// Resolve picks a Kind from, in precedence order: an explicit CLI flag, the
// preset's declared backend, an environment probe for an active
// multiplexer session, and finally the tmux-class default.
func Resolve(cliFlag, presetBackend string, env map[string]string) (Kind, error) {
	if cliFlag != "" {
		return parseKind(cliFlag)
	}
	if presetBackend != "" {
		return parseKind(presetBackend)
	}
	if _, inTmux := env["TMUX"]; inTmux {
		return KindTmux, nil
	}
	if _, inWezterm := env["WEZTERM_PANE"]; inWezterm {
		return KindWezterm, nil
	}
	return KindTmux, nil
}

func parseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tmux", "tmux-class":
		return KindTmux, nil
	case "wezterm", "wezterm-class":
		return KindWezterm, nil
	default:
		return "", errs.New(errs.CodeUnknownBackend, "unknown backend name "+s)
	}
}

// EnvMap snapshots os.Environ into the map[string]string Resolve expects.
func EnvMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}
