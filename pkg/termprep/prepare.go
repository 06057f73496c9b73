// Package termprep turns an emitted plan's terminal records into the exact
// per-pane command sequence a backend replays: a cd, a run of export
// statements, a title, and the (token-expanded) startup command, in that
// fixed order: cd/export/title/command assembled into shell lines before
// handing them to a backend's send-keys (or send-text) equivalent, for any
// backend rather than only tmux.
package termprep

import (
	"fmt"
	"regexp"

	"vde-layout/pkg/emitter"
	"vde-layout/pkg/errs"
	"vde-layout/pkg/quoting"
	"vde-layout/pkg/tokens"
)

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PreparedTerminal is the fully resolved, order-fixed set of shell lines for
// one terminal, ready for a backend to replay.
type PreparedTerminal struct {
	VirtualPaneId string
	RealPaneId    string
	CwdCommand    string // empty when no cwd was set
	EnvCommands   []string
	Title         string
	Command       string // empty when the terminal declares no startup command
	DelayMs       int
}

// Result is the full output of Prepare.
type Result struct {
	FocusPaneRealId string
	Commands        []PreparedTerminal
}

// Input bundles everything Prepare needs from the emission and the runner's
// pane-id registry.
type Input struct {
	Terminals            []emitter.EmittedTerminal
	FocusPaneVirtualId   string
	ResolveRealPaneId    func(virtualPaneId string) (string, bool)
	OnTemplateTokenError func(err error)
}

// Prepare resolves cwd/env/title/command for every terminal in in.Terminals,
// in order, expanding {{pane_id:NAME}}, {{this_pane}}, and {{focus_pane}}
// tokens against in.ResolveRealPaneId. focusPaneRealId is resolved
// unconditionally so a dangling focus leaf is caught even if no terminal
// command ever references {{focus_pane}}.
func Prepare(in Input) (Result, error) {
	focusRealId, ok := in.ResolveRealPaneId(in.FocusPaneVirtualId)
	if !ok {
		return Result{}, errs.New(errs.CodeMissingTarget, fmt.Sprintf("focus pane %q has no registered real pane id", in.FocusPaneVirtualId)).
			WithPath(in.FocusPaneVirtualId)
	}

	byName := make(map[string]emitter.EmittedTerminal, len(in.Terminals))
	for _, t := range in.Terminals {
		if t.Name != "" {
			byName[t.Name] = t
		}
	}
	resolveByName := func(name string) (string, bool) {
		t, ok := byName[name]
		if !ok {
			return "", false
		}
		return in.ResolveRealPaneId(t.VirtualPaneId)
	}

	out := make([]PreparedTerminal, 0, len(in.Terminals))
	for _, t := range in.Terminals {
		p, err := prepareOne(t, focusRealId, resolveByName, in.ResolveRealPaneId)
		if err != nil {
			if in.OnTemplateTokenError != nil && errs.Is(err, errs.CodeTemplateTokenUnknown) {
				in.OnTemplateTokenError(err)
			}
			return Result{}, err
		}
		out = append(out, p)
	}

	return Result{FocusPaneRealId: focusRealId, Commands: out}, nil
}



func prepareOne(
	t emitter.EmittedTerminal,
	focusRealId string,
	resolveByName func(string) (string, bool),
	resolveRealPaneId func(string) (string, bool),
) (PreparedTerminal, error) {
	realId, ok := resolveRealPaneId(t.VirtualPaneId)
	if !ok {
		return PreparedTerminal{}, errs.New(errs.CodeMissingTarget, fmt.Sprintf("terminal %q has no registered real pane id", t.VirtualPaneId)).
			WithPath(t.VirtualPaneId)
	}

	p := PreparedTerminal{
		VirtualPaneId: t.VirtualPaneId,
		RealPaneId:    realId,
		Title:         t.Title,
		DelayMs:       max(0, t.DelayMs),
	}

	if t.Cwd != "" {
		p.CwdCommand = "cd -- " + quoting.Single(t.Cwd)
	}

	for _, ev := range t.Env {
		if !envKeyPattern.MatchString(ev.Key) {
			return PreparedTerminal{}, errs.New(errs.CodeInvalidEnvKey, fmt.Sprintf("invalid env key %q", ev.Key)).
				WithPath(t.VirtualPaneId)
		}
		p.EnvCommands = append(p.EnvCommands, fmt.Sprintf("export %s=%s", ev.Key, quoting.Single(ev.Value)))
	}

	if t.Command != "" {
		expanded, err := tokens.Expand(t.Command, tokens.Resolver{
			ResolveByName: resolveByName,
			ThisPaneID:    realId,
			FocusPaneID:   focusRealId,
		})
		if err != nil {
			return PreparedTerminal{}, err
		}

		if t.Ephemeral {
			if t.CloseOnError {
				expanded += "; exit"
			} else {
				expanded += "; [ $? -eq 0 ] && exit"
			}
		}
		p.Command = expanded
	}

	return p, nil
}
