// Command vde-layout compiles a declarative layout preset into a running
// tmux-class or wezterm-class terminal session: preset -> compile -> plan
// -> emit -> apply. This file is just the flag parsing, logging setup, and
// backend wiring around that pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/sahilm/fuzzy"

	"vde-layout/pkg/backend"
	"vde-layout/pkg/backend/tmuxbackend"
	"vde-layout/pkg/backend/weztermbackend"
	"vde-layout/pkg/config"
	"vde-layout/pkg/emitter"
	"vde-layout/pkg/errs"
	"vde-layout/pkg/loader"
	"vde-layout/pkg/planner"
	"vde-layout/pkg/preset"
)

var (
	flagBackend       string
	flagDryRun        bool
	flagCurrentWindow bool
	flagNewWindow     bool
	flagWindowName    string
	flagVerbose       bool
	flagForce         bool
	flagConfigPath    string
)

func init() {
	flag.StringVar(&flagBackend, "backend", "", "backend to target: tmux or wezterm (default: preset's backend, then environment probe, then tmux)")
	flag.BoolVar(&flagDryRun, "dry-run", false, "print the steps that would be executed without touching the multiplexer")
	flag.BoolVar(&flagCurrentWindow, "current-window", false, "apply the layout into the active window/tab, killing any panes it doesn't need")
	flag.BoolVar(&flagNewWindow, "new-window", false, "apply the layout into a freshly created window/tab (default)")
	flag.StringVar(&flagWindowName, "window-name", "", "name for the new window/tab (new-window mode only)")
	flag.BoolVar(&flagVerbose, "verbose", false, "emit structured JSON logs instead of the default text log line per step")
	flag.BoolVar(&flagForce, "force", false, "bypass the idempotence guard and re-apply even if this window already has this layout")
	flag.StringVar(&flagConfigPath, "config", "", "path to the global defaults file (default: ~/.config/vde-layout/config.toml)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "vde-layout - declarative terminal layout compiler\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n  vde-layout [options] [preset://name]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  vde-layout                      # apply preset://default
  vde-layout preset://dev         # apply preset://dev
  vde-layout --dry-run dev        # print the steps dev would run
  vde-layout --backend wezterm dev --current-window
`)
	}
}

func main() {
	flag.Parse()

	setupLogging()

	if flagCurrentWindow && flagNewWindow {
		fail(errs.New(errs.CodeCLIConflictingFlags, "--current-window and --new-window are mutually exclusive"))
	}

	uri := "preset://default"
	if args := flag.Args(); len(args) > 0 {
		uri = args[0]
	}

	gd, err := config.LoadGlobalDefaults(resolveConfigPath())
	if err != nil {
		fail(errs.Wrap(errs.CodeInvalidLayout, err, "failed to load global config"))
	}

	p, err := loader.Resolve(uri)
	if err != nil {
		if errs.Is(err, errs.CodePresetNotFound) {
			if suggestion := suggestPreset(loader.ParseURI(uri)); suggestion != "" {
				fmt.Fprintf(os.Stderr, "vde-layout: preset %q not found. Did you mean %q?\n", loader.ParseURI(uri), suggestion)
				os.Exit(exitCodeFromErr(err))
			}
		}
		fail(err)
	}

	cp, err := preset.Compile(p)
	if err != nil {
		fail(err)
	}
	plan := planner.Build(cp)
	emission := emitter.Emit(plan)

	presetOrGlobalBackend := p.Backend
	if presetOrGlobalBackend == "" {
		presetOrGlobalBackend = gd.DefaultBackend
	}
	kind, err := backend.Resolve(flagBackend, presetOrGlobalBackend, backend.EnvMap())
	if err != nil {
		fail(err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fail(errs.Wrap(errs.CodeInvalidLayout, err, "failed to determine working directory"))
	}

	bctx := backend.Context{
		DryRun:  flagDryRun,
		Verbose: flagVerbose,
		Cwd:     cwd,
		PaneId:  os.Getenv("WEZTERM_PANE"),
	}
	if gd.TmuxBinPath != "" {
		// tmuxbackend.New reads no bin path override beyond its own
		// default; this is surfaced to logs so operators can see the
		// configured value even though only the "tmux" binary on PATH is
		// invoked.
		slog.Debug("tmux_bin_path configured but unused by the tmux-class backend", "path", gd.TmuxBinPath)
	}

	b, err := newBackend(kind, bctx)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !flagDryRun {
		if err := b.VerifyEnvironment(ctx); err != nil {
			fail(err)
		}
	}

	windowMode := resolveWindowMode(gd)
	windowName := flagWindowName
	if windowName == "" && windowMode == backend.NewWindow {
		windowName = gd.WindowNamePrefix + presetDisplayName(p, uri)
	}

	req := backend.ApplyRequest{
		Emission:      emission,
		WindowMode:    windowMode,
		WindowName:    windowName,
		InitialCwd:    cwd,
		OnConfirmKill: confirmKill,
		Force:         flagForce,
	}

	if flagDryRun {
		renderDryRun(kind, b.GetDryRunSteps(req))
		return
	}

	res, err := b.ApplyPlan(ctx, req)
	if err != nil {
		fail(err)
	}

	if res.AlreadyApplied {
		slog.Info("layout already applied to this window; nothing to do", "hash", emission.Hash)
		return
	}
	slog.Info("layout applied", "steps", res.ExecutedSteps, "hash", emission.Hash)
}

func resolveConfigPath() string {
	if flagConfigPath != "" {
		return flagConfigPath
	}
	return config.DefaultGlobalConfigPath()
}

func resolveWindowMode(gd config.GlobalDefaults) backend.WindowMode {
	switch {
	case flagCurrentWindow:
		return backend.CurrentWindow
	case flagNewWindow:
		return backend.NewWindow
	case gd.DefaultWindowMode == string(backend.CurrentWindow):
		return backend.CurrentWindow
	default:
		return backend.NewWindow
	}
}

func presetDisplayName(p preset.Preset, uri string) string {
	if p.Name != "" {
		return p.Name
	}
	return loader.ParseURI(uri)
}

func newBackend(kind backend.Kind, ctx backend.Context) (backend.Backend, error) {
	switch kind {
	case backend.KindTmux:
		return tmuxbackend.New(ctx)
	case backend.KindWezterm:
		return weztermbackend.New(ctx)
	default:
		return nil, errs.New(errs.CodeUnknownBackend, fmt.Sprintf("unknown backend kind %q", kind))
	}
}

func suggestPreset(name string) string {
	names := loader.DiscoverNames()
	if len(names) == 0 {
		return ""
	}
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return ""
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches[0].Str
}

// dryRunLabel/dryRunCommand render a step the way §6's "Backend command
// strings" names each backend's CLI invocation: "tmux <args…>" for
// tmux-class, "wezterm cli <verb> <args…>" for wezterm-class (whose Args
// already start with "cli").
func dryRunLabel(kind backend.Kind) string {
	if kind == backend.KindWezterm {
		return "wezterm"
	}
	return "tmux"
}

func dryRunCommand(kind backend.Kind, args []string) string {
	return dryRunLabel(kind) + " " + strings.Join(args, " ")
}

func renderDryRun(kind backend.Kind, steps []backend.DryRunStep) {
	titleStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	argStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	label := dryRunLabel(kind)

	fmt.Println(titleStyle.Render("Planned terminal steps (dry-run)"))
	for i, s := range steps {
		fmt.Printf("%s [%s] %s: %s\n",
			dimStyle.Render(fmt.Sprintf("%2d.", i+1)),
			label, s.Summary, argStyle.Render(dryRunCommand(kind, s.Args)))
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "vde-layout: %v\n", err)
	os.Exit(exitCodeFromErr(err))
}

func exitCodeFromErr(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

func setupLogging() {
	level := slog.LevelInfo
	verbose := flagVerbose || os.Getenv("VDE_VERBOSE") != ""
	var handler slog.Handler
	if verbose {
		level = slog.LevelDebug
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// confirmKill prompts the user to approve killing the listed pre-existing
// panes before a --current-window apply proceeds. It falls back to a plain
// stdin prompt when stdout isn't a real terminal (e.g. piped output, CI).
func confirmKill(paneIds []string) bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) || !isatty.IsTerminal(os.Stdin.Fd()) {
		return confirmKillPlain(paneIds)
	}

	m := newConfirmModel(paneIds)
	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return confirmKillPlain(paneIds)
	}
	return finalModel.(confirmModel).approved
}

func confirmKillPlain(paneIds []string) bool {
	fmt.Fprintf(os.Stderr, "vde-layout: the active window has %d existing pane(s) (%s) that must be closed. Proceed? [y/N] ", len(paneIds), strings.Join(paneIds, ", "))
	var answer string
	fmt.Scanln(&answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

var confirmKeys = struct {
	Yes key.Binding
	No  key.Binding
}{
	Yes: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "kill and apply")),
	No:  key.NewBinding(key.WithKeys("n", "N", "esc", "q"), key.WithHelp("n/esc", "cancel")),
}

// confirmModel is a minimal bubbletea yes/no prompt for the one interactive
// decision vde-layout ever needs to make: whether to kill pre-existing
// panes in the active window before a --current-window apply.
type confirmModel struct {
	paneIds  []string
	approved bool
	done     bool
	help     help.Model
}

func newConfirmModel(paneIds []string) confirmModel {
	return confirmModel{paneIds: paneIds, help: help.New()}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(k, confirmKeys.Yes):
		m.approved = true
		m.done = true
		return m, tea.Quit
	case key.Matches(k, confirmKeys.No), k.String() == "ctrl+c":
		m.approved = false
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	return fmt.Sprintf("%s\n%s\n%s\n",
		warnStyle.Render(fmt.Sprintf("%d existing pane(s) must be closed to apply this layout:", len(m.paneIds))),
		dimStyle.Render(strings.Join(m.paneIds, ", ")),
		m.help.ShortHelpView([]key.Binding{confirmKeys.Yes, confirmKeys.No}))
}
