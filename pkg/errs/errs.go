// Package errs defines the structured error taxonomy shared by every layer of
// vde-layout: preset compilation, planning, emission, and backend application.
package errs

import (
	"errors"
	"fmt"
)

// Category groups codes by the pipeline stage that raised them.
type Category string

const (
	CategoryValidation  Category = "validation"
	CategoryPlanning    Category = "planning"
	CategoryEmission    Category = "emission"
	CategoryExecution   Category = "execution"
	CategoryEnvironment Category = "environment"
	CategoryUser        Category = "user"
)

// Code is a stable, machine-matchable error identifier.
type Code string

const (
	CodeInvalidLayout           Code = "INVALID_LAYOUT"
	CodeInvalidRatio            Code = "INVALID_RATIO"
	CodeDuplicateName           Code = "DUPLICATE_NAME"
	CodeMultipleFocus           Code = "MULTIPLE_FOCUS"
	CodeInvalidEnvKey           Code = "INVALID_ENV_KEY"
	CodeInvalidPlan             Code = "INVALID_PLAN"
	CodeMissingTarget           Code = "MISSING_TARGET"
	CodeUnsupportedStepKind     Code = "UNSUPPORTED_STEP_KIND"
	CodeTemplateTokenUnknown    Code = "TEMPLATE_TOKEN_UNKNOWN"
	CodeTemplateTokenInvalid    Code = "TEMPLATE_TOKEN_INVALID"
	CodeTerminalCommandFailed   Code = "TERMINAL_COMMAND_FAILED"
	CodeSplitSizeResolution     Code = "SPLIT_SIZE_RESOLUTION_FAILED"
	CodeNotInTmux               Code = "NOT_IN_TMUX"
	CodeTmuxNotFound            Code = "TMUX_NOT_FOUND"
	CodeWeztermNotFound         Code = "WEZTERM_NOT_FOUND"
	CodeUserCancelled           Code = "USER_CANCELLED"
	CodeCLIConflictingFlags     Code = "CLI_CONFLICTING_FLAGS"
	CodeUnknownBackend          Code = "UNKNOWN_BACKEND"
	CodePresetNotFound          Code = "PRESET_NOT_FOUND"
	CodeCancelled               Code = "CANCELLED"
)

// categoryByCode is consulted by New when the caller doesn't supply an explicit category.
var categoryByCode = map[Code]Category{
	CodeInvalidLayout:         CategoryValidation,
	CodeInvalidRatio:          CategoryValidation,
	CodeDuplicateName:         CategoryValidation,
	CodeMultipleFocus:         CategoryValidation,
	CodeInvalidEnvKey:         CategoryValidation,
	CodeInvalidPlan:           CategoryPlanning,
	CodeMissingTarget:         CategoryPlanning,
	CodeUnsupportedStepKind:   CategoryEmission,
	CodeTemplateTokenUnknown:  CategoryEmission,
	CodeTemplateTokenInvalid:  CategoryEmission,
	CodeTerminalCommandFailed: CategoryExecution,
	CodeSplitSizeResolution:   CategoryExecution,
	CodeNotInTmux:             CategoryEnvironment,
	CodeTmuxNotFound:          CategoryEnvironment,
	CodeWeztermNotFound:       CategoryEnvironment,
	CodeUserCancelled:         CategoryUser,
	CodeCLIConflictingFlags:   CategoryUser,
	CodeUnknownBackend:        CategoryUser,
	CodePresetNotFound:        CategoryUser,
	CodeCancelled:             CategoryUser,
}

// Error is the single structured error type surfaced by every vde-layout
// package. It carries enough context for a CLI layer to render a useful
// message while still letting callers match on Code via errors.As.
type Error struct {
	Code     Code
	Category Category
	Message  string
	Path     string         // index-chain path to the offending preset node, if any
	Details  map[string]any // e.g. command args, stderr, stdin snapshot
	Err      error          // wrapped cause, if any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, msg, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error, defaulting Category from Code when not set explicitly.
func New(code Code, message string) *Error {
	return &Error{Code: code, Category: categoryByCode[code], Message: message}
}

// Wrap builds an Error that preserves err as the unwrap target.
func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Category: categoryByCode[code], Message: message, Err: err}
}

// WithPath returns a copy of e with Path set, for pinpointing a preset node.
func (e *Error) WithPath(path string) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// WithDetails returns a copy of e with Details merged in.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	if cp.Details == nil {
		cp.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		cp.Details[k] = v
	}
	return &cp
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// CodeOf extracts the Code from err, if it is (or wraps) an *Error.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
