// Package tokens expands the template tokens vde-layout recognizes inside a
// terminal's startup command: {{pane_id:NAME}}, {{this_pane}}, and
// {{focus_pane}}. The expansion strategy is a regexp find-and-replace pass
// driven by a resolver callback, a single pass over the command string
// that handles every token kind.
package tokens

import (
	"fmt"
	"regexp"
	"strings"

	"vde-layout/pkg/errs"
)

// tokenPattern matches {{pane_id:NAME}}, {{this_pane}}, {{focus_pane}}, and
// (to distinguish "unknown kind" from "unknown pane name") any other
// identifier-named token of the form {{name}} or {{name:arg}}.
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\s*\}\}`)

// Resolver answers the two questions token expansion needs: the real pane id
// for a named leaf, and the real pane ids for "this" terminal and the plan's
// focus leaf.
type Resolver struct {
	// ResolveByName resolves {{pane_id:NAME}}. Returns ok=false for an
	// unknown leaf name.
	ResolveByName func(name string) (realPaneID string, ok bool)
	ThisPaneID    string
	FocusPaneID   string
}

// Expand replaces every recognized token in s using r. A string with no
// tokens is returned unchanged (token idempotence).
func Expand(s string, r Resolver) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	var firstErr error
	out := tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		sub := tokenPattern.FindStringSubmatch(match)
		kind := sub[1]
		arg := sub[2]

		switch kind {
		case "this_pane":
			return r.ThisPaneID
		case "focus_pane":
			return r.FocusPaneID
		case "pane_id":
			if r.ResolveByName == nil {
				firstErr = unknownToken(match)
				return match
			}
			id, ok := r.ResolveByName(arg)
			if !ok {
				firstErr = errs.New(errs.CodeTemplateTokenUnknown, fmt.Sprintf("unknown pane name %q", arg)).
					WithDetails(map[string]any{"tokenType": "pane_id", "raw": match})
				return match
			}
			return id
		default:
			firstErr = unknownToken(match)
			return match
		}
	})

	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func unknownToken(raw string) error {
	return errs.New(errs.CodeTemplateTokenInvalid, fmt.Sprintf("unrecognized template token %q", raw)).
		WithDetails(map[string]any{"raw": raw})
}
