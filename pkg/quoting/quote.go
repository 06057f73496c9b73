// Package quoting implements the single safe-quoting rule used everywhere a
// vde-layout backend has to embed a literal value inside a shell command
// string: POSIX single-quote wrapping. This is the only quoting style the
// core uses; see the "Open questions" section of SPEC_FULL.md for why the
// double-quote-with-backslash-escape variant seen in older tooling is not
// reproduced here.
package quoting

import "strings"

// Single wraps s in single quotes, escaping any embedded single quote with
// the standard '"'"' sequence so the result, when evaluated by a POSIX
// shell, yields s byte-for-byte.
func Single(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsRune(s, '\'') {
		return "'" + s + "'"
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Join quotes the arguments that need it (via quoteIfNeeded, using Single)
// and joins them with spaces, for
// building a human-readable (and shell-safe) command string for dry-run
// rendering and error details.
func Join(args []string) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, quoteIfNeeded(a))
	}
	return strings.Join(parts, " ")
}

// quoteIfNeeded only quotes args that contain characters a shell would treat
// specially, so plain flags and subcommands (e.g. "split-window", "-h")
// render without noisy quotes in summaries and logs.
func quoteIfNeeded(s string) string {
	if s == "" {
		return "''"
	}
	needsQuote := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '"', '\'', '\\', '$', '`', '&', '|', ';', '<', '>', '(', ')', '{', '}', '*', '?', '!', '~', '#':
			needsQuote = true
		}
		if needsQuote {
			break
		}
	}
	if !needsQuote {
		return s
	}
	return Single(s)
}
