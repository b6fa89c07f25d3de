// Package repair implements the deterministic source repair engine. It
// recognizes a closed set of mechanically fixable failure signatures by
// pattern-matching diagnostic text, and rewrites the source accordingly. It
// is a pure transform: no model calls, no semantics re-derivation, and a
// source with no matching diagnostic comes back unchanged.
package repair

import (
	"fmt"
	"regexp"
	"strings"

	"lessonforge/internal/logging"
)

// Diagnostics carries the error strings from a failed compile (or any other
// upstream stage) into the engine.
type Diagnostics struct {
	Errors []string
}

// Result is a full replacement source plus the identifiers of the rules that
// fired. An empty Applied list signals that deterministic repair is
// exhausted and the orchestrator should escalate to a fix-request.
type Result struct {
	Source  string
	Applied []string
}

// Changed reports whether the engine produced a different source.
func (r Result) Changed(original string) bool {
	return r.Source != original
}

// rule is one repair signature: a predicate over the diagnostics and a
// transform over the source. Rules are constructed once at package
// initialization and never mutated.
type rule struct {
	id      string
	matches func(source string, diags Diagnostics) bool
	apply   func(source string, diags Diagnostics) string
}

// hostGlobals is the known host-global surface the sandbox provides. An
// unresolved-identifier diagnostic naming one of these is fixable by
// injecting the corresponding binding at the top of the source.
var hostGlobals = map[string]string{
	"React":       `import React from "react";`,
	"useState":    `import { useState } from "react";`,
	"useEffect":   `import { useEffect } from "react";`,
	"useRef":      `import { useRef } from "react";`,
	"useMemo":     `import { useMemo } from "react";`,
	"useCallback": `import { useCallback } from "react";`,
	"useReducer":  `import { useReducer } from "react";`,
}

var (
	fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)\\n?```")
	smartQuotes  = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", `'`, "’", `'`,
	)
	unresolvedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"([A-Za-z_$][\w$]*)" is not defined`),
		regexp.MustCompile(`'([A-Za-z_$][\w$]*)' is not defined`),
		regexp.MustCompile(`\b([A-Za-z_$][\w$]*) is not defined`),
		regexp.MustCompile(`Cannot find name '([A-Za-z_$][\w$]*)'`),
	}
)

var rules = []rule{
	{
		id: "strip-code-fence",
		matches: func(source string, diags Diagnostics) bool {
			if strings.HasPrefix(strings.TrimSpace(source), "```") {
				return true
			}
			return anyDiagContains(diags, "```", "Unexpected \"`\"")
		},
		apply: func(source string, _ Diagnostics) string {
			if m := fencePattern.FindStringSubmatch(source); m != nil {
				return strings.TrimSpace(m[1]) + "\n"
			}
			// Unbalanced fence: drop fence lines wholesale.
			var kept []string
			for _, line := range strings.Split(source, "\n") {
				if strings.HasPrefix(strings.TrimSpace(line), "```") {
					continue
				}
				kept = append(kept, line)
			}
			return strings.Join(kept, "\n")
		},
	},
	{
		id: "normalize-typographic-quotes",
		matches: func(source string, diags Diagnostics) bool {
			if !strings.ContainsAny(source, "“”‘’") {
				return false
			}
			return anyDiagContains(diags, "“", "”", "‘", "’", "Unexpected", "unexpected", "Expected", "expected")
		},
		apply: func(source string, _ Diagnostics) string {
			return smartQuotes.Replace(source)
		},
	},
	{
		id: "bind-host-global",
		matches: func(source string, diags Diagnostics) bool {
			return len(missingHostGlobals(source, diags)) > 0
		},
		apply: func(source string, diags Diagnostics) string {
			for _, name := range missingHostGlobals(source, diags) {
				source = hostGlobals[name] + "\n" + source
			}
			return source
		},
	},
}

// Repair applies every matching rule once, in fixed order. Not guaranteed to
// produce valid code - it is best effort over known failure shapes.
func Repair(source string, diags Diagnostics) Result {
	log := logging.Get(logging.CategoryRepair)
	result := Result{Source: source}

	for _, r := range rules {
		if !r.matches(result.Source, diags) {
			continue
		}
		next := r.apply(result.Source, diags)
		if next == result.Source {
			continue
		}
		log.Debugw("rule applied", "rule", r.id)
		result.Source = next
		result.Applied = append(result.Applied, r.id)
	}

	if len(result.Applied) == 0 {
		log.Debugw("no applicable fix", "diagnostics", len(diags.Errors))
	}
	return result
}

// missingHostGlobals extracts unresolved identifiers from the diagnostics,
// keeps the ones on the host-global surface, and filters out any the source
// already binds. Order is deterministic (diagnostic order, first mention
// wins) and each name appears at most once, so reapplication cannot
// duplicate a binding.
func missingHostGlobals(source string, diags Diagnostics) []string {
	seen := make(map[string]bool)
	var names []string
	for _, diag := range diags.Errors {
		for _, pat := range unresolvedPatterns {
			for _, m := range pat.FindAllStringSubmatch(diag, -1) {
				name := m[1]
				if seen[name] {
					continue
				}
				seen[name] = true
				if _, known := hostGlobals[name]; !known {
					continue
				}
				if bindsName(source, name) {
					continue
				}
				names = append(names, name)
			}
		}
	}
	return names
}

// bindsName reports whether the source already imports or destructures the
// given host global, making injection a no-op.
func bindsName(source, name string) bool {
	pat := regexp.MustCompile(fmt.Sprintf(
		`(?m)^\s*import\b[^\n]*\b%s\b[^\n]*from\s*["']react["']|const\s*\{[^}]*\b%s\b[^}]*\}\s*=\s*React`,
		regexp.QuoteMeta(name), regexp.QuoteMeta(name)))
	return pat.MatchString(source)
}

func anyDiagContains(diags Diagnostics, needles ...string) bool {
	for _, diag := range diags.Errors {
		for _, needle := range needles {
			if strings.Contains(diag, needle) {
				return true
			}
		}
	}
	return false
}
