package orchestrator

import (
	"encoding/json"
	"strings"

	"lessonforge/internal/compiler"
	"lessonforge/internal/safety"
)

// Outcome is the terminal disposition of one attempt.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Attempt is one generate-validate-compile cycle. It is owned exclusively by
// the orchestrator for its iteration and superseded - never mutated - by the
// next attempt once the iteration ends.
type Attempt struct {
	Number        int
	RawSource     string
	Errors        []string
	SafetyIssues  []safety.Issue
	Artifact      *compiler.Artifact
	RepairApplied []string
	Outcome       Outcome

	prompt   string
	response string
}

// failureClass is the trace outcome label for a failed attempt.
func (a *Attempt) failureClass() string {
	switch {
	case len(a.SafetyIssues) > 0:
		return "safety_rejected"
	case a.RawSource == "":
		return "generation_failed"
	default:
		return "compile_failed"
	}
}

// issueMessages renders safety issues as feedback lines for a fix-request.
func issueMessages(issues []safety.Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = string(issue.Rule) + ": " + issue.Message
	}
	return out
}

// encodeIssues serializes safety issues for the trace record.
func encodeIssues(issues []safety.Issue) string {
	if len(issues) == 0 {
		return ""
	}
	data, err := json.Marshal(issues)
	if err != nil {
		return "unencodable issues"
	}
	return string(data)
}

func joinRules(rules []string) string {
	return strings.Join(rules, ",")
}
