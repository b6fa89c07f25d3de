package orchestrator

import (
	"errors"
	"fmt"

	"lessonforge/internal/safety"
)

// ErrRepairExhausted signals that the deterministic repair engine had no
// applicable fix. It requests escalation to a fix-request attempt; it is not
// a terminal failure by itself.
var ErrRepairExhausted = errors.New("deterministic repair exhausted")

// GenerationError wraps a failure of the black-box generation capability
// (call failed or returned empty). Fatal once the attempt budget runs out.
type GenerationError struct {
	Attempt int
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation attempt %d: %v", e.Attempt, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SafetyViolationError reports blocking lint issues. It is never silently
// bypassed: an attempt carrying one is not compiled or persisted.
type SafetyViolationError struct {
	Issues []safety.Issue
}

func (e *SafetyViolationError) Error() string {
	return fmt.Sprintf("safety check failed with %d blocking issue(s)", len(e.Issues))
}
