package compiler

import (
	"fmt"
	"strings"
)

// SyntaxError reports that the source could not be parsed at all (stage 1).
// The orchestrator routes these to the repair engine first, since malformed
// model output is its primary target.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// TransformError reports a lowering failure (stage 2). These usually mean an
// unsupported construct and are better handled by regeneration than repair.
type TransformError struct {
	Messages []string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed: %s", strings.Join(e.Messages, "; "))
}

// Diagnostics returns the individual diagnostic strings for either error
// class, for feeding to the repair engine or a fix-request prompt.
func Diagnostics(err error) []string {
	switch e := err.(type) {
	case *SyntaxError:
		return []string{e.Error()}
	case *TransformError:
		return e.Messages
	case nil:
		return nil
	default:
		return []string{err.Error()}
	}
}
