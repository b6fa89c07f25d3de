package orchestrator

import (
	"context"
	"sync"

	"lessonforge/internal/store"
)

// mockLLM scripts model responses per call and records every prompt it saw.
type mockLLM struct {
	CompleteWithSystemFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	mu      sync.Mutex
	systems []string
	users   []string
}

func (m *mockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *mockLLM) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.systems = append(m.systems, systemPrompt)
	m.users = append(m.users, userPrompt)
	m.mu.Unlock()
	if m.CompleteWithSystemFunc != nil {
		return m.CompleteWithSystemFunc(ctx, systemPrompt, userPrompt)
	}
	return "", nil
}

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// scriptedLLM returns each response in order, then repeats the last.
func scriptedLLM(responses ...string) *mockLLM {
	var n int
	var mu sync.Mutex
	m := &mockLLM{}
	m.CompleteWithSystemFunc = func(ctx context.Context, _, _ string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		mu.Lock()
		defer mu.Unlock()
		i := n
		if i >= len(responses) {
			i = len(responses) - 1
		}
		n++
		return responses[i], nil
	}
	return m
}

type savedVersion struct {
	lessonID   string
	sourceText string
	moduleText string
	hash       string
}

type statusWrite struct {
	status store.Status
	reason string
}

// mockRepo records every write in arrival order so tests can assert write
// ordering invariants.
type mockRepo struct {
	ClaimLessonFunc func(ctx context.Context, id string) error

	mu       sync.Mutex
	ops      []string
	traces   []store.TraceRecord
	versions []savedVersion
	statuses []statusWrite
}

func (m *mockRepo) ClaimLesson(ctx context.Context, id string) error {
	m.mu.Lock()
	m.ops = append(m.ops, "claim")
	m.mu.Unlock()
	if m.ClaimLessonFunc != nil {
		return m.ClaimLessonFunc(ctx, id)
	}
	return nil
}

func (m *mockRepo) SetStatus(ctx context.Context, id string, status store.Status, failureReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "status")
	m.statuses = append(m.statuses, statusWrite{status: status, reason: failureReason})
	return nil
}

func (m *mockRepo) SaveContentVersion(ctx context.Context, lessonID, sourceText, moduleText, integrityHash string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "version")
	m.versions = append(m.versions, savedVersion{
		lessonID: lessonID, sourceText: sourceText, moduleText: moduleText, hash: integrityHash,
	})
	return len(m.versions), nil
}

func (m *mockRepo) AppendTrace(ctx context.Context, rec store.TraceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "trace")
	m.traces = append(m.traces, rec)
	return nil
}

func (m *mockRepo) lastOp() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ops) == 0 {
		return ""
	}
	return m.ops[len(m.ops)-1]
}
