package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "lessons.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLessonLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateLesson(ctx, "l1", "fractions", `{"gradeBand":"3-5"}`))

	lesson, err := s.GetLesson(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, lesson.Status)
	assert.Equal(t, "fractions", lesson.Topic)

	require.NoError(t, s.ClaimLesson(ctx, "l1"))
	lesson, err = s.GetLesson(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, StatusGenerating, lesson.Status)

	require.NoError(t, s.SetStatus(ctx, "l1", StatusGenerated, ""))
	lesson, err = s.GetLesson(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, StatusGenerated, lesson.Status)
}

func TestClaimLessonIsANoOpWhenNotQueued(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateLesson(ctx, "l1", "topic", ""))
	require.NoError(t, s.ClaimLesson(ctx, "l1"))

	// Second kickoff while generating: refused, state untouched.
	err := s.ClaimLesson(ctx, "l1")
	assert.ErrorIs(t, err, ErrNotQueued)

	lesson, err := s.GetLesson(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, StatusGenerating, lesson.Status)
}

func TestGetLessonNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetLesson(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContentVersionsAreMonotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLesson(ctx, "l1", "topic", ""))

	v1, err := s.SaveContentVersion(ctx, "l1", "src1", "mod1", "hash1")
	require.NoError(t, err)
	v2, err := s.SaveContentVersion(ctx, "l1", "src2", "mod2", "hash2")
	require.NoError(t, err)

	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)

	latest, err := s.LatestContentVersion(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, "mod2", latest.ModuleText)
	assert.Equal(t, "hash2", latest.IntegrityHash)
}

func TestVersionsAreIndependentPerLesson(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLesson(ctx, "a", "topic", ""))
	require.NoError(t, s.CreateLesson(ctx, "b", "topic", ""))

	_, err := s.SaveContentVersion(ctx, "a", "s", "m", "h")
	require.NoError(t, err)
	vb, err := s.SaveContentVersion(ctx, "b", "s", "m", "h")
	require.NoError(t, err)
	assert.Equal(t, 1, vb)
}

func TestTracesKeepAppendOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLesson(ctx, "l1", "topic", ""))

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.AppendTrace(ctx, TraceRecord{
			LessonID: "l1",
			Attempt:  i,
			Prompt:   "p",
			Response: "r",
			Outcome:  "compile_failed",
		}))
	}

	traces, err := s.Traces(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, traces, 3)
	for i, tr := range traces {
		assert.Equal(t, i+1, tr.Attempt, "trace %d out of order", i)
	}
}

func TestGetStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLesson(ctx, "a", "t", ""))
	require.NoError(t, s.CreateLesson(ctx, "b", "t", ""))
	require.NoError(t, s.ClaimLesson(ctx, "a"))
	_, err := s.SaveContentVersion(ctx, "a", "s", "m", "h")
	require.NoError(t, err)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LessonsByStatus[StatusQueued])
	assert.Equal(t, 1, stats.LessonsByStatus[StatusGenerating])
	assert.Equal(t, 1, stats.TotalVersions)
}
