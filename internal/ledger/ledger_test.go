package ledger

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "romp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	run := &Run{ID: "run-1", Kind: KindReview, Scope: "src/auth/", Instance: "default"}
	require.NoError(t, l.StartRun(ctx, run))
	assert.Equal(t, StatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	got, err := l.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, KindReview, got.Kind)
	assert.Equal(t, "src/auth/", got.Scope)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, l.FinishRun(ctx, "run-1", StatusFailed, "stage post failed"))
	got, err = l.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "stage post failed", got.Error)
	require.NotNil(t, got.CompletedAt)
}

func TestLedger_StartRunRequiresID(t *testing.T) {
	l := openTestLedger(t)
	assert.Error(t, l.StartRun(context.Background(), &Run{Kind: KindSwarm}))
}

func TestLedger_FinishUnknownRun(t *testing.T) {
	l := openTestLedger(t)
	err := l.FinishRun(context.Background(), "missing", StatusCompleted, "")
	assert.Error(t, err)
}

func TestLedger_GetMissingRun(t *testing.T) {
	l := openTestLedger(t)
	_, err := l.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLedger_StagesInSequenceOrder(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	require.NoError(t, l.StartRun(ctx, &Run{ID: "run-1", Kind: KindReview}))

	start := time.UnixMilli(1700000000000)
	second := &StageExecution{RunID: "run-1", Sequence: 2, Agent: "main", Stage: "review", Status: StatusCompleted, StartedAt: start}
	first := &StageExecution{
		RunID: "run-1", Sequence: 1, Agent: "main", Stage: "assemble", Status: StatusCompleted,
		Result: "briefing", ToolCalls: []string{"mcp__romp__romp_assemble"},
		Warnings: []string{"main/assemble: expected x (y)"}, StartedAt: start, DurationMs: 42,
	}
	require.NoError(t, l.RecordStage(ctx, second))
	require.NoError(t, l.RecordStage(ctx, first))
	assert.NotZero(t, first.ID)

	stages, err := l.StagesForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "assemble", stages[0].Stage)
	assert.Equal(t, []string{"mcp__romp__romp_assemble"}, stages[0].ToolCalls)
	assert.Equal(t, []string{"main/assemble: expected x (y)"}, stages[0].Warnings)
	assert.Equal(t, int64(42), stages[0].DurationMs)
	assert.True(t, start.Equal(stages[0].StartedAt))
	assert.Equal(t, "review", stages[1].Stage)
	assert.Empty(t, stages[1].ToolCalls)

	dup := &StageExecution{RunID: "run-1", Sequence: 1, Agent: "main", Stage: "again", Status: StatusFailed, StartedAt: start}
	assert.Error(t, l.RecordStage(ctx, dup), "sequence numbers are unique per run")
}

func TestLedger_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	base := time.UnixMilli(1700000000000)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, l.StartRun(ctx, &Run{ID: id, Kind: KindSwarm, StartedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	runs, err := l.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestLedger_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "romp.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.StartRun(ctx, &Run{ID: "persisted", Kind: KindReview}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	_, err = l.GetRun(ctx, "persisted")
	assert.NoError(t, err)
}
