package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func finishedRun(id string, max models.TrialResult) *models.Run {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Run{
		ID:     id,
		Status: models.RunStatusCompleted,
		Trial:  "dice",
		Config: models.RunConfig{TrialBudget: 1000, StopThreshold: 177, Strategy: models.StrategyThreadPool, MaxWorkers: 4, Seed: 7},
		Params: models.DefaultTrialParams(),
		Outcome: &models.RunOutcome{
			MaxResult:       max,
			TrialsCompleted: 1000,
			Strategy:        models.StrategyThreadPool,
			Duration:        1500 * time.Millisecond,
		},
		CreatedAt: created,
		StartedAt: created.Add(time.Second),
		EndedAt:   created.Add(3 * time.Second),
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "open iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestRecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := finishedRun("run-1", 92)
	require.NoError(t, s.Record(ctx, want))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Config, got.Config)
	assert.Equal(t, want.Params, got.Params)
	assert.Equal(t, want.Outcome, got.Outcome)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, want.EndedAt.Equal(got.EndedAt))
}

func TestRecordFailedRunHasNoOutcome(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := finishedRun("run-failed", 0)
	run.Status = models.RunStatusFailed
	run.Outcome = nil
	run.Error = "trial failure: boom"
	require.NoError(t, s.Record(ctx, run))

	got, err := s.Get(ctx, "run-failed")
	require.NoError(t, err)
	assert.Nil(t, got.Outcome)
	assert.Equal(t, "trial failure: boom", got.Error)
}

func TestRecordRejectsRunningRun(t *testing.T) {
	s := openTestStore(t)
	run := finishedRun("run-live", 10)
	run.Status = models.RunStatusRunning
	assert.ErrorIs(t, s.Record(context.Background(), run), ErrNotTerminal)
}

func TestRecordReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := finishedRun("run-1", 40)
	require.NoError(t, s.Record(ctx, run))
	run.Outcome.MaxResult = 41
	require.NoError(t, s.Record(ctx, run))

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.TrialResult(41), runs[0].Outcome.MaxResult)
}

func TestGetNotFound(t *testing.T) {
	_, err := openTestStore(t).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Record(ctx, finishedRun(id, 1)))
	}

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
