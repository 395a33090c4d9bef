package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/trial-harness/internal/store"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

func seedHistory(t *testing.T, runs ...*models.Run) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	for _, run := range runs {
		require.NoError(t, st.Record(context.Background(), run))
	}
	return path
}

func recordedRun(id string, max models.TrialResult, stoppedEarly bool) *models.Run {
	ended := time.Now().Add(-time.Minute)
	return &models.Run{
		ID:     id,
		Status: models.RunStatusCompleted,
		Trial:  "dice",
		Config: models.DefaultRunConfig(models.StrategyThreadPool),
		Params: models.DefaultTrialParams(),
		Outcome: &models.RunOutcome{
			MaxResult:       max,
			TrialsCompleted: 12345,
			StoppedEarly:    stoppedEarly,
			Strategy:        models.StrategyThreadPool,
			Duration:        time.Second,
		},
		CreatedAt: ended.Add(-2 * time.Second),
		StartedAt: ended.Add(-time.Second),
		EndedAt:   ended,
	}
}

func TestHistoryText(t *testing.T) {
	path := seedHistory(t, recordedRun("run-a", 92, false), recordedRun("run-b", 178, true))

	stdout, _, err := execute(t, "history", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ID")
	assert.Contains(t, stdout, "run-a")
	assert.Contains(t, stdout, "run-b")
	assert.Contains(t, stdout, "12,345*")
	assert.Contains(t, stdout, "1 minute ago")
	assert.Less(t, strings.Index(stdout, "run-b"), strings.Index(stdout, "run-a"), "newest first")
}

func TestHistoryJSONLimit(t *testing.T) {
	path := seedHistory(t, recordedRun("run-a", 92, false), recordedRun("run-b", 178, true))

	stdout, _, err := execute(t, "history", "--db", path, "--limit", "1", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, "run-b", resp.Data.Runs[0].ID)
}

func TestHistoryEmpty(t *testing.T) {
	path := seedHistory(t)
	stdout, _, err := execute(t, "history", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs recorded.")
}

func TestHistoryMissingDatabase(t *testing.T) {
	_, _, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
