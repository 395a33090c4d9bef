package searchd

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

func TestMain(m *testing.M) {
	logger.SetDefault(logger.Discard())
	trial.Register("sleepy", func(models.TrialParams, trial.Invocation) (models.TrialResult, error) {
		time.Sleep(5 * time.Millisecond)
		return 1, nil
	})
	trial.Register("failing", func(models.TrialParams, trial.Invocation) (models.TrialResult, error) {
		return 0, errors.New("sensor offline")
	})
	trial.Register("scenario", trial.Sequence(10, 50, 178, 90))
	os.Exit(m.Run())
}

// fakeHistory records runs in memory
type fakeHistory struct {
	mu   sync.Mutex
	runs []*models.Run
}

func (h *fakeHistory) Record(_ context.Context, run *models.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, run)
	return nil
}

func (h *fakeHistory) List(_ context.Context, limit int) ([]*models.Run, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*models.Run, 0, len(h.runs))
	for i := len(h.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, h.runs[i])
	}
	return out, nil
}

func (h *fakeHistory) recorded() []*models.Run {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*models.Run(nil), h.runs...)
}

func scenarioInput(kind models.StrategyKind) RunInput {
	cfg := models.DefaultRunConfig(kind)
	cfg.MaxWorkers = 1
	return RunInput{Trial: "scenario", Config: cfg, Params: models.DefaultTrialParams()}
}

func sleepyInput() RunInput {
	return RunInput{
		Trial:  "sleepy",
		Config: models.DefaultRunConfig(models.StrategySequential),
		Params: models.DefaultTrialParams(),
	}
}

func waitForTerminal(t *testing.T, store *RunStore, runID string) *models.Run {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		run, ok := store.Get(runID)
		require.True(t, ok, "run %s vanished", runID)
		if run.Status.Terminal() {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", runID)
	return nil
}
