package strategy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/internal/worker"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// workerEnv turns the test binary into a process pool worker
const workerEnv = "STRATEGY_TEST_WORKER"

func TestMain(m *testing.M) {
	registerTestTrials()
	if os.Getenv(workerEnv) == "1" {
		if err := worker.Serve(context.Background(), os.Stdin, os.Stdout, nil); err != nil {
			fmt.Fprintln(os.Stderr, "worker:", err)
			os.Exit(3)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func registerTestTrials() {
	trial.Register("scenario", trial.Sequence(10, 50, 178, 90))
	trial.Register("below", trial.Sequence(5, 120, 177, 33))
	trial.Register("boom", func(_ models.TrialParams, inv trial.Invocation) (models.TrialResult, error) {
		if inv.Index == 1 {
			return 0, errors.New("boom")
		}
		return 1, nil
	})
	// The first trial is slow but triggers; every other trial hangs long
	// enough that only a kill can end it quickly.
	trial.Register("slow-tail", func(_ models.TrialParams, inv trial.Invocation) (models.TrialResult, error) {
		if inv.Index == 0 {
			time.Sleep(200 * time.Millisecond)
			return 178, nil
		}
		time.Sleep(30 * time.Second)
		return 1, nil
	})
}

func testWorkerCommand(t *testing.T) worker.Command {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test binary: %v", err)
	}
	return worker.Command{Path: exe, Args: []string{"-test.run=^$"}, Env: []string{workerEnv + "=1"}}
}

func namedTrial(t *testing.T, name string) trial.Trial {
	t.Helper()
	tr, ok := trial.Lookup(name)
	if !ok {
		t.Fatalf("trial %q not registered", name)
	}
	return tr
}

// consume drives s the way the harness does: it stops at the first result
// above threshold.
func consume(ctx context.Context, s Strategy, budget, threshold int) ([]models.TrialResult, error) {
	var seen []models.TrialResult
	for r, err := range s.Submit(ctx, budget, models.DefaultTrialParams()) {
		if err != nil {
			s.Stop("error")
			return seen, err
		}
		seen = append(seen, r)
		if int(r) > threshold {
			s.Stop("threshold exceeded")
			break
		}
	}
	return seen, nil
}
