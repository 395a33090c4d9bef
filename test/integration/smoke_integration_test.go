//go:build integration
// +build integration

package integration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/GoSim-25-26J-441/trial-harness/internal/harness"
	"github.com/GoSim-25-26J-441/trial-harness/internal/metrics"
	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/config"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

func TestIntegration_ConfigLoadSmoke(t *testing.T) {
	cfgPath := filepath.Join("..", "..", "config", "config.yaml")

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig(%s) failed: %v", cfgPath, err)
	}
	if cfg == nil {
		t.Fatalf("LoadConfig(%s) returned nil config", cfgPath)
	}
	if _, err := trial.Resolve(cfg.Trial.Name); err != nil {
		t.Fatalf("configured trial %q is not registered: %v", cfg.Trial.Name, err)
	}
	if err := cfg.RunConfig().Validate(); err != nil {
		t.Fatalf("configured run is invalid: %v", err)
	}
}

// Every strategy reports the same maximum for a fixed seed when the threshold
// cannot be reached, since every trial in the budget is then consumed.
func TestIntegration_DiceAgreesAcrossStrategies(t *testing.T) {
	cfgPath := filepath.Join("..", "..", "config", "config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig(%s) failed: %v", cfgPath, err)
	}

	runCfg := cfg.RunConfig()
	runCfg.TrialBudget = 2000
	runCfg.StopThreshold = cfg.Trial.DrawsPerTrial
	runCfg.MaxWorkers = 4
	runCfg.Seed = 20240601

	dice, err := trial.Resolve(trial.DiceName)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	collectors := map[models.StrategyKind]*metrics.Collector{}
	var want models.TrialResult
	for i, kind := range models.StrategyKinds {
		collector := metrics.NewCollector()
		collectors[kind] = collector
		h := harness.New(
			harness.WithLogger(logger.Discard()),
			harness.WithWorkerCommand(workerCommand(t)),
			harness.WithObserver(collector),
		)

		c := runCfg
		c.Strategy = kind
		outcome, err := h.Run(context.Background(), c, cfg.TrialParams(), dice)
		if err != nil {
			t.Fatalf("%s: Run failed: %v", kind, err)
		}
		if outcome.StoppedEarly {
			t.Fatalf("%s: expected no early stop with an unreachable threshold", kind)
		}
		if outcome.TrialsCompleted != runCfg.TrialBudget {
			t.Fatalf("%s: expected %d trials, got %d", kind, runCfg.TrialBudget, outcome.TrialsCompleted)
		}
		if i == 0 {
			want = outcome.MaxResult
		} else if outcome.MaxResult != want {
			t.Fatalf("%s: expected max %d, got %d", kind, want, outcome.MaxResult)
		}
	}

	// Same seeds, same multiset of results
	base := collectors[models.StrategySequential].Summary()
	for kind, c := range collectors {
		s := c.Summary()
		if s.Count != base.Count || s.Sum != base.Sum || s.Max != base.Max {
			t.Fatalf("%s: summary %+v differs from sequential %+v", kind, s, base)
		}
	}
}
