// Package harness drives a strategy through one bounded search: it consumes
// trial results until the budget is spent or a result exceeds the stop
// threshold, tracks the maximum, and releases the strategy on every exit path.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoSim-25-26J-441/trial-harness/internal/strategy"
	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/internal/worker"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/utils"
)

// Observer sees every consumed result, in consumption order.
type Observer interface {
	Observe(r models.TrialResult)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(models.TrialResult)

func (f ObserverFunc) Observe(r models.TrialResult) { f(r) }

// StrategyFactory builds the strategy for a run
type StrategyFactory func(kind models.StrategyKind, t trial.Trial, opts strategy.Options) (strategy.Strategy, error)

// Harness runs searches. It holds no per-run state and may be reused.
type Harness struct {
	log         *slog.Logger
	worker      worker.Command
	observer    Observer
	newStrategy StrategyFactory
}

// Option configures a Harness
type Option func(*Harness)

// WithLogger sets the logger runs report to
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.log = l }
}

// WithWorkerCommand sets how process pool workers are started
func WithWorkerCommand(c worker.Command) Option {
	return func(h *Harness) { h.worker = c }
}

// WithObserver registers an observer for consumed results
func WithObserver(o Observer) Option {
	return func(h *Harness) { h.observer = o }
}

// WithStrategyFactory replaces strategy.New
func WithStrategyFactory(f StrategyFactory) Option {
	return func(h *Harness) { h.newStrategy = f }
}

// New creates a harness
func New(opts ...Option) *Harness {
	h := &Harness{
		log:         logger.Default,
		newStrategy: strategy.New,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// executedCounter is implemented by strategies that track invocations
// performed, which can exceed the trials observed.
type executedCounter interface {
	Executed() int64
}

// Run performs one search. The returned outcome's CleanupErr is set when the
// strategy could not release its workers in time; that never turns a
// finished run into an error.
func (h *Harness) Run(ctx context.Context, cfg models.RunConfig, params models.TrialParams, t trial.Trial) (*models.RunOutcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if t.Run == nil && t.Name == "" {
		return nil, fmt.Errorf("%w: no trial function", models.ErrInvalidConfiguration)
	}

	seeds := utils.NewSeedSequence(cfg.Seed)
	log := h.log.With("strategy", string(cfg.Strategy), "trial", t.Name, "seed", seeds.Base())

	s, err := h.newStrategy(cfg.Strategy, t, strategy.Options{
		MaxWorkers:      cfg.MaxWorkers,
		Seeds:           seeds,
		StopGrace:       cfg.StopGrace,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Worker:          h.worker,
		Logger:          log,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var outcome *models.RunOutcome
	settled := false
	defer func() {
		if !settled {
			// Only reached when a panic unwinds through the consumption loop
			s.Stop("aborted")
		}
		if cerr := s.Shutdown(); cerr != nil {
			log.Warn("strategy cleanup failed", "error", cerr)
			if outcome != nil {
				outcome.CleanupErr = cerr
			}
		}
		if e, ok := s.(executedCounter); ok {
			log.Debug("strategy joined", "trials_executed", e.Executed())
		}
	}()

	log.Debug("run starting", "budget", cfg.TrialBudget, "threshold", cfg.StopThreshold,
		"max_workers", cfg.MaxWorkers, "drains_in_flight_work", s.DrainsInFlightWork())

	var (
		completed    int
		maxResult    models.TrialResult
		stoppedEarly bool
		runErr       error
	)
	for r, err := range s.Submit(ctx, cfg.TrialBudget, params) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				err = fmt.Errorf("run cancelled after %d trials: %w", completed, err)
			}
			runErr = err
			break
		}
		if !params.InRange(r) {
			runErr = fmt.Errorf("%w: result %d outside [0, %d]", models.ErrTrialFailure, r, params.DrawsPerTrial)
			break
		}

		completed++
		if completed == 1 || r > maxResult {
			maxResult = r
		}
		if h.observer != nil {
			h.observer.Observe(r)
		}
		if int(r) > cfg.StopThreshold {
			stoppedEarly = true
			break
		}
		if completed >= cfg.TrialBudget {
			break
		}
	}

	switch {
	case stoppedEarly:
		s.Stop("result above stop threshold")
	case runErr != nil:
		s.Stop(runErr.Error())
	}
	settled = true

	if runErr != nil {
		log.Error("run failed", "trials_completed", completed, "error", runErr)
		return nil, runErr
	}
	if completed == 0 {
		return nil, models.ErrEmptyRun
	}

	outcome = &models.RunOutcome{
		MaxResult:       maxResult,
		TrialsCompleted: completed,
		StoppedEarly:    stoppedEarly,
		Strategy:        cfg.Strategy,
		Duration:        time.Since(start),
	}
	log.Info("run finished",
		"max_result", int(maxResult),
		"trials_completed", completed,
		"stopped_early", stoppedEarly,
		"duration", outcome.Duration)
	return outcome, nil
}

// RunAll runs cfg once per strategy kind, in order, and stops at the first
// failing run.
func (h *Harness) RunAll(ctx context.Context, cfg models.RunConfig, params models.TrialParams, t trial.Trial, kinds ...models.StrategyKind) ([]*models.RunOutcome, error) {
	if len(kinds) == 0 {
		kinds = models.StrategyKinds
	}
	outcomes := make([]*models.RunOutcome, 0, len(kinds))
	for _, kind := range kinds {
		c := cfg
		c.Strategy = kind
		out, err := h.Run(ctx, c, params, t)
		if err != nil {
			return outcomes, fmt.Errorf("%s: %w", kind, err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
