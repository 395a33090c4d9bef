package strategy

import (
	"context"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/utils"
)

// Sequential runs each trial inside the consumer's own loop.
type Sequential struct {
	trial trial.Trial
	seeds utils.SeedSequence
	log   *slog.Logger

	started  atomic.Bool
	stopped  atomic.Bool
	executed atomic.Int64
}

// NewSequential creates a sequential strategy
func NewSequential(t trial.Trial, opts Options) *Sequential {
	return &Sequential{trial: t, seeds: opts.Seeds, log: opts.Logger}
}

func (s *Sequential) Kind() models.StrategyKind { return models.StrategySequential }

// DrainsInFlightWork is false: nothing is ever in flight between results.
func (s *Sequential) DrainsInFlightWork() bool { return false }

// Executed returns the number of trial invocations performed
func (s *Sequential) Executed() int64 { return s.executed.Load() }

func (s *Sequential) Submit(ctx context.Context, budget int, params models.TrialParams) iter.Seq2[models.TrialResult, error] {
	return func(yield func(models.TrialResult, error) bool) {
		if !s.started.CompareAndSwap(false, true) {
			yield(0, errAlreadySubmitted)
			return
		}
		for i := 0; i < budget; i++ {
			if s.stopped.Load() {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(0, err)
				return
			}
			s.executed.Add(1)
			r, err := trial.Invoke(s.trial, params, trial.Invocation{Index: i, Seed: s.seeds.At(i)})
			if !yield(r, err) || err != nil {
				return
			}
		}
	}
}

// Stop prevents any further trial from starting.
func (s *Sequential) Stop(reason string) {
	if s.stopped.CompareAndSwap(false, true) {
		s.log.Debug("sequential strategy stopped", "reason", reason, "executed", s.executed.Load())
	}
}

// Shutdown has nothing to release.
func (s *Sequential) Shutdown() error {
	s.stopped.Store(true)
	return nil
}
