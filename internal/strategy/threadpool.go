package strategy

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/utils"
)

// ThreadPool feeds trial indexes to a fixed set of goroutines ahead of
// consumption.
//
// Stop does not cancel submitted work: every trial already handed to the
// queue or a worker still runs and Shutdown waits for all of them, like
// joining an executor whose futures cannot be cancelled. Stop does end the
// feed, so at most a queue and a worker set's worth of trials run after it.
// Executed reports how much work that was.
type ThreadPool struct {
	trial           trial.Trial
	maxWorkers      int
	seeds           utils.SeedSequence
	shutdownTimeout time.Duration
	log             *slog.Logger

	group     errgroup.Group
	started   atomic.Bool
	done      chan struct{}
	stopOnce  sync.Once
	stopped   chan struct{}
	submitted atomic.Int64
	executed  atomic.Int64
}

// NewThreadPool creates a goroutine pool strategy
func NewThreadPool(t trial.Trial, opts Options) *ThreadPool {
	return &ThreadPool{
		trial:           t,
		maxWorkers:      opts.MaxWorkers,
		seeds:           opts.Seeds,
		shutdownTimeout: opts.ShutdownTimeout,
		log:             opts.Logger,
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
	}
}

func (p *ThreadPool) Kind() models.StrategyKind { return models.StrategyThreadPool }

// DrainsInFlightWork is true: already submitted trials always complete.
func (p *ThreadPool) DrainsInFlightWork() bool { return true }

// Executed returns the number of trial invocations performed so far
func (p *ThreadPool) Executed() int64 { return p.executed.Load() }

func (p *ThreadPool) Submit(ctx context.Context, budget int, params models.TrialParams) iter.Seq2[models.TrialResult, error] {
	return func(yield func(models.TrialResult, error) bool) {
		if !p.started.CompareAndSwap(false, true) {
			yield(0, errAlreadySubmitted)
			return
		}
		results := p.start(budget, params)
		for {
			if err := ctx.Err(); err != nil {
				yield(0, err)
				return
			}
			select {
			case <-ctx.Done():
				yield(0, ctx.Err())
				return
			case <-p.stopped:
				return
			case o, ok := <-results:
				if !ok {
					return
				}
				if !yield(o.value, o.err) {
					return
				}
			}
		}
	}
}

// start launches a producer that submits indexes in order and the workers
// that run them. Queue and result buffers are sized to the worker count, not
// the budget. p.done closes once every goroutine has returned, including when
// start itself panics before they are launched.
func (p *ThreadPool) start(budget int, params models.TrialParams) <-chan outcome {
	launched := false
	defer func() {
		if !launched {
			close(p.done)
		}
	}()

	workers := Options{MaxWorkers: p.maxWorkers}.workers(budget)
	queue := make(chan int, workers)
	results := make(chan outcome, workers)
	p.log.Debug("thread pool started", "workers", workers, "budget", budget)

	p.group.Go(func() error {
		defer close(queue)
		for i := 0; i < budget; i++ {
			select {
			case queue <- i:
				p.submitted.Add(1)
			case <-p.stopped:
				return nil
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		p.group.Go(func() error {
			for idx := range queue {
				p.executed.Add(1)
				r, err := trial.Invoke(p.trial, params, trial.Invocation{Index: idx, Seed: p.seeds.At(idx)})
				select {
				case results <- outcome{value: r, err: err}:
				case <-p.stopped:
				}
			}
			return nil
		})
	}

	go func() {
		_ = p.group.Wait()
		close(results)
		close(p.done)
	}()
	launched = true
	return results
}

// Stop ends consumption and the feed. Submitted trials keep running.
func (p *ThreadPool) Stop(reason string) {
	p.stopOnce.Do(func() {
		close(p.stopped)
		p.log.Debug("thread pool consumer stopped; draining submitted trials",
			"reason", reason, "executed", p.executed.Load(), "submitted", p.submitted.Load())
	})
}

// Shutdown joins every worker. With a shutdown timeout configured it gives
// up waiting after that long and reports the pool as not cleaned up.
func (p *ThreadPool) Shutdown() error {
	if !p.started.Load() {
		return nil
	}
	p.Stop("shutdown")
	if !waitFor(p.done, p.shutdownTimeout) {
		return fmt.Errorf("%w: thread pool still running after %s (%d of %d submitted trials executed)",
			models.ErrResourceCleanup, p.shutdownTimeout, p.executed.Load(), p.submitted.Load())
	}
	p.log.Debug("thread pool joined", "executed", p.executed.Load())
	return nil
}
