package strategy

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"time"

	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/internal/worker"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/utils"
)

// DefaultShutdownTimeout bounds the process pool's join when none is configured.
const DefaultShutdownTimeout = 10 * time.Second

// errAlreadySubmitted is yielded when Submit's sequence is ranged twice.
var errAlreadySubmitted = errors.New("strategy already submitted; create a new one per run")

// Strategy is one execution backend. An instance serves exactly one run.
type Strategy interface {
	Kind() models.StrategyKind
	// DrainsInFlightWork reports whether dispatched trials run to completion
	// after Stop (true) or are discarded (false).
	DrainsInFlightWork() bool
	// Submit returns the results of up to budget trials in completion order.
	// A cancelled ctx ends the sequence with ctx.Err().
	Submit(ctx context.Context, budget int, params models.TrialParams) iter.Seq2[models.TrialResult, error]
	// Stop is idempotent and safe after normal completion.
	Stop(reason string)
	// Shutdown returns once owned goroutines or processes are gone. Errors
	// wrap models.ErrResourceCleanup.
	Shutdown() error
}

// Options configures a strategy
type Options struct {
	// MaxWorkers bounds the pool strategies; 0 means runtime.NumCPU().
	MaxWorkers int
	Seeds      utils.SeedSequence
	// StopGrace lets a process pool's in-flight trials finish before its workers are killed.
	StopGrace time.Duration
	// ShutdownTimeout bounds how long Shutdown waits for workers.
	ShutdownTimeout time.Duration
	// Worker starts process pool children; the zero value re-executes the current binary.
	Worker worker.Command
	Logger *slog.Logger
}

func (o Options) workers(budget int) int {
	n := o.MaxWorkers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if budget > 0 && n > budget {
		n = budget
	}
	return n
}

// New builds the strategy for kind. It allocates no workers; those are
// created when the returned strategy's sequence is first ranged over.
func New(kind models.StrategyKind, t trial.Trial, opts Options) (Strategy, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Default
	}
	opts.Logger = opts.Logger.With("strategy", string(kind))

	switch kind {
	case models.StrategySequential:
		return NewSequential(t, opts), nil
	case models.StrategyThreadPool:
		return NewThreadPool(t, opts), nil
	case models.StrategyProcess:
		if t.Name == "" {
			return nil, fmt.Errorf("%w: process pool needs a registered trial name", models.ErrInvalidConfiguration)
		}
		return NewProcessPool(t, opts), nil
	}
	return nil, fmt.Errorf("%w: unknown strategy %q", models.ErrInvalidConfiguration, kind)
}

// outcome is one finished trial travelling from a worker to the consumer
type outcome struct {
	value models.TrialResult
	err   error
}

// waitFor reports whether ch closed within d. A non-positive d waits forever.
func waitFor(ch <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		<-ch
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
