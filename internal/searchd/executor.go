package searchd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/trial-harness/internal/harness"
	"github.com/GoSim-25-26J-441/trial-harness/internal/metrics"
	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/internal/worker"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
	ErrRunExists    = errors.New("run already exists")
)

// History persists finished runs
type History interface {
	Record(ctx context.Context, run *models.Run) error
	List(ctx context.Context, limit int) ([]*models.Run, error)
}

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store    *RunStore
	history  History
	notifier *Notifier
	worker   worker.Command
	log      *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// ExecutorOption configures a RunExecutor
type ExecutorOption func(*RunExecutor)

// WithHistory records every finished run in h
func WithHistory(h History) ExecutorOption {
	return func(e *RunExecutor) { e.history = h }
}

// WithNotifier posts finished runs to their callback URL
func WithNotifier(n *Notifier) ExecutorOption {
	return func(e *RunExecutor) { e.notifier = n }
}

// WithWorkerCommand sets how process pool workers are started
func WithWorkerCommand(c worker.Command) ExecutorOption {
	return func(e *RunExecutor) { e.worker = c }
}

// WithLogger sets the executor's logger
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *RunExecutor) { e.log = l }
}

func NewRunExecutor(store *RunStore, opts ...ExecutorOption) *RunExecutor {
	e := &RunExecutor{
		store:   store,
		log:     logger.Default,
		cancels: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// History returns the configured history, or nil
func (e *RunExecutor) History() History {
	return e.history
}

// Start begins executing a run asynchronously.
// Returns the updated run state (running) or an error.
func (e *RunExecutor) Start(runID string) (*models.Run, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	run, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	switch {
	case run.Status == models.RunStatusRunning:
		return run, nil
	case run.Status.Terminal():
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusRunning, "")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if old, exists := e.cancels[runID]; exists {
		old()
	}
	e.cancels[runID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runHarness(ctx, runID)
	}()
	return updated, nil
}

// Stop requests cancellation for a run and marks it cancelled. The harness
// releases the run's workers in the background.
func (e *RunExecutor) Stop(runID string) (*models.Run, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()
	if ok {
		cancel()
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusCancelled, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		// Never started, so no goroutine will finish it
		e.finish(context.Background(), runID)
	}
	return updated, nil
}

// Shutdown cancels every active run and waits for them to release their
// workers, or for ctx to end.
func (e *RunExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every started run has finished
func (e *RunExecutor) Wait() {
	e.wg.Wait()
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) runHarness(ctx context.Context, runID string) {
	defer e.cleanup(runID)
	log := e.log.With("run_id", runID)

	run, ok := e.store.Get(runID)
	if !ok {
		log.Error("run not found")
		return
	}

	t, err := trial.Resolve(run.Trial)
	if err != nil {
		e.fail(ctx, runID, log, err)
		return
	}

	collector := metrics.NewCollector()
	collector.Start()
	if err := e.store.SetCollector(runID, collector); err != nil {
		log.Error("failed to store collector", "error", err)
	}

	h := harness.New(
		harness.WithLogger(log),
		harness.WithWorkerCommand(e.worker),
		harness.WithObserver(collector),
	)

	log.Info("starting run", "trial", run.Trial, "strategy", string(run.Config.Strategy), "budget", run.Config.TrialBudget)
	outcome, err := h.Run(ctx, run.Config, run.Params, t)
	collector.Stop()
	if err != nil {
		if ctx.Err() != nil {
			log.Info("run cancelled", "error", err)
			if _, setErr := e.store.SetStatus(runID, models.RunStatusCancelled, ""); setErr != nil && !errors.Is(setErr, ErrRunTerminal) {
				log.Error("failed to set cancelled status", "error", setErr)
			}
			e.finish(ctx, runID)
			return
		}
		e.fail(ctx, runID, log, err)
		return
	}

	if err := e.store.SetOutcome(runID, outcome); err != nil {
		log.Error("failed to set outcome", "error", err)
	}
	var cleanupMsg string
	if outcome.CleanupErr != nil {
		cleanupMsg = outcome.CleanupErr.Error()
	}
	if _, err := e.store.SetStatus(runID, models.RunStatusCompleted, cleanupMsg); err != nil {
		// Stopped between the last result and here; the cancellation wins
		log.Info("run finished after cancellation", "error", err)
	} else {
		log.Info("run completed",
			"max_result", int(outcome.MaxResult),
			"trials_completed", outcome.TrialsCompleted,
			"stopped_early", outcome.StoppedEarly)
	}
	e.finish(ctx, runID)
}

func (e *RunExecutor) fail(ctx context.Context, runID string, log *slog.Logger, err error) {
	log.Error("run failed", "error", err)
	if _, setErr := e.store.SetStatus(runID, models.RunStatusFailed, err.Error()); setErr != nil {
		log.Error("failed to set failed status", "error", setErr)
	}
	e.finish(ctx, runID)
}

// finish hands a terminal run to the history and the notifier
func (e *RunExecutor) finish(ctx context.Context, runID string) {
	run, ok := e.store.Get(runID)
	if !ok || !run.Status.Terminal() {
		return
	}

	if e.history != nil {
		// The run's own context may already be cancelled
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := e.history.Record(recordCtx, run); err != nil {
			e.log.Error("failed to record run history", "run_id", runID, "error", err)
		}
		cancel()
	}

	if e.notifier != nil {
		input, _ := e.store.input(runID)
		var summary *metrics.Summary
		if c, ok := e.store.Collector(runID); ok {
			summary = c.Summary()
		}
		e.notifier.Notify(input.CallbackURL, input.CallbackSecret, run, summary)
	}
}
