package models

import (
	"fmt"
	"time"
)

// Reference workload defaults.
const (
	DefaultTrialBudget        = 100_000
	DefaultCategoryCount      = 4
	DefaultDrawsPerTrial      = 231
	DefaultCategoryOfInterest = 1
	DefaultStopThreshold      = 177
)

// StrategyKind selects the execution backend for a run
type StrategyKind string

const (
	StrategySequential StrategyKind = "sequential"
	StrategyThreadPool StrategyKind = "threaded"
	StrategyProcess    StrategyKind = "multiprocessing"
)

// StrategyKinds lists every known strategy in the order the comparison runs them.
var StrategyKinds = []StrategyKind{StrategyThreadPool, StrategyProcess, StrategySequential}

// ParseStrategyKind maps a strategy name to its kind.
func ParseStrategyKind(name string) (StrategyKind, error) {
	kind := StrategyKind(name)
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown strategy %q (must be sequential, threaded, or multiprocessing)", ErrInvalidConfiguration, name)
	}
	return kind, nil
}

// Valid reports whether k names a known strategy
func (k StrategyKind) Valid() bool {
	switch k {
	case StrategySequential, StrategyThreadPool, StrategyProcess:
		return true
	}
	return false
}

// TrialParams is passed unchanged to every trial invocation of a run.
type TrialParams struct {
	CategoryCount      int `json:"category_count" yaml:"category_count"`
	DrawsPerTrial      int `json:"draws_per_trial" yaml:"draws_per_trial"`
	CategoryOfInterest int `json:"category_of_interest" yaml:"category_of_interest"`
}

// DefaultTrialParams returns the reference workload: a four sided die rolled 231 times, counting ones.
func DefaultTrialParams() TrialParams {
	return TrialParams{
		CategoryCount:      DefaultCategoryCount,
		DrawsPerTrial:      DefaultDrawsPerTrial,
		CategoryOfInterest: DefaultCategoryOfInterest,
	}
}

// Validate checks the parameter ranges
func (p TrialParams) Validate() error {
	if p.CategoryCount <= 0 {
		return fmt.Errorf("%w: category_count must be positive, got %d", ErrInvalidConfiguration, p.CategoryCount)
	}
	if p.DrawsPerTrial <= 0 {
		return fmt.Errorf("%w: draws_per_trial must be positive, got %d", ErrInvalidConfiguration, p.DrawsPerTrial)
	}
	if p.CategoryOfInterest < 1 || p.CategoryOfInterest > p.CategoryCount {
		return fmt.Errorf("%w: category_of_interest must be in [1, %d], got %d",
			ErrInvalidConfiguration, p.CategoryCount, p.CategoryOfInterest)
	}
	return nil
}

// InRange reports whether r is a possible result for these params.
func (p TrialParams) InRange(r TrialResult) bool {
	return r >= 0 && int(r) <= p.DrawsPerTrial
}

// TrialResult is the number of draws that matched the category of interest.
type TrialResult int

// RunConfig is supplied by the caller and stays fixed for the duration of a run.
type RunConfig struct {
	TrialBudget   int          `json:"trial_budget" yaml:"trial_budget"`
	StopThreshold int          `json:"stop_threshold" yaml:"stop_threshold"`
	Strategy      StrategyKind `json:"strategy" yaml:"strategy"`
	// MaxWorkers bounds the pool strategies; 0 means the host CPU count.
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers"`
	// Seed is the base seed per-trial seeds are derived from; 0 picks one from the clock.
	Seed int64 `json:"seed,omitempty" yaml:"seed"`
	// StopGrace is how long a process pool lets in-flight trials finish before killing workers.
	StopGrace time.Duration `json:"stop_grace,omitempty" yaml:"stop_grace"`
	// ShutdownTimeout bounds the join of pool workers; 0 uses the strategy default.
	ShutdownTimeout time.Duration `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout"`
}

// DefaultRunConfig returns the reference run for the given strategy.
func DefaultRunConfig(kind StrategyKind) RunConfig {
	return RunConfig{
		TrialBudget:   DefaultTrialBudget,
		StopThreshold: DefaultStopThreshold,
		Strategy:      kind,
	}
}

// Validate checks the run configuration. Any integer is a valid threshold.
func (c RunConfig) Validate() error {
	if c.TrialBudget <= 0 {
		return fmt.Errorf("%w: trial_budget must be positive, got %d", ErrInvalidConfiguration, c.TrialBudget)
	}
	if !c.Strategy.Valid() {
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfiguration, c.Strategy)
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("%w: max_workers cannot be negative, got %d", ErrInvalidConfiguration, c.MaxWorkers)
	}
	if c.StopGrace < 0 {
		return fmt.Errorf("%w: stop_grace cannot be negative", ErrInvalidConfiguration)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: shutdown_timeout cannot be negative", ErrInvalidConfiguration)
	}
	return nil
}

// RunOutcome is the aggregate a harness run reports.
type RunOutcome struct {
	MaxResult       TrialResult   `json:"max_result"`
	TrialsCompleted int           `json:"trials_completed"`
	StoppedEarly    bool          `json:"stopped_early"`
	Strategy        StrategyKind  `json:"strategy"`
	Duration        time.Duration `json:"duration"`
	// CleanupErr is set when releasing the strategy's workers failed. It never
	// replaces the outcome itself.
	CleanupErr error `json:"-"`
}

// RunStatus represents the status of a daemon-managed run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Run is a record of one harness run tracked by the daemon and the history store.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Trial     string      `json:"trial"`
	Config    RunConfig   `json:"config"`
	Params    TrialParams `json:"params"`
	Outcome   *RunOutcome `json:"outcome,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	StartedAt time.Time   `json:"started_at,omitempty"`
	EndedAt   time.Time   `json:"ended_at,omitempty"`
}
