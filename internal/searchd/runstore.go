// Package searchd serves harness runs over HTTP and gRPC. Runs execute in the
// background; their records live in memory and, once finished, optionally in
// the SQLite history.
package searchd

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/trial-harness/internal/metrics"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/utils"
)

// RunInput is everything needed to start a run
type RunInput struct {
	Trial          string             `json:"trial"`
	Config         models.RunConfig   `json:"config"`
	Params         models.TrialParams `json:"params"`
	CallbackURL    string             `json:"callback_url,omitempty"`
	CallbackSecret string             `json:"-"`
}

type runRecord struct {
	run       models.Run
	input     RunInput
	collector *metrics.Collector
}

// RunStore holds every run the daemon has seen since it started
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]*runRecord
	order []string
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*runRecord),
	}
}

// Create registers a pending run. An empty runID gets a generated one.
func (s *RunStore) Create(runID string, input RunInput) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	rec := &runRecord{
		run: models.Run{
			ID:        runID,
			Status:    models.RunStatusPending,
			Trial:     input.Trial,
			Config:    input.Config,
			Params:    input.Params,
			CreatedAt: time.Now().UTC(),
		},
		input: input,
	}
	s.runs[runID] = rec
	s.order = append(s.order, runID)
	return snapshot(rec), nil
}

// Get returns a copy of the run
func (s *RunStore) Get(runID string) (*models.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return snapshot(rec), true
}

func (s *RunStore) input(runID string) (RunInput, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return RunInput{}, false
	}
	return rec.input, true
}

// List returns up to limit runs, newest first, optionally filtered by status
func (s *RunStore) List(limit int, status models.RunStatus) []*models.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*models.Run, 0, min(limit, len(s.order)))
	for _, id := range slices.Backward(s.order) {
		rec := s.runs[id]
		if status != "" && rec.run.Status != status {
			continue
		}
		out = append(out, snapshot(rec))
		if len(out) >= limit {
			break
		}
	}
	return out
}

// SetStatus moves a run to status. Terminal runs never change again.
func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.run.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, rec.run.Status)
	}

	rec.run.Status = status
	if errMsg != "" {
		rec.run.Error = errMsg
	}

	now := time.Now().UTC()
	switch {
	case status == models.RunStatusRunning:
		if rec.run.StartedAt.IsZero() {
			rec.run.StartedAt = now
		}
	case status.Terminal():
		rec.run.EndedAt = now
	}
	return snapshot(rec), nil
}

// SetOutcome attaches the harness outcome to a run
func (s *RunStore) SetOutcome(runID string, outcome *models.RunOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	out := *outcome
	rec.run.Outcome = &out
	return nil
}

// SetCollector stores the run's metrics collector
func (s *RunStore) SetCollector(runID string, c *metrics.Collector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.collector = c
	return nil
}

// Collector returns the run's metrics collector, if it has started
func (s *RunStore) Collector(runID string) (*metrics.Collector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	if !ok || rec.collector == nil {
		return nil, false
	}
	return rec.collector, true
}

func snapshot(rec *runRecord) *models.Run {
	run := rec.run
	if rec.run.Outcome != nil {
		out := *rec.run.Outcome
		run.Outcome = &out
	}
	return &run
}
