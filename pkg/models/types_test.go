package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseStrategyKind(t *testing.T) {
	tests := []struct {
		name    string
		want    StrategyKind
		wantErr bool
	}{
		{"sequential", StrategySequential, false},
		{"threaded", StrategyThreadPool, false},
		{"multiprocessing", StrategyProcess, false},
		{"fork", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStrategyKind(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Fatalf("Expected ErrInvalidConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTrialParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  TrialParams
		wantErr bool
	}{
		{"reference workload", DefaultTrialParams(), false},
		{"single category", TrialParams{CategoryCount: 1, DrawsPerTrial: 1, CategoryOfInterest: 1}, false},
		{"zero categories", TrialParams{CategoryCount: 0, DrawsPerTrial: 10, CategoryOfInterest: 1}, true},
		{"zero draws", TrialParams{CategoryCount: 4, DrawsPerTrial: 0, CategoryOfInterest: 1}, true},
		{"category below range", TrialParams{CategoryCount: 4, DrawsPerTrial: 10, CategoryOfInterest: 0}, true},
		{"category above range", TrialParams{CategoryCount: 4, DrawsPerTrial: 10, CategoryOfInterest: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestTrialParamsInRange(t *testing.T) {
	p := DefaultTrialParams()
	if !p.InRange(0) || !p.InRange(231) {
		t.Error("Expected bounds to be in range")
	}
	if p.InRange(-1) || p.InRange(232) {
		t.Error("Expected values outside [0, draws] to be out of range")
	}
}

func TestRunConfigValidate(t *testing.T) {
	valid := DefaultRunConfig(StrategySequential)
	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected reference config to be valid, got %v", err)
	}

	negativeThreshold := valid
	negativeThreshold.StopThreshold = -5
	if err := negativeThreshold.Validate(); err != nil {
		t.Errorf("Any integer threshold should be valid, got %v", err)
	}

	mutations := map[string]func(*RunConfig){
		"zero budget":      func(c *RunConfig) { c.TrialBudget = 0 },
		"negative budget":  func(c *RunConfig) { c.TrialBudget = -1 },
		"unknown strategy": func(c *RunConfig) { c.Strategy = "gpu" },
		"negative workers": func(c *RunConfig) { c.MaxWorkers = -2 },
		"negative grace":   func(c *RunConfig) { c.StopGrace = -time.Second },
		"negative timeout": func(c *RunConfig) { c.ShutdownTimeout = -time.Second },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestRunStatusTerminal(t *testing.T) {
	for _, s := range []RunStatus{RunStatusCompleted, RunStatusFailed, RunStatusCancelled} {
		if !s.Terminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
	for _, s := range []RunStatus{RunStatusPending, RunStatusRunning} {
		if s.Terminal() {
			t.Errorf("Expected %s to be non-terminal", s)
		}
	}
}
