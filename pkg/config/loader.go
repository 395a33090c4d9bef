package config

import (
	"fmt"
	"os"

	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate re-checks a configuration after callers changed it
func (c *Config) Validate() error {
	return validateConfig(c)
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return invalid("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return invalid("invalid log_format: %s (must be text or json)", cfg.LogFormat)
	}

	if err := validateRun(&cfg.Run); err != nil {
		return fmt.Errorf("run validation failed: %w", err)
	}
	if err := validateTrial(&cfg.Trial); err != nil {
		return fmt.Errorf("trial validation failed: %w", err)
	}
	if err := validateTiming(&cfg.Timing); err != nil {
		return fmt.Errorf("timing validation failed: %w", err)
	}
	return nil
}

// validateRun validates the run section
func validateRun(r *RunSection) error {
	if _, err := models.ParseStrategyKind(r.Strategy); err != nil {
		return err
	}
	if r.TrialBudget <= 0 {
		return invalid("trial_budget must be positive, got %d", r.TrialBudget)
	}
	if r.MaxWorkers < 0 {
		return invalid("max_workers cannot be negative, got %d", r.MaxWorkers)
	}
	if d, err := r.GetStopGrace(); err != nil {
		return invalid("invalid stop_grace %s: %v", r.StopGrace, err)
	} else if d < 0 {
		return invalid("stop_grace cannot be negative, got %s", r.StopGrace)
	}
	if d, err := r.GetShutdownTimeout(); err != nil {
		return invalid("invalid shutdown_timeout %s: %v", r.ShutdownTimeout, err)
	} else if d < 0 {
		return invalid("shutdown_timeout cannot be negative, got %s", r.ShutdownTimeout)
	}
	return nil
}

// validateTrial validates the trial section
func validateTrial(t *TrialSection) error {
	if t.Name == "" {
		return invalid("trial name cannot be empty")
	}
	return models.TrialParams{
		CategoryCount:      t.CategoryCount,
		DrawsPerTrial:      t.DrawsPerTrial,
		CategoryOfInterest: t.CategoryOfInterest,
	}.Validate()
}

// validateTiming validates the timing section, enabled or not
func validateTiming(t *TimingSection) error {
	if t.WarmupIterations < 0 {
		return invalid("warmup_iterations cannot be negative, got %d", t.WarmupIterations)
	}
	if t.RepeatCount < 1 {
		return invalid("repeat_count must be at least 1, got %d", t.RepeatCount)
	}
	if t.IterationsPerRepeat < 1 {
		return invalid("iterations_per_repeat must be at least 1, got %d", t.IterationsPerRepeat)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{models.ErrInvalidConfiguration}, args...)...)
}
