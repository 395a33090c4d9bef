package config

import (
	"time"

	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// Config represents a harness configuration file
type Config struct {
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"` // text or json
	Run       RunSection    `yaml:"run"`
	Trial     TrialSection  `yaml:"trial"`
	Timing    TimingSection `yaml:"timing"`
	Server    ServerSection `yaml:"server"`
}

// RunSection configures one search
type RunSection struct {
	Strategy        string `yaml:"strategy"` // sequential, threaded, multiprocessing
	TrialBudget     int    `yaml:"trial_budget"`
	StopThreshold   int    `yaml:"stop_threshold"`
	MaxWorkers      int    `yaml:"max_workers"`
	Seed            int64  `yaml:"seed"`
	StopGrace       string `yaml:"stop_grace"`       // e.g. "500ms"
	ShutdownTimeout string `yaml:"shutdown_timeout"` // e.g. "10s"
}

// TrialSection selects the trial function and its parameters
type TrialSection struct {
	Name               string `yaml:"name"`
	CategoryCount      int    `yaml:"category_count"`
	DrawsPerTrial      int    `yaml:"draws_per_trial"`
	CategoryOfInterest int    `yaml:"category_of_interest"`
}

// TimingSection configures the optional timing wrapper
type TimingSection struct {
	Enabled             bool `yaml:"enabled"`
	WarmupIterations    int  `yaml:"warmup_iterations"`
	RepeatCount         int  `yaml:"repeat_count"`
	IterationsPerRepeat int  `yaml:"iterations_per_repeat"`
	MeasureMemory       bool `yaml:"measure_memory"`
}

// ServerSection configures the daemon
type ServerSection struct {
	HTTPAddr  string `yaml:"http_addr"`
	GRPCAddr  string `yaml:"grpc_addr"`
	HistoryDB string `yaml:"history_db"` // empty disables history
}

// Default returns the reference configuration. Parsed files are layered on
// top of it, so any key a file omits keeps its default.
func Default() *Config {
	params := models.DefaultTrialParams()
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Run: RunSection{
			Strategy:      string(models.StrategyThreadPool),
			TrialBudget:   models.DefaultTrialBudget,
			StopThreshold: models.DefaultStopThreshold,
		},
		Trial: TrialSection{
			Name:               "dice",
			CategoryCount:      params.CategoryCount,
			DrawsPerTrial:      params.DrawsPerTrial,
			CategoryOfInterest: params.CategoryOfInterest,
		},
		Timing: TimingSection{
			WarmupIterations:    1,
			RepeatCount:         10,
			IterationsPerRepeat: 1,
		},
		Server: ServerSection{
			HTTPAddr: ":8080",
			GRPCAddr: ":50051",
		},
	}
}

// GetStopGrace parses the stop grace string; empty means zero
func (r *RunSection) GetStopGrace() (time.Duration, error) {
	return parseOptionalDuration(r.StopGrace)
}

// GetShutdownTimeout parses the shutdown timeout string; empty means zero
func (r *RunSection) GetShutdownTimeout() (time.Duration, error) {
	return parseOptionalDuration(r.ShutdownTimeout)
}

// RunConfig converts the run section. The section must have passed validation.
func (c *Config) RunConfig() models.RunConfig {
	grace, _ := c.Run.GetStopGrace()
	timeout, _ := c.Run.GetShutdownTimeout()
	return models.RunConfig{
		TrialBudget:     c.Run.TrialBudget,
		StopThreshold:   c.Run.StopThreshold,
		Strategy:        models.StrategyKind(c.Run.Strategy),
		MaxWorkers:      c.Run.MaxWorkers,
		Seed:            c.Run.Seed,
		StopGrace:       grace,
		ShutdownTimeout: timeout,
	}
}

// TrialParams converts the trial section
func (c *Config) TrialParams() models.TrialParams {
	return models.TrialParams{
		CategoryCount:      c.Trial.CategoryCount,
		DrawsPerTrial:      c.Trial.DrawsPerTrial,
		CategoryOfInterest: c.Trial.CategoryOfInterest,
	}
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
