package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/trial-harness/internal/timing"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/config"
)

// runFlags are the run and trial settings shared by run and compare. A flag
// only overrides the configuration file when it was set explicitly.
type runFlags struct {
	Strategy        string
	TrialBudget     int
	StopThreshold   int
	MaxWorkers      int
	Seed            int64
	StopGrace       time.Duration
	ShutdownTimeout time.Duration

	Trial              string
	CategoryCount      int
	DrawsPerTrial      int
	CategoryOfInterest int

	Timing     bool
	Warmup     int
	Repeats    int
	Iterations int
	Memory     bool
}

func (f *runFlags) register(cmd *cobra.Command, withStrategy bool) {
	defaults := config.Default()
	fs := cmd.Flags()

	if withStrategy {
		fs.StringVarP(&f.Strategy, "strategy", "s", defaults.Run.Strategy, "execution strategy (sequential|threaded|multiprocessing)")
	}
	fs.IntVarP(&f.TrialBudget, "budget", "n", defaults.Run.TrialBudget, "maximum number of trials")
	fs.IntVarP(&f.StopThreshold, "threshold", "t", defaults.Run.StopThreshold, "stop at the first result strictly greater than this")
	fs.IntVarP(&f.MaxWorkers, "max-workers", "w", 0, "pool size for threaded and multiprocessing (0 = CPU count)")
	fs.Int64Var(&f.Seed, "seed", 0, "base seed for per-trial seeds (0 = from the clock)")
	fs.DurationVar(&f.StopGrace, "stop-grace", 0, "how long stopped worker processes may finish in-flight trials")
	fs.DurationVar(&f.ShutdownTimeout, "shutdown-timeout", 0, "bound on joining pool workers (0 = strategy default)")

	fs.StringVar(&f.Trial, "trial", defaults.Trial.Name, "registered trial name")
	fs.IntVar(&f.CategoryCount, "categories", defaults.Trial.CategoryCount, "number of equally likely categories per draw")
	fs.IntVar(&f.DrawsPerTrial, "draws", defaults.Trial.DrawsPerTrial, "draws per trial")
	fs.IntVar(&f.CategoryOfInterest, "interest", defaults.Trial.CategoryOfInterest, "category counted by each trial (1-based)")

	fs.BoolVar(&f.Timing, "timing", false, "time the run with warmup and repeats")
	fs.IntVar(&f.Warmup, "warmup", defaults.Timing.WarmupIterations, "untimed warmup runs (implies --timing)")
	fs.IntVar(&f.Repeats, "repeats", defaults.Timing.RepeatCount, "timed repeats (implies --timing)")
	fs.IntVar(&f.Iterations, "iterations", defaults.Timing.IterationsPerRepeat, "runs per timed repeat (implies --timing)")
	fs.BoolVar(&f.Memory, "memory", false, "measure resident memory across one extra run (implies --timing)")
}

// apply layers the explicitly set flags over cfg and validates the result.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("strategy", func() { cfg.Run.Strategy = f.Strategy })
	set("budget", func() { cfg.Run.TrialBudget = f.TrialBudget })
	set("threshold", func() { cfg.Run.StopThreshold = f.StopThreshold })
	set("max-workers", func() { cfg.Run.MaxWorkers = f.MaxWorkers })
	set("seed", func() { cfg.Run.Seed = f.Seed })
	set("stop-grace", func() { cfg.Run.StopGrace = f.StopGrace.String() })
	set("shutdown-timeout", func() { cfg.Run.ShutdownTimeout = f.ShutdownTimeout.String() })

	set("trial", func() { cfg.Trial.Name = f.Trial })
	set("categories", func() { cfg.Trial.CategoryCount = f.CategoryCount })
	set("draws", func() { cfg.Trial.DrawsPerTrial = f.DrawsPerTrial })
	set("interest", func() { cfg.Trial.CategoryOfInterest = f.CategoryOfInterest })

	set("timing", func() { cfg.Timing.Enabled = f.Timing })
	set("warmup", func() { cfg.Timing.WarmupIterations, cfg.Timing.Enabled = f.Warmup, true })
	set("repeats", func() { cfg.Timing.RepeatCount, cfg.Timing.Enabled = f.Repeats, true })
	set("iterations", func() { cfg.Timing.IterationsPerRepeat, cfg.Timing.Enabled = f.Iterations, true })
	set("memory", func() { cfg.Timing.MeasureMemory, cfg.Timing.Enabled = f.Memory, true })

	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return nil
}

func timingConfig(cfg *config.Config) timing.Config {
	return timing.Config{
		WarmupIterations:    cfg.Timing.WarmupIterations,
		RepeatCount:         cfg.Timing.RepeatCount,
		IterationsPerRepeat: cfg.Timing.IterationsPerRepeat,
		MeasureMemory:       cfg.Timing.MeasureMemory,
	}
}
