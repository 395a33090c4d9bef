// Package timing wraps a function with repeated timed invocations. The
// wrapped function keeps its signature, so callers can time a harness run
// without the harness knowing.
package timing

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/process"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// Config controls how many times the wrapped function runs
type Config struct {
	WarmupIterations    int  `json:"warmup_iterations" yaml:"warmup_iterations"`
	RepeatCount         int  `json:"repeat_count" yaml:"repeat_count"`
	IterationsPerRepeat int  `json:"iterations_per_repeat" yaml:"iterations_per_repeat"`
	MeasureMemory       bool `json:"measure_memory" yaml:"measure_memory"`
}

// DefaultConfig is one warmup call followed by ten single-call repeats.
func DefaultConfig() Config {
	return Config{
		WarmupIterations:    1,
		RepeatCount:         10,
		IterationsPerRepeat: 1,
	}
}

// Validate checks the counts
func (c Config) Validate() error {
	if c.WarmupIterations < 0 {
		return fmt.Errorf("%w: warmup_iterations cannot be negative", models.ErrInvalidConfiguration)
	}
	if c.RepeatCount < 1 {
		return fmt.Errorf("%w: repeat_count must be at least 1, got %d", models.ErrInvalidConfiguration, c.RepeatCount)
	}
	if c.IterationsPerRepeat < 1 {
		return fmt.Errorf("%w: iterations_per_repeat must be at least 1, got %d", models.ErrInvalidConfiguration, c.IterationsPerRepeat)
	}
	return nil
}

// Invocations is the total number of calls one wrapped call makes
func (c Config) Invocations() int {
	n := c.WarmupIterations + c.RepeatCount*c.IterationsPerRepeat
	if c.MeasureMemory {
		n++
	}
	return n
}

// Report describes one timed call
type Report struct {
	Name   string `json:"name"`
	Config Config `json:"config"`
	// Warmup is the total time of the warmup calls; it is excluded from the statistics.
	Warmup time.Duration `json:"warmup"`
	// Repeats holds the total time of each repeat's IterationsPerRepeat calls.
	Repeats []time.Duration `json:"repeats"`
	Min     time.Duration   `json:"min"`
	Max     time.Duration   `json:"max"`
	Mean    time.Duration   `json:"mean"`
	StdDev  time.Duration   `json:"stddev"`
	// MemoryDelta is the change in resident set size across the memory probe call.
	MemoryDelta    int64 `json:"memory_delta"`
	MemoryMeasured bool  `json:"memory_measured"`
}

// String renders the report the way the CLI prints it
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s calls (%d warmup, %d repeats x %d)\n",
		r.Name, humanize.Comma(int64(r.Config.Invocations())),
		r.Config.WarmupIterations, r.Config.RepeatCount, r.Config.IterationsPerRepeat)
	if r.Config.WarmupIterations > 0 {
		fmt.Fprintf(&b, "  warmup: %s\n", r.Warmup)
	}
	if r.MemoryMeasured {
		sign := "+"
		delta := r.MemoryDelta
		if delta < 0 {
			sign, delta = "-", -delta
		}
		fmt.Fprintf(&b, "  memory: %s%s\n", sign, humanize.IBytes(uint64(delta)))
	}
	fmt.Fprintf(&b, "  min %s, max %s, mean %s, stddev %s", r.Min, r.Max, r.Mean, r.StdDev)
	return b.String()
}

// Sink receives the report of every wrapped call
type Sink func(Report)

// Wrap returns fn instrumented according to cfg. Each call of the returned
// function runs the warmup calls, the optional memory probe, and every
// repeat, then returns the last call's result. The first error ends the
// call and no report is delivered. cfg must be valid.
func Wrap[T any](name string, fn func(context.Context) (T, error), cfg Config, sink Sink) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var (
			last T
			err  error
		)
		call := func(n int) (time.Duration, error) {
			start := time.Now()
			for i := 0; i < n; i++ {
				if last, err = fn(ctx); err != nil {
					return 0, err
				}
			}
			return time.Since(start), nil
		}

		report := Report{Name: name, Config: cfg}
		if cfg.WarmupIterations > 0 {
			if report.Warmup, err = call(cfg.WarmupIterations); err != nil {
				return last, err
			}
		}

		if cfg.MeasureMemory {
			if report.MemoryDelta, err = probeMemory(ctx, func() error {
				_, err := call(1)
				return err
			}); err != nil {
				return last, err
			}
			report.MemoryMeasured = true
		}

		report.Repeats = make([]time.Duration, 0, cfg.RepeatCount)
		for i := 0; i < cfg.RepeatCount; i++ {
			d, err := call(cfg.IterationsPerRepeat)
			if err != nil {
				return last, err
			}
			report.Repeats = append(report.Repeats, d)
		}
		summarize(&report)

		if sink != nil {
			sink(report)
		}
		return last, nil
	}
}

func summarize(r *Report) {
	if len(r.Repeats) == 0 {
		return
	}
	xs := make([]float64, len(r.Repeats))
	for i, d := range r.Repeats {
		xs[i] = float64(d)
	}
	r.Min = time.Duration(floats.Min(xs))
	r.Max = time.Duration(floats.Max(xs))
	mean, std := stat.MeanStdDev(xs, nil)
	r.Mean = time.Duration(mean)
	if len(xs) > 1 {
		r.StdDev = time.Duration(std)
	}
}

// probeMemory runs fn with the collector paused and reports the change in
// this process's resident set size.
func probeMemory(ctx context.Context, fn func() error) (int64, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("inspect process: %w", err)
	}
	rss := func() (int64, error) {
		info, err := proc.MemoryInfoWithContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("read memory info: %w", err)
		}
		return int64(info.RSS), nil
	}

	runtime.GC()
	prev := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(prev)

	before, err := rss()
	if err != nil {
		return 0, err
	}
	if err := fn(); err != nil {
		return 0, err
	}
	after, err := rss()
	if err != nil {
		return 0, err
	}
	return after - before, nil
}
