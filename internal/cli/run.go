package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/trial-harness/internal/harness"
	"github.com/GoSim-25-26J-441/trial-harness/internal/timing"
	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/config"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	runFlags
}

// RunResult is the output of one run
type RunResult struct {
	Trial   string             `json:"trial"`
	Params  models.TrialParams `json:"params"`
	Outcome *models.RunOutcome `json:"outcome"`
	Cleanup string             `json:"cleanup_error,omitempty"`
	Timing  *timing.Report     `json:"timing,omitempty"`
}

func (r RunResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Maximum number of %d's rolled: %d\n", r.Params.CategoryOfInterest, r.Outcome.MaxResult)
	fmt.Fprintf(&b, "Strategy: %s, trials: %s", r.Outcome.Strategy, humanize.Comma(int64(r.Outcome.TrialsCompleted)))
	if r.Outcome.StoppedEarly {
		b.WriteString(" (stopped early)")
	}
	fmt.Fprintf(&b, ", duration: %s", r.Outcome.Duration)
	if r.Cleanup != "" {
		fmt.Fprintf(&b, "\nWarning: %s", r.Cleanup)
	}
	if r.Timing != nil {
		fmt.Fprintf(&b, "\n%s", r.Timing)
	}
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one bounded search",
		Long: `Run trials until the budget is spent or a result exceeds the stop
threshold, then print the maximum result.

Flags override the configuration file only when set.

Example:
  trials run --strategy threaded --budget 100000 --threshold 177
  trials run -c config/config.yaml --repeats 10 --memory`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, cmd)
		},
	}

	opts.register(cmd, true)
	return cmd
}

func runSearch(opts *RunOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg := opts.loadedConfig()
	if err := opts.apply(cmd, cfg); err != nil {
		return reportError(out, err)
	}
	t, err := trial.Resolve(cfg.Trial.Name)
	if err != nil {
		return reportError(out, runError("invalid trial", err))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := timedRun(ctx, opts.RootOptions, cfg, t, cfg.RunConfig())
	if err != nil {
		return reportError(out, runError("run failed", err))
	}
	return out.Success(result)
}

// timedRun runs the harness once, wrapped in the timing instrument when the
// configuration enables it.
func timedRun(ctx context.Context, opts *RootOptions, cfg *config.Config, t trial.Trial, runCfg models.RunConfig) (*RunResult, error) {
	params := cfg.TrialParams()
	h := harness.New(
		harness.WithLogger(logger.Default),
		harness.WithWorkerCommand(opts.workerCommand()),
	)
	run := func(ctx context.Context) (*models.RunOutcome, error) {
		return h.Run(ctx, runCfg, params, t)
	}

	result := &RunResult{Trial: t.Name, Params: params}
	if cfg.Timing.Enabled {
		run = timing.Wrap(string(runCfg.Strategy), run, timingConfig(cfg), func(r timing.Report) {
			result.Timing = &r
		})
	}

	outcome, err := run(ctx)
	if err != nil {
		return nil, err
	}
	result.Outcome = outcome
	if outcome.CleanupErr != nil {
		result.Cleanup = outcome.CleanupErr.Error()
	}
	return result, nil
}

// reportError emits a JSON error envelope when JSON output is selected and
// returns err for the exit code.
func reportError(out *OutputFormatter, err error) error {
	if out.Format == "json" {
		_ = out.Error(err, nil)
	}
	return err
}
