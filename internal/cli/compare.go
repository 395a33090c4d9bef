package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/trial-harness/internal/harness"
	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/config"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	runFlags
	Strategies []string
}

// CompareResult holds one result per strategy, in run order
type CompareResult struct {
	Results []*RunResult `json:"results"`
}

func (r CompareResult) String() string {
	parts := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		parts = append(parts, res.String())
	}
	return strings.Join(parts, "\n\n")
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run the same search under each strategy in turn",
		Long: `Run the same search once per strategy with identical inputs and print
each result. The first failing strategy ends the comparison.

Example:
  trials compare --repeats 10
  trials compare --strategies sequential,threaded --budget 10000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, cmd)
		},
	}

	opts.register(cmd, false)
	defaults := make([]string, 0, len(models.StrategyKinds))
	for _, k := range models.StrategyKinds {
		defaults = append(defaults, string(k))
	}
	cmd.Flags().StringSliceVar(&opts.Strategies, "strategies", defaults, "strategies to compare, in order")

	return cmd
}

func runCompare(opts *CompareOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg := opts.loadedConfig()
	if err := opts.apply(cmd, cfg); err != nil {
		return reportError(out, err)
	}
	kinds := make([]models.StrategyKind, 0, len(opts.Strategies))
	for _, name := range opts.Strategies {
		kind, err := models.ParseStrategyKind(strings.TrimSpace(name))
		if err != nil {
			return reportError(out, WrapExitError(ExitCommandError, "invalid --strategies", err))
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return reportError(out, NewExitError(ExitCommandError, "no strategies to compare"))
	}
	t, err := trial.Resolve(cfg.Trial.Name)
	if err != nil {
		return reportError(out, runError("invalid trial", err))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := compareStrategies(ctx, opts.RootOptions, cfg, t, kinds)
	if err != nil {
		if len(results) > 0 && out.Format != "json" {
			fmt.Fprintln(out.Writer, CompareResult{Results: results})
		}
		return reportError(out, runError("compare failed", err))
	}
	return out.Success(CompareResult{Results: results})
}

// compareStrategies returns the results of the runs that succeeded, in order,
// along with the first error.
func compareStrategies(ctx context.Context, opts *RootOptions, cfg *config.Config, t trial.Trial, kinds []models.StrategyKind) ([]*RunResult, error) {
	runCfg := cfg.RunConfig()
	if !cfg.Timing.Enabled {
		params := cfg.TrialParams()
		h := harness.New(
			harness.WithLogger(logger.Default),
			harness.WithWorkerCommand(opts.workerCommand()),
		)
		outcomes, err := h.RunAll(ctx, runCfg, params, t, kinds...)
		results := make([]*RunResult, 0, len(outcomes))
		for _, o := range outcomes {
			res := &RunResult{Trial: t.Name, Params: params, Outcome: o}
			if o.CleanupErr != nil {
				res.Cleanup = o.CleanupErr.Error()
			}
			results = append(results, res)
		}
		return results, err
	}

	results := make([]*RunResult, 0, len(kinds))
	for _, kind := range kinds {
		c := runCfg
		c.Strategy = kind
		res, err := timedRun(ctx, opts, cfg, t, c)
		if err != nil {
			return results, fmt.Errorf("%s: %w", kind, err)
		}
		results = append(results, res)
	}
	return results, nil
}
