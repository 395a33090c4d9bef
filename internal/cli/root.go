// Package cli implements the trials command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/trial-harness/internal/worker"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/config"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	LogLevel  string
	LogFormat string
	Config    string

	// WorkerCommand overrides how process pool workers are started (for testing).
	// If nil, the running binary is re-executed with the worker subcommand.
	WorkerCommand *worker.Command

	config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the trials CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trials",
		Short: "Bounded parallel search with early termination",
		Long: `Run a randomized trial up to a fixed budget and stop as soon as one
result exceeds the stop threshold.

Trials run sequentially, on a pool of goroutines, or on a pool of worker
processes; every strategy reports the same maximum for the same inputs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json); overrides the config file")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to a YAML configuration file")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCompareCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewWorkerCommand(opts))

	return cmd
}

// setup loads the configuration file and installs the default logger.
// Logs go to the command's stderr so results on stdout stay parseable.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.Config != "" {
		loaded, err := config.LoadConfig(o.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	o.config = cfg

	level := cfg.LogLevel
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	if o.Verbose {
		level = "debug"
	}
	format := cfg.LogFormat
	if o.LogFormat != "" {
		format = o.LogFormat
	}
	logger.SetDefault(logger.NewFormat(format, level, cmd.ErrOrStderr()))
	return nil
}

// loadedConfig returns a copy of the configuration setup loaded, so commands
// can layer their flags on top without touching the shared value.
func (o *RootOptions) loadedConfig() *config.Config {
	if o.config == nil {
		return config.Default()
	}
	cfg := *o.config
	return &cfg
}

func (o *RootOptions) workerCommand() worker.Command {
	if o.WorkerCommand != nil {
		return *o.WorkerCommand
	}
	return worker.Command{}
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
