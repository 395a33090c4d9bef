package cli

import (
	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/trial-harness/internal/worker"
)

// NewWorkerCommand creates the hidden command process pool workers run.
func NewWorkerCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           worker.Subcommand,
		Short:         "Answer trial requests on stdin/stdout (internal)",
		Hidden:        true,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := worker.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), nil); err != nil {
				return WrapExitError(ExitFailure, "worker", err)
			}
			return nil
		},
	}
}
