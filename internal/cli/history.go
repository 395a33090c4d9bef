package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/trial-harness/internal/store"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// HistoryResult lists recorded runs, newest first
type HistoryResult struct {
	Runs []*models.Run `json:"runs"`
}

func (r HistoryResult) String() string {
	if len(r.Runs) == 0 {
		return "No runs recorded."
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTRATEGY\tSTATUS\tMAX\tTRIALS\tENDED")
	for _, run := range r.Runs {
		maxResult, trials := "-", "-"
		if run.Outcome != nil {
			maxResult = fmt.Sprint(run.Outcome.MaxResult)
			trials = humanize.Comma(int64(run.Outcome.TrialsCompleted))
			if run.Outcome.StoppedEarly {
				trials += "*"
			}
		}
		ended := "-"
		if !run.EndedAt.IsZero() {
			ended = humanize.Time(run.EndedAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", run.ID, run.Config.Strategy, run.Status, maxResult, trials, ended)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List runs recorded by the daemon",
		Long: `List finished runs from the history database, newest first.
A trailing * on the trial count marks a run that stopped early.

Example:
  trials history --db ./runs.db --limit 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite history database (default from config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum number of runs to list (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	path := firstNonEmpty(opts.Database, opts.loadedConfig().Server.HistoryDB)
	if path == "" {
		return reportError(out, NewExitError(ExitCommandError, "no history database: set --db or server.history_db"))
	}
	// Open creates missing databases; listing should not.
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return reportError(out, WrapExitError(ExitCommandError, "history database not found", err))
	}

	st, err := store.Open(path)
	if err != nil {
		return reportError(out, WrapExitError(ExitCommandError, "failed to open history database", err))
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing history database", "error", closeErr)
		}
	}()

	runs, err := st.List(cmd.Context(), opts.Limit)
	if err != nil {
		return reportError(out, WrapExitError(ExitFailure, "failed to list runs", err))
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	return out.Success(HistoryResult{Runs: runs})
}
