package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/trial-harness/internal/searchd"
	"github.com/GoSim-25-26J-441/trial-harness/internal/store"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	HTTPAddr  string
	GRPCAddr  string
	HistoryDB string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve runs over HTTP and gRPC",
		Long: `Start the run daemon. Runs are created, inspected, and stopped over
HTTP and gRPC; finished runs are appended to the history database when one
is configured.

Example:
  trials serve --http-addr :8080 --grpc-addr :50051 --history-db ./runs.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.HTTPAddr, "http-addr", "", "HTTP listen address (default from config, :8080)")
	cmd.Flags().StringVar(&opts.GRPCAddr, "grpc-addr", "", "gRPC listen address (default from config, :50051)")
	cmd.Flags().StringVar(&opts.HistoryDB, "history-db", "", "SQLite history database (empty disables history)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.loadedConfig()
	httpAddr := firstNonEmpty(opts.HTTPAddr, cfg.Server.HTTPAddr)
	grpcAddr := firstNonEmpty(opts.GRPCAddr, cfg.Server.GRPCAddr)
	historyDB := firstNonEmpty(opts.HistoryDB, cfg.Server.HistoryDB)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := searchd.NewNotifier()
	execOpts := []searchd.ExecutorOption{
		searchd.WithLogger(logger.Default),
		searchd.WithNotifier(notifier),
		searchd.WithWorkerCommand(opts.workerCommand()),
	}
	if historyDB != "" {
		st, err := store.Open(historyDB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing history database", "error", closeErr)
			}
		}()
		execOpts = append(execOpts, searchd.WithHistory(st))
		logger.Info("history enabled", "path", historyDB)
	}

	runs := searchd.NewRunStore()
	executor := searchd.NewRunExecutor(runs, execOpts...)

	grpcServer := grpc.NewServer()
	searchd.RegisterHarnessServiceServer(grpcServer, searchd.NewHarnessGRPCServer(runs, executor))

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen for gRPC", err)
	}
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		grpcLis.Close()
		return WrapExitError(ExitCommandError, "failed to listen for HTTP", err)
	}

	httpSrv := &http.Server{
		Handler:           searchd.NewHTTPServer(runs, executor).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "addr", grpcLis.Addr().String())
		if err := grpcServer.Serve(grpcLis); err != nil {
			serveErr <- err
		}
	}()
	go func() {
		logger.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var failed error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case failed = <-serveErr:
		logger.Error("server error", "error", failed)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	if err := executor.Shutdown(shutdownCtx); err != nil {
		logger.Warn("runs still active at shutdown", "error", err)
	}
	notifier.Wait()

	if failed != nil {
		return WrapExitError(ExitFailure, "server error", failed)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
