package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/internal/worker"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

const workerEnv = "CLI_TEST_WORKER"

func TestMain(m *testing.M) {
	trial.Register("scenario", trial.Sequence(10, 50, 178, 90))
	trial.Register("failing", func(models.TrialParams, trial.Invocation) (models.TrialResult, error) {
		return 0, errors.New("sensor offline")
	})
	if os.Getenv(workerEnv) == "1" {
		if err := worker.Serve(context.Background(), os.Stdin, os.Stdout, nil); err != nil {
			fmt.Fprintln(os.Stderr, "worker:", err)
			os.Exit(3)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// execute runs the command tree with args, starting process pool workers
// from the test binary.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	exe, exeErr := os.Executable()
	if exeErr != nil {
		t.Fatalf("resolve test binary: %v", exeErr)
	}
	opts := &RootOptions{
		WorkerCommand: &worker.Command{Path: exe, Args: []string{"-test.run=^$"}, Env: []string{workerEnv + "=1"}},
	}

	var outBuf, errBuf bytes.Buffer
	cmd := newRootCommand(opts)
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(ctx)
	return outBuf.String(), errBuf.String(), err
}
