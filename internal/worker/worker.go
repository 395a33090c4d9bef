// Package worker runs trials inside a child process on behalf of the process
// pool strategy. The parent and the child exchange length-prefixed protowire
// messages over the child's stdin and stdout; one request is outstanding per
// child at any time.
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
)

// Subcommand is the CLI verb that starts the worker loop.
const Subcommand = "worker"

// Command describes how to start a worker process.
type Command struct {
	Path string
	Args []string
	// Env is appended to the parent's environment.
	Env []string
}

// SelfCommand re-executes the running binary as a worker.
func SelfCommand() (Command, error) {
	exe, err := os.Executable()
	if err != nil {
		return Command{}, fmt.Errorf("resolve executable: %w", err)
	}
	return Command{Path: exe, Args: []string{Subcommand}}, nil
}

// LookupFunc resolves a trial by name
type LookupFunc func(name string) (trial.Trial, bool)

// Serve answers requests from r on w until r reaches EOF or ctx is done.
// Trial failures are reported back to the parent; only transport errors end
// the loop with an error.
func Serve(ctx context.Context, r io.Reader, w io.Writer, lookup LookupFunc) error {
	if lookup == nil {
		lookup = trial.Lookup
	}
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	served := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := ReadFrame(br)
		if errors.Is(err, io.EOF) {
			logger.Debug("worker input closed", "pid", os.Getpid(), "served", served)
			return nil
		}
		if err != nil {
			return err
		}

		req, err := DecodeRequest(frame)
		if err != nil {
			return err
		}

		resp := handle(req, lookup)
		if err := WriteFrame(bw, AppendResponse(nil, resp)); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("flush response: %w", err)
		}
		served++
	}
}

func handle(req Request, lookup LookupFunc) Response {
	t, ok := lookup(req.Trial)
	if !ok {
		return Response{Index: req.Index, Err: fmt.Sprintf("unknown trial %q", req.Trial)}
	}
	result, err := trial.Invoke(t, req.Params, trial.Invocation{Index: req.Index, Seed: req.Seed})
	if err != nil {
		return Response{Index: req.Index, Err: err.Error()}
	}
	return Response{Index: req.Index, Result: result}
}

// Client is the parent side of one worker's pipes.
type Client struct {
	r *bufio.Reader
	w *bufio.Writer
}

// NewClient wraps the worker's stdout (r) and stdin (w)
func NewClient(r io.Reader, w io.Writer) *Client {
	return &Client{r: bufio.NewReader(r), w: bufio.NewWriter(w)}
}

// Call sends req and waits for the matching response.
func (c *Client) Call(req Request) (Response, error) {
	if err := WriteFrame(c.w, AppendRequest(nil, req)); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	frame, err := ReadFrame(c.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Response{}, fmt.Errorf("receive response: %w", err)
	}
	resp, err := DecodeResponse(frame)
	if err != nil {
		return Response{}, err
	}
	if resp.Index != req.Index {
		return Response{}, fmt.Errorf("response for index %d, expected %d", resp.Index, req.Index)
	}
	return resp, nil
}
