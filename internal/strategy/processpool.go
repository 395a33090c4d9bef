package strategy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/internal/worker"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/utils"
)

// killWait is how long a killed worker gets to be reaped
const killWait = 2 * time.Second

// ProcessPool runs trials in child processes, handing each child the next
// trial only once it has answered the previous one.
//
// Stop is destructive: children are killed, and a trial a child was working
// on is lost. It is never reported and cannot affect the run's maximum.
type ProcessPool struct {
	trial           trial.Trial
	maxWorkers      int
	seeds           utils.SeedSequence
	stopGrace       time.Duration
	shutdownTimeout time.Duration
	command         worker.Command
	log             *slog.Logger

	procs    []*process
	group    errgroup.Group
	started  atomic.Bool
	next     atomic.Int64
	done     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}

	dispatched atomic.Int64
	lost       atomic.Int64
}

// process is one child and the parent's ends of its pipes
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	client *worker.Client
	exited chan struct{}
	err    error
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *process) kill() {
	if p.cmd.Process == nil {
		return
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Debug("kill worker", "pid", p.pid(), "error", err)
	}
}

// NewProcessPool creates a child process pool strategy
func NewProcessPool(t trial.Trial, opts Options) *ProcessPool {
	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &ProcessPool{
		trial:           t,
		maxWorkers:      opts.MaxWorkers,
		seeds:           opts.Seeds,
		stopGrace:       opts.StopGrace,
		shutdownTimeout: timeout,
		command:         opts.Worker,
		log:             opts.Logger,
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
	}
}

func (p *ProcessPool) Kind() models.StrategyKind { return models.StrategyProcess }

// DrainsInFlightWork is false: Stop kills workers mid-trial.
func (p *ProcessPool) DrainsInFlightWork() bool { return false }

// Dispatched returns the number of trials handed to workers
func (p *ProcessPool) Dispatched() int64 { return p.dispatched.Load() }

// Lost returns the number of dispatched trials whose results were discarded by Stop
func (p *ProcessPool) Lost() int64 { return p.lost.Load() }

func (p *ProcessPool) Submit(ctx context.Context, budget int, params models.TrialParams) iter.Seq2[models.TrialResult, error] {
	return func(yield func(models.TrialResult, error) bool) {
		if !p.started.CompareAndSwap(false, true) {
			yield(0, errAlreadySubmitted)
			return
		}
		results, err := p.start(budget, params)
		if err != nil {
			yield(0, err)
			return
		}
		for {
			if err := ctx.Err(); err != nil {
				yield(0, err)
				return
			}
			select {
			case <-ctx.Done():
				yield(0, ctx.Err())
				return
			case o, ok := <-results:
				if !ok {
					return
				}
				if !yield(o.value, o.err) {
					return
				}
			}
		}
	}
}

func (p *ProcessPool) start(budget int, params models.TrialParams) (<-chan outcome, error) {
	cmd := p.command
	if cmd.Path == "" {
		self, err := worker.SelfCommand()
		if err != nil {
			close(p.done)
			return nil, fmt.Errorf("%w: %w", models.ErrTrialFailure, err)
		}
		cmd = self
	}

	workers := Options{MaxWorkers: p.maxWorkers}.workers(budget)
	for i := 0; i < workers; i++ {
		proc, err := spawn(cmd)
		if err != nil {
			close(p.done)
			return nil, fmt.Errorf("%w: start worker %d of %d: %w", models.ErrTrialFailure, i+1, workers, err)
		}
		p.procs = append(p.procs, proc)
	}
	p.log.Debug("process pool started", "workers", workers, "budget", budget, "trial", p.trial.Name)

	// Unbuffered: a driver hands over its result before claiming another trial
	results := make(chan outcome)
	for _, proc := range p.procs {
		p.group.Go(func() error {
			p.drive(proc, budget, params, results)
			return nil
		})
	}
	go func() {
		_ = p.group.Wait()
		close(results)
		close(p.done)
	}()
	return results, nil
}

func spawn(c worker.Command) (*process, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	// A plain pipe rather than StdoutPipe: Wait must not close the read end
	// under a driver that is still reading.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, err
	}
	stdoutW.Close()

	proc := &process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdoutR,
		client: worker.NewClient(stdoutR, stdin),
		exited: make(chan struct{}),
	}
	go func() {
		proc.err = cmd.Wait()
		close(proc.exited)
	}()
	return proc, nil
}

// drive feeds one worker until the budget is claimed, the pool stops, or the
// worker breaks.
func (p *ProcessPool) drive(proc *process, budget int, params models.TrialParams, results chan<- outcome) {
	for {
		if p.isStopped() {
			return
		}
		idx := int(p.next.Add(1) - 1)
		if idx >= budget {
			return
		}

		p.dispatched.Add(1)
		resp, err := proc.client.Call(worker.Request{
			Trial:  p.trial.Name,
			Index:  idx,
			Seed:   p.seeds.At(idx),
			Params: params,
		})
		if p.isStopped() {
			// Killed mid-trial or answered after the stop: discarded either way
			p.lost.Add(1)
			return
		}

		var o outcome
		switch {
		case err != nil:
			o.err = fmt.Errorf("%w: worker pid %d: %w", models.ErrTrialFailure, proc.pid(), err)
		case resp.Err != "":
			o.err = fmt.Errorf("%w: worker pid %d: %s", models.ErrTrialFailure, proc.pid(), resp.Err)
		default:
			o.value = resp.Result
		}

		select {
		case results <- o:
		case <-p.stopped:
			p.lost.Add(1)
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *ProcessPool) isStopped() bool {
	select {
	case <-p.stopped:
		return true
	default:
		return false
	}
}

// Stop discards all undelivered results and terminates the workers. With a
// stop grace configured, workers that finish their current trial within it
// are let go cleanly; the rest are killed.
func (p *ProcessPool) Stop(reason string) {
	p.stopOnce.Do(func() {
		close(p.stopped)
		if !p.started.Load() {
			return
		}
		p.log.Debug("stopping process pool", "reason", reason, "grace", p.stopGrace,
			"dispatched", p.dispatched.Load())

		if p.stopGrace > 0 && waitFor(p.done, p.stopGrace) {
			p.closeInputs()
			return
		}
		p.killAll()
	})
}

func (p *ProcessPool) killAll() {
	for _, proc := range p.procs {
		proc.kill()
	}
}

func (p *ProcessPool) closeInputs() {
	for _, proc := range p.procs {
		if err := proc.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			p.log.Debug("close worker input", "pid", proc.pid(), "error", err)
		}
	}
}

// Shutdown closes every worker's input so idle workers exit, then reaps them.
// Workers still alive after the shutdown timeout are killed and reported.
func (p *ProcessPool) Shutdown() error {
	if !p.started.Load() {
		return nil
	}
	deadline := time.Now().Add(p.shutdownTimeout)

	var errs []error
	if !waitFor(p.done, time.Until(deadline)) {
		p.killAll()
		if !waitFor(p.done, killWait) {
			errs = append(errs, fmt.Errorf("%w: process pool drivers did not return", models.ErrResourceCleanup))
		}
	}

	p.closeInputs()
	for _, proc := range p.procs {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		if !waitFor(proc.exited, remaining) {
			proc.kill()
			if !waitFor(proc.exited, killWait) {
				errs = append(errs, fmt.Errorf("%w: worker pid %d did not exit", models.ErrResourceCleanup, proc.pid()))
				continue
			}
			errs = append(errs, fmt.Errorf("%w: worker pid %d killed after %s shutdown timeout",
				models.ErrResourceCleanup, proc.pid(), p.shutdownTimeout))
		} else if proc.err != nil && !p.isStopped() {
			p.log.Warn("worker exited with error", "pid", proc.pid(), "error", proc.err)
		}
		proc.stdout.Close()
	}

	p.log.Debug("process pool shut down", "workers", len(p.procs),
		"dispatched", p.dispatched.Load(), "lost", p.lost.Load())
	return errors.Join(errs...)
}
