package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop is requested.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// NamedFunc wraps a func with a name.
func NamedFunc(name string, fn func(context.Context) error) Runnable {
	return NamedRun(name, RunFunc(fn))
}

type runResult struct {
	name string
	err  error
}

// Runner runs Runnables in goroutines. The first one returning stops the
// others.
type Runner struct {
	Context context.Context
	Runners []Runnable

	cancel   func()
	resultCh chan runResult
	exitCh   chan struct{}
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner derived from ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	r := &Runner{
		resultCh: make(chan runResult),
		exitCh:   make(chan struct{}),
	}
	r.Context, r.cancel = context.WithCancel(ctx)
	return r
}

// HandleSignals stops the runner on SIGINT or SIGTERM, and makes Wait
// give up on the second one.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v: stopping", sig)
		r.cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

func nameOf(runner Runnable, index int) string {
	if named, ok := runner.(Named); ok {
		return named.Name()
	}
	return strconv.Itoa(index)
}

// Go starts Runnables with the context of the runner.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		name := nameOf(runner, len(r.Runners))
		r.Runners = append(r.Runners, runner)
		go r.run(name, runner)
	}
	return r
}

func (r *Runner) run(name string, runner Runnable) {
	glog.V(4).Infof("%s started", name)
	err := runner.Run(r.Context)
	if err != nil && err != context.Canceled {
		glog.Errorf("%s failed: %v", name, err)
	} else {
		glog.V(4).Infof("%s stopped", name)
	}
	r.cancel()
	select {
	case r.resultCh <- runResult{name: name, err: err}:
	case <-r.exitCh:
	}
}

// Stop cancels all Runnables.
func (r *Runner) Stop() {
	r.cancel()
}

// Wait waits until all Runnables return, and aggregates their errors
// prefixed with the names. Cancellation is not an error.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.Runners {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case res := <-r.resultCh:
			if res.err != nil && res.err != context.Canceled {
				errs.Add(fmt.Errorf("%s: %w", res.name, res.err))
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs fn which doesn't accept a context. onCancel is
// called only when ctx is done first, and must make fn return.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if onCancel != nil {
		onCancel()
	}
	<-errCh
	return ctx.Err()
}

// RunWithContextCloser runs fn and closes closer when ctx is done to stop
// it. closer is always closed when fn returns.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	closed := false
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}
