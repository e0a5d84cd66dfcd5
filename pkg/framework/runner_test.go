package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	closed chan struct{}
}

func (c *closeRecorder) Close() error {
	close(c.closed)
	return nil
}

func TestRunnerStopsAll(t *testing.T) {
	failure := errors.New("failed")
	r := NewRunner().Go(
		NamedFunc("fail", func(context.Context) error { return failure }),
		NamedFunc("wait", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	require.Len(t, r.Runners, 2)
	require.Equal(t, "fail", r.Runners[0].(Named).Name())
	err := r.Wait()
	require.Error(t, err)
	require.Equal(t, "fail: failed", err.Error())
}

func TestRunnerStop(t *testing.T) {
	r := NewRunner()
	for i := 0; i < 3; i++ {
		r.Go(RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}))
	}
	r.Stop()
	require.NoError(t, r.Wait())
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Aggregate())
	errs.Add(nil, errors.New("a"), nil)
	require.EqualError(t, errs.Aggregate(), "a")
	errs.Add(errors.New("b"))
	require.EqualError(t, errs.Aggregate(), "Multiple errors:\na\nb")
}

func TestRunWithContextCloser(t *testing.T) {
	t.Run("cancel", func(t *testing.T) {
		c := &closeRecorder{closed: make(chan struct{})}
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		err := RunWithContextCloser(ctx, c, func() error {
			<-c.closed
			return nil
		})
		require.Equal(t, context.Canceled, err)
	})
	t.Run("exit", func(t *testing.T) {
		c := &closeRecorder{closed: make(chan struct{})}
		err := RunWithContextCloser(context.Background(), c, func() error {
			return errors.New("done")
		})
		require.EqualError(t, err, "done")
		<-c.closed
	})
}
