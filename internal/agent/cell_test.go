package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func echoRunner() Runner[int, int] {
	return RunnerFunc[int, int](func(ctx context.Context, in <-chan int, out chan<- int) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case v, ok := <-in:
				if !ok {
					return nil
				}
				out <- v * 2
			}
		}
	})
}

func TestEnableDisableRoundTrip(t *testing.T) {
	c := NewCell[int, int]("doubler", Task, 4)
	require.False(t, c.IsEnabled())

	require.NoError(t, c.Enable(context.Background(), echoRunner()))
	require.True(t, c.IsEnabled())

	require.NoError(t, c.Send(context.Background(), 21))
	outCh, ok := c.Output()
	require.True(t, ok)
	select {
	case v := <-outCh:
		require.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for output")
	}

	require.NoError(t, c.Disable())
	require.False(t, c.IsEnabled())
}

func TestDisableWhileDisabledPanics(t *testing.T) {
	c := NewCell[int, int]("doubler", Task, 1)
	require.Panics(t, func() { c.Disable() })
}

func TestSendNowErrorsWhenFull(t *testing.T) {
	c := NewCell[int, int]("blocker", Task, 1)
	blocking := RunnerFunc[int, int](func(ctx context.Context, in <-chan int, out chan<- int) error {
		<-ctx.Done()
		return nil
	})
	require.NoError(t, c.Enable(context.Background(), blocking))
	defer c.Disable()

	require.NoError(t, c.SendNow(1))
	require.ErrorIs(t, c.SendNow(2), ErrFull)
}

func TestTrySendDropsOnFullWithoutError(t *testing.T) {
	c := NewCell[int, int]("blocker", Task, 1)
	blocking := RunnerFunc[int, int](func(ctx context.Context, in <-chan int, out chan<- int) error {
		<-ctx.Done()
		return nil
	})
	require.NoError(t, c.Enable(context.Background(), blocking))
	defer c.Disable()

	require.True(t, c.TrySend(1))
	require.False(t, c.TrySend(2))
}

func TestSendOnDisabledCellErrors(t *testing.T) {
	c := NewCell[int, int]("never-enabled", Task, 1)
	require.ErrorIs(t, c.SendNow(1), ErrNotEnabled)
	require.ErrorIs(t, c.Send(context.Background(), 1), ErrNotEnabled)
}
