package orb

import (
	"context"
	"testing"
	"time"

	"github.com/orb-project/orb-core/internal/agent"
	"github.com/orb-project/orb-core/internal/camera"
	"github.com/orb-project/orb-core/internal/estimate"
	"github.com/orb-project/orb-core/internal/mcu"
	"github.com/orb-project/orb-core/internal/port"
	"github.com/stretchr/testify/require"
)

func blockingRunner[I, V any]() agent.Runner[I, port.Output[V]] {
	return agent.RunnerFunc[I, port.Output[V]](func(ctx context.Context, in <-chan I, out chan<- port.Output[V]) error {
		<-ctx.Done()
		return nil
	})
}

func TestPendingQueuePopMatchesExactTimestampAndDropsStale(t *testing.T) {
	var q pendingQueue[camera.Frame]
	t0 := time.Now()
	t1 := t0.Add(time.Millisecond)
	t2 := t0.Add(2 * time.Millisecond)

	f0 := camera.New(camera.KindIR, 1, 1, []byte{1})
	f1 := camera.New(camera.KindIR, 1, 1, []byte{2})

	q.push(f0, t0)
	q.push(f1, t1)

	_, ok := q.pop(t2)
	require.False(t, ok, "no entry at t2, and both stale entries should be discarded")
	require.Equal(t, 0, q.len())
}

func TestPendingQueuePopReturnsExactMatch(t *testing.T) {
	var q pendingQueue[camera.Frame]
	t0 := time.Now()
	f0 := camera.New(camera.KindIR, 1, 1, []byte{9})
	q.push(f0, t0)

	got, ok := q.pop(t0)
	require.True(t, ok)
	require.Equal(t, f0.ID(), got.ID())
	require.Equal(t, 0, q.len())
}

func TestBuilderDefaultsToFakes(t *testing.T) {
	o := NewBuilder().Build()
	require.NotNil(t, o.Mcu)
	require.NotNil(t, o.Led)
	require.NotNil(t, o.Sound)
	require.NotNil(t, o.NetMonitor)
	require.NotNil(t, o.CpuMonitor)
	require.False(t, o.IrEyeCamera.IsEnabled())
	require.True(t, o.OnlyRgbNetFrames())
}

func TestSetIrWavelengthRoutesDurationTo740nmCommand(t *testing.T) {
	o := NewBuilder().Build()
	ctx := context.Background()

	require.NoError(t, o.SetIrWavelength(ctx, mcu.IrLed740))
	require.NoError(t, o.SetIrDuration(ctx, 500))

	fake := o.Mcu.(*mcu.Fake)
	found := false
	for _, cmd := range fake.Log().Commands {
		if d, ok := cmd.(mcu.SetIrLedDuration740nm); ok {
			require.Equal(t, uint16(500), d.Microseconds)
			found = true
		}
	}
	require.True(t, found, "expected a SetIrLedDuration740nm command")
}

func TestSetIrWavelengthNonLegacyUsesCommonDurationCommand(t *testing.T) {
	o := NewBuilder().Build()
	ctx := context.Background()

	require.NoError(t, o.SetIrWavelength(ctx, mcu.IrLed940))
	require.NoError(t, o.SetIrDuration(ctx, 300))

	fake := o.Mcu.(*mcu.Fake)
	found := false
	for _, cmd := range fake.Log().Commands {
		if d, ok := cmd.(mcu.SetIrLedDuration); ok {
			require.Equal(t, uint16(300), d.Microseconds)
			found = true
		}
	}
	require.True(t, found, "expected a SetIrLedDuration command")
}

func TestDispatchRgbFrameRoutesByOnlyRgbNetFrames(t *testing.T) {
	o := NewBuilder().Build()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, o.RgbNet.Enable(ctx, blockingRunner[port.Input[struct{}], estimate.RgbNetOutput]()))
	require.NoError(t, o.FaceIdentifier.Enable(ctx, blockingRunner[port.Input[struct{}], estimate.FaceIdentifierOutput]()))
	o.mu.Lock()
	o.rgbNetEnabled = true
	o.mu.Unlock()

	frame := camera.New(camera.KindRGB, 2, 2, []byte{1, 2, 3, 4})

	o.SetOnlyRgbNetFrames(true)
	o.DispatchRgbFrame(ctx, port.Output[camera.Frame]{Value: frame, SourceTS: frame.SourceTS()})
	require.Equal(t, 1, o.rgbNetFrames.len())

	_, ok := o.rgbNetFrames.pop(frame.SourceTS())
	require.True(t, ok)

	o.SetOnlyRgbNetFrames(false)
	frame2 := camera.New(camera.KindRGB, 2, 2, []byte{1, 2, 3, 4})
	o.DispatchRgbFrame(ctx, port.Output[camera.Frame]{Value: frame2, SourceTS: frame2.SourceTS()})
	require.Equal(t, 1, o.rgbNetFrames.len())
}
