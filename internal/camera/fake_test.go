package camera

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orb-project/orb-core/internal/port"
)

func TestFakeRunnerStreamsOnlyAfterStart(t *testing.T) {
	r := NewFakeRunner(KindIR, 4, 4)
	in := make(chan Command, 4)
	out := make(chan port.Output[Frame], 4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, in, out) }()

	r.PushFrame(make([]byte, 16))
	select {
	case <-out:
		t.Fatal("frame emitted before Start")
	case <-time.After(50 * time.Millisecond):
	}

	in <- Start
	r.PushFrame(make([]byte, 16))
	select {
	case o := <-out:
		require.Equal(t, KindIR, o.Value.Kind())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame after Start")
	}

	close(in)
	cancel()
	<-done

	log := r.Log()
	require.Equal(t, 1, log.FramesEmitted)
	require.Equal(t, []Command{Start}, log.Commands)
}

func TestFakeRunnerRecordsGainAndExposure(t *testing.T) {
	r := NewFakeRunner(KindIR, 4, 4)
	in := make(chan Command, 4)
	out := make(chan port.Output[Frame], 4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, in, out) }()

	in <- SetGain(2.5)
	in <- SetExposure(8000)
	close(in)
	cancel()
	<-done

	require.Equal(t, 2.5, r.Gain())
	require.Equal(t, uint32(8000), r.ExposureUS())
}
