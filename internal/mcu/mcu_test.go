package mcu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeRecordsCommandsAndWavelength(t *testing.T) {
	f := NewFake()
	require.NoError(t, f.Send(context.Background(), SetIrLed{Wavelength: IrLed740}))
	require.NoError(t, f.Send(context.Background(), SetIrLedDuration740nm{Microseconds: 200}))
	require.Equal(t, IrLed740, f.Wavelength())
	require.Len(t, f.Log().Commands, 2)
}

func TestFakeBroadcastsGps(t *testing.T) {
	f := NewFake()
	f.PushGps("$GPGGA,fake")
	select {
	case b := <-f.Broadcasts():
		require.Equal(t, "$GPGGA,fake", b.NMEA)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

type failingMcu struct{ err error }

func (f *failingMcu) Send(ctx context.Context, cmd Command) error    { return f.err }
func (f *failingMcu) Broadcasts() <-chan GpsBroadcast                { return nil }
func (f *failingMcu) Close() error                                   { return nil }

func TestGuardedMcuTripsOpenAfterConsecutiveFailures(t *testing.T) {
	inner := &failingMcu{err: errors.New("link down")}
	g := NewGuardedMcu(inner, 2, time.Hour)

	require.Error(t, g.Send(context.Background(), SetFrameRate{Hertz: 30}))
	require.Error(t, g.Send(context.Background(), SetFrameRate{Hertz: 30}))

	err := g.Send(context.Background(), SetFrameRate{Hertz: 30})
	require.ErrorIs(t, err, ErrLinkOpen)
}
