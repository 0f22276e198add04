package camera

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameMean(t *testing.T) {
	f := New(KindIR, 2, 2, []byte{0, 100, 200, 200})
	require.InDelta(t, 125.0, f.Mean(), 0.001)
}

func TestFrameSourceTSStableAcrossCopies(t *testing.T) {
	f := New(KindRGB, 1, 1, []byte{128})
	g := f
	require.Equal(t, f.SourceTS(), g.SourceTS())
	require.Equal(t, f.ID(), g.ID())
}

func TestRangeIsHalfOpen(t *testing.T) {
	r := Range{Min: 100, Max: 150}
	require.True(t, r.Contains(100))
	require.False(t, r.Contains(150))
	require.True(t, r.Contains(149.999))
}
