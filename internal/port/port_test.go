package port

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChainPreservesSourceTS(t *testing.T) {
	frame := New("frame-bytes")
	time.Sleep(time.Millisecond)
	estimate := Chain(frame, 0.92)

	require.Equal(t, frame.SourceTS, estimate.SourceTS)
	require.Equal(t, 0.92, estimate.Value)
}

func TestChainInputPreservesSourceTS(t *testing.T) {
	frame := New("frame-bytes")
	input := ChainInput(frame, "gain=3")

	require.Equal(t, frame.SourceTS, input.SourceTS)
}
