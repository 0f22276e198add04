package sound

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeRecordsPlayCalls(t *testing.T) {
	f := &Fake{}
	require.NoError(t, f.Play(context.Background(), MelodyIrisDetected, 1))
	require.Equal(t, []FakeCall{{Melody: MelodyIrisDetected, Priority: 1}}, f.Calls)
}
