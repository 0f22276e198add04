package led

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeRecordsDriveCalls(t *testing.T) {
	f := &Fake{}
	require.NoError(t, f.Drive(context.Background(), Progress, 0.5))
	require.NoError(t, f.Drive(context.Background(), Success, 1.0))
	require.Equal(t, []FakeCall{{Pattern: Progress, Progress: 0.5}, {Pattern: Success, Progress: 1.0}}, f.Calls)
}
