package orb

import (
	"context"
	"testing"

	"github.com/orb-project/orb-core/internal/camera"
	"github.com/stretchr/testify/require"
)

func TestStartAutoFocusSetsRgbNetEstimateFlag(t *testing.T) {
	o := NewBuilder().Build()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, o.StartAutoFocus(ctx, NewFakeAutoFocusRunner(1.2), true))
	o.mu.Lock()
	useRgbNet := o.irAutoFocusUseRgbNetEstimate
	o.mu.Unlock()
	require.True(t, useRgbNet)
	require.True(t, o.AutoFocus.IsEnabled())

	require.NoError(t, o.StopAutoFocus())
	require.False(t, o.AutoFocus.IsEnabled())
}

func TestSetFisheyeSkipsDisabledAgents(t *testing.T) {
	o := NewBuilder().Build()
	ctx := context.Background()

	require.NoError(t, o.SetFisheye(ctx, 1080, 1080, true))
}

func TestSetFisheyeForwardsToEnabledEyeTrackerAndRgbCamera(t *testing.T) {
	o := NewBuilder().Build()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eyeTrackerRunner := NewFakeEyeTrackerRunner()
	require.NoError(t, o.StartEyeTracker(ctx, eyeTrackerRunner))

	rgbRunner := camera.NewFakeRunner(camera.KindRGB, 1080, 1080)
	require.NoError(t, o.RgbCamera.Enable(ctx, rgbRunner))

	require.NoError(t, o.SetFisheye(ctx, 1080, 1080, true))
	require.NoError(t, o.RgbCamera.Disable())

	width, height, undistort := rgbRunner.FisheyeConfig()
	require.Equal(t, uint32(1080), width)
	require.Equal(t, uint32(1080), height)
	require.True(t, undistort)
}

func TestEnableMirrorAndDistanceLifecycle(t *testing.T) {
	o := NewBuilder().Build()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, o.EnableMirror(ctx, NewFakeMirrorRunner()))
	require.NoError(t, o.EnableDistance(ctx, NewFakeDistanceRunner()))
	require.True(t, o.Mirror.IsEnabled())
	require.True(t, o.Distance.IsEnabled())

	require.NoError(t, o.DisableMirror())
	require.NoError(t, o.DisableDistance())
	require.False(t, o.Mirror.IsEnabled())
	require.False(t, o.Distance.IsEnabled())
}

func TestEnableEyePidLifecycle(t *testing.T) {
	o := NewBuilder().Build()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, o.EnableEyePid(ctx, NewFakeEyePidRunner()))
	require.True(t, o.EyePid.IsEnabled())
	require.NoError(t, o.DisableEyePid())
	require.False(t, o.EyePid.IsEnabled())
}
