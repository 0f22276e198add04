package biometric

import (
	"context"
	"testing"
	"time"

	"github.com/orb-project/orb-core/internal/broker"
	"github.com/orb-project/orb-core/internal/camera"
	"github.com/orb-project/orb-core/internal/estimate"
	"github.com/orb-project/orb-core/internal/led"
	"github.com/orb-project/orb-core/internal/mcu"
	"github.com/orb-project/orb-core/internal/orb"
	"github.com/orb-project/orb-core/internal/port"
	"github.com/orb-project/orb-core/internal/telemetry"
	"github.com/stretchr/testify/require"
)

func newTestPlan(targetLeft bool) *Plan {
	p := NewPlan([]Wavelength{{IrLed: mcu.IrLed940, Duration: 100}}, 0, WithRecorder(&telemetry.Fake{}))
	p.targetLeftEye = targetLeft
	p.objectiveIndex = 1
	p.totalObjectives = 2
	return p
}

func sidePtr(v int) *int { return &v }

func TestHandleIrNetSkipsOnPerceivedSideMismatch(t *testing.T) {
	p := newTestPlan(true)
	o := orb.NewBuilder().Build()
	frame := camera.New(camera.KindIR, 4, 4, make([]byte, 16))

	flow := p.HandleIrNet(context.Background(), o, port.Output[estimate.IrNetOutput]{
		Value: estimate.IrNetOutput{Score: 0.9, Sharpness: 2, PerceivedSide: sidePtr(0)},
	}, &frame)

	require.Equal(t, broker.Continue, flow)
	require.Nil(t, p.leftIr)
}

func TestHandleIrNetAcceptsSharpMatchingFrame(t *testing.T) {
	p := newTestPlan(true)
	o := orb.NewBuilder().Build()
	pixels := make([]byte, 16)
	for i := range pixels {
		pixels[i] = 100
	}
	frame := camera.New(camera.KindIR, 4, 4, pixels)

	flow := p.HandleIrNet(context.Background(), o, port.Output[estimate.IrNetOutput]{
		Value: estimate.IrNetOutput{Score: IrisScoreMin + 0.1, Sharpness: 2, PerceivedSide: sidePtr(1)},
	}, &frame)

	require.Equal(t, broker.Continue, flow)
	require.NotNil(t, p.leftIr)
	require.Nil(t, p.rightIr)
}

func TestHandleIrNetRejectsLowScore(t *testing.T) {
	p := newTestPlan(false)
	o := orb.NewBuilder().Build()
	frame := camera.New(camera.KindIR, 4, 4, make([]byte, 16))

	p.HandleIrNet(context.Background(), o, port.Output[estimate.IrNetOutput]{
		Value: estimate.IrNetOutput{Score: IrisScoreMin - 0.1, Sharpness: 2, PerceivedSide: sidePtr(0)},
	}, &frame)

	require.Nil(t, p.rightIr)
}

func TestHandleRgbNetRejectsMalformedBbox(t *testing.T) {
	p := newTestPlan(true)
	o := orb.NewBuilder().Build()
	frame := camera.New(camera.KindRGB, 4, 4, make([]byte, 16))

	p.HandleRgbNet(context.Background(), o, port.Output[estimate.RgbNetOutput]{
		Value: estimate.RgbNetOutput{Primary: &estimate.PrimaryPrediction{
			Bbox: estimate.Rectangle{Left: 10, Top: 10, Right: 5, Bottom: 5},
		}},
	}, &frame)

	require.Nil(t, p.leftRgb)
}

func TestHandleRgbNetAcceptsWellFormedBbox(t *testing.T) {
	p := newTestPlan(true)
	o := orb.NewBuilder().Build()
	frame := camera.New(camera.KindRGB, 4, 4, make([]byte, 16))

	p.HandleRgbNet(context.Background(), o, port.Output[estimate.RgbNetOutput]{
		Value: estimate.RgbNetOutput{Primary: &estimate.PrimaryPrediction{
			Bbox: estimate.Rectangle{Left: 0, Top: 0, Right: 5, Bottom: 5},
		}},
	}, &frame)

	require.NotNil(t, p.leftRgb)
}

func TestHandleFaceIdentifierKeepsHighestScore(t *testing.T) {
	p := newTestPlan(true)
	o := orb.NewBuilder().Build()
	frame := camera.New(camera.KindRGB, 4, 4, make([]byte, 16))

	p.HandleFaceIdentifier(context.Background(), o, port.Output[estimate.FaceIdentifierOutput]{
		Value: estimate.FaceIdentifierOutput{IsValid: true, Score: 0.5},
	}, &frame)
	require.NotNil(t, p.selfCustodyCandidate)
	require.InDelta(t, 0.5, p.selfCustodyCandidate.estimate.Score, 0.0001)

	p.HandleFaceIdentifier(context.Background(), o, port.Output[estimate.FaceIdentifierOutput]{
		Value: estimate.FaceIdentifierOutput{IsValid: true, Score: 0.3},
	}, &frame)
	require.InDelta(t, 0.5, p.selfCustodyCandidate.estimate.Score, 0.0001, "lower score must not replace the higher one")

	p.HandleFaceIdentifier(context.Background(), o, port.Output[estimate.FaceIdentifierOutput]{
		Value: estimate.FaceIdentifierOutput{IsValid: true, Score: 0.9},
	}, &frame)
	require.InDelta(t, 0.9, p.selfCustodyCandidate.estimate.Score, 0.0001)

	require.True(t, o.OnlyRgbNetFrames())
}

func TestPollExtraBreaksWhenEyeFullyCapturedAndNotLastObjective(t *testing.T) {
	p := newTestPlan(true)
	p.objectives = make([]Objective, 3)
	o := orb.NewBuilder().Build()
	frame := camera.New(camera.KindIR, 2, 2, make([]byte, 4))
	p.leftIr = &frameInfo[estimate.IrNetOutput]{frame: frame}
	p.leftRgb = &frameInfo[estimate.RgbNetOutput]{frame: frame}

	flow := p.PollExtra(context.Background(), o)
	require.Equal(t, broker.Break, flow)
}

func TestPollExtraContinuesOnLastObjectiveWithoutSelfCustody(t *testing.T) {
	p := newTestPlan(true)
	p.objectives = make([]Objective, 1)
	p.objectiveIndex = 1
	o := orb.NewBuilder().Build()
	frame := camera.New(camera.KindIR, 2, 2, make([]byte, 4))
	p.leftIr = &frameInfo[estimate.IrNetOutput]{frame: frame}
	p.leftRgb = &frameInfo[estimate.RgbNetOutput]{frame: frame}

	flow := p.PollExtra(context.Background(), o)
	require.Equal(t, broker.Continue, flow)
}

func TestPollExtraTimesOutAfterDeadline(t *testing.T) {
	p := newTestPlan(true)
	p.timeout = time.Millisecond
	p.deadline = time.Now().Add(-time.Second)
	o := orb.NewBuilder().Build()

	flow := p.PollExtra(context.Background(), o)
	require.Equal(t, broker.Break, flow)
	require.True(t, p.timedOut)
}

func TestTrackGpsAveragesFixes(t *testing.T) {
	p := newTestPlan(true)
	p.trackGps("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	require.NotNil(t, p.latitude)
	first := *p.latitude
	p.trackGps("$GPGGA,123520,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	require.InDelta(t, first, *p.latitude, 0.0001)
}

func TestUpdateOcclusionAppliesHysteresis(t *testing.T) {
	p := newTestPlan(true)
	p.occlusionFilter.reset()
	p.occlusionFilter.add(thresholdOcclusion30*1.5, 0, occlusionLowPassRC)

	// A single very-low reading shouldn't instantly flip the indicator
	// without the low-pass filter moving the blended value across the
	// 0.975 threshold.
	p.updateOcclusion(context.Background(), estimate.IrNetOutput{Occlusion30: 0, Sharpness: 2})
	require.Nil(t, p.occlusionIndicatorOn)
}

func TestUpdateOcclusionDrivesLedOffOnceCleared(t *testing.T) {
	p := newTestPlan(true)
	fakeLed := p.led.(*led.Fake)

	// Prime the filter already below the occluded threshold, so the
	// first update triggers the indicator regardless of timer jitter.
	p.occlusionFilter.reset()
	p.occlusionFilter.add(thresholdOcclusion30*0.5, 0, occlusionLowPassRC)
	p.updateOcclusion(context.Background(), estimate.IrNetOutput{Occlusion30: thresholdOcclusion30 * 0.5, Sharpness: 2})
	require.NotNil(t, p.occlusionIndicatorOn)
	require.Contains(t, fakeLed.Calls, led.FakeCall{Pattern: led.OcclusionWarning, Progress: 0})

	// Back-date the indicator past the minimum pulse interval and prime
	// the filter above the clear threshold, so this update clears it.
	past := time.Now().Add(-2 * occlusionIndicatorMinInterval)
	p.occlusionIndicatorOn = &past
	p.occlusionFilter.reset()
	p.occlusionFilter.add(thresholdOcclusion30*1.5, 0, occlusionLowPassRC)
	p.updateOcclusion(context.Background(), estimate.IrNetOutput{Occlusion30: thresholdOcclusion30 * 1.5, Sharpness: 2})
	require.Nil(t, p.occlusionIndicatorOn)
	require.Contains(t, fakeLed.Calls, led.FakeCall{Pattern: led.Off, Progress: 0})
}

func fakeRunners() Runners {
	return Runners{
		IrEyeCamera:    camera.NewFakeRunner(camera.KindIR, 4, 4),
		IrFaceCamera:   camera.NewFakeRunner(camera.KindIR, 4, 4),
		RgbCamera:      camera.NewFakeRunner(camera.KindRGB, 4, 4),
		IrNet:          &fakeIrNetRunner{},
		RgbNet:         &fakeRgbNetRunner{},
		FaceIdentifier: &fakeFaceIdentifierRunner{},
		Mirror:         orb.NewFakeMirrorRunner(),
		Distance:       orb.NewFakeDistanceRunner(),
		AutoFocus:      orb.NewFakeAutoFocusRunner(MinSharpness),
		AutoExposure:   orb.NewFakeAutoExposureRunner(IrTargetMean),
		EyeTracker:     orb.NewFakeEyeTrackerRunner(),
		EyePid:         orb.NewFakeEyePidRunner(),
	}
}

type fakeIrNetRunner struct{}

func (f *fakeIrNetRunner) Run(ctx context.Context, in <-chan port.Input[estimate.IrNetInput], out chan<- port.Output[estimate.IrNetOutput]) error {
	<-ctx.Done()
	return nil
}

type fakeRgbNetRunner struct{}

func (f *fakeRgbNetRunner) Run(ctx context.Context, in <-chan port.Input[struct{}], out chan<- port.Output[estimate.RgbNetOutput]) error {
	<-ctx.Done()
	return nil
}

type fakeFaceIdentifierRunner struct{}

func (f *fakeFaceIdentifierRunner) Run(ctx context.Context, in <-chan port.Input[struct{}], out chan<- port.Output[estimate.FaceIdentifierOutput]) error {
	<-ctx.Done()
	return nil
}

func TestRunPreEnablesDerivedAgentsAndRunPostDisablesThem(t *testing.T) {
	p := newTestPlan(true)
	o := orb.NewBuilder().Build()

	require.NoError(t, p.runPre(context.Background(), o, fakeRunners()))
	require.True(t, o.Mirror.IsEnabled())
	require.True(t, o.Distance.IsEnabled())
	require.True(t, o.AutoFocus.IsEnabled())
	require.True(t, o.AutoExposure.IsEnabled())
	require.True(t, o.EyeTracker.IsEnabled())
	require.True(t, o.EyePid.IsEnabled())

	_, err := p.runPost(context.Background(), o)
	require.NoError(t, err)
	require.False(t, o.Mirror.IsEnabled())
	require.False(t, o.Distance.IsEnabled())
	require.False(t, o.AutoFocus.IsEnabled())
	require.False(t, o.AutoExposure.IsEnabled())
	require.False(t, o.EyeTracker.IsEnabled())
	require.False(t, o.EyePid.IsEnabled())
}

func TestNewObjectivesCoversBothEyesAndWavelengths(t *testing.T) {
	wavelengths := []Wavelength{{IrLed: mcu.IrLed850, Duration: 50}, {IrLed: mcu.IrLed940, Duration: 60}}
	objectives := NewObjectives(wavelengths)
	require.Len(t, objectives, 4)

	var sawLeftOnly, sawRightOnly bool
	for _, obj := range objectives {
		if obj.TargetLeftEye && obj.OnlyRgbNetFrames {
			sawLeftOnly = true
		}
		if !obj.TargetLeftEye && obj.OnlyRgbNetFrames {
			sawRightOnly = true
		}
	}
	require.True(t, sawLeftOnly != sawRightOnly, "exactly one eye should run the only_rgb_net_frames phase first")
}
