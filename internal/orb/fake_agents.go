package orb

import (
	"context"

	"github.com/orb-project/orb-core/internal/port"
)

// FakeAutoFocusRunner is a deterministic stand-in for the liquid-lens
// autofocus controller: it nudges its focus value toward whichever signal
// it was configured to follow, without implementing any real control
// algorithm.
type FakeAutoFocusRunner struct {
	MinSharpness float64
	focus        int16
}

// NewFakeAutoFocusRunner returns a FakeAutoFocusRunner converging toward
// minSharpness.
func NewFakeAutoFocusRunner(minSharpness float64) *FakeAutoFocusRunner {
	return &FakeAutoFocusRunner{MinSharpness: minSharpness}
}

// Run implements agent.Runner.
func (r *FakeAutoFocusRunner) Run(ctx context.Context, in <-chan AutoFocusInput, out chan<- port.Output[AutoFocusOutput]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case input, ok := <-in:
			if !ok {
				return nil
			}
			switch {
			case input.Sharpness != nil && *input.Sharpness < r.MinSharpness:
				r.focus++
			case input.RgbNetBbox != nil:
				width := input.RgbNetBbox.Right - input.RgbNetBbox.Left
				r.focus = int16(width)
			}
			out <- port.Output[AutoFocusOutput]{Value: AutoFocusOutput{Focus: r.focus}}
		}
	}
}

// FakeAutoExposureRunner is a deterministic stand-in for the gain/exposure
// convergence loop: simple proportional steps toward TargetMean.
type FakeAutoExposureRunner struct {
	TargetMean float64
	gain       float64
	exposureUS uint32
}

// NewFakeAutoExposureRunner returns a FakeAutoExposureRunner converging
// toward targetMean, starting from a neutral gain/exposure pair.
func NewFakeAutoExposureRunner(targetMean float64) *FakeAutoExposureRunner {
	return &FakeAutoExposureRunner{TargetMean: targetMean, gain: 1.0, exposureUS: 5000}
}

// Run implements agent.Runner.
func (r *FakeAutoExposureRunner) Run(ctx context.Context, in <-chan AutoExposureInput, out chan<- port.Output[AutoExposureOutput]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case input, ok := <-in:
			if !ok {
				return nil
			}
			delta := r.TargetMean - input.FrameMean
			switch {
			case delta > 0:
				r.exposureUS += uint32(delta)
			case delta < 0 && r.exposureUS > uint32(-delta):
				r.exposureUS -= uint32(-delta)
			}
			out <- port.Output[AutoExposureOutput]{Value: AutoExposureOutput{Gain: r.gain, ExposureUS: r.exposureUS}}
		}
	}
}

// FakeEyeTrackerRunner is a deterministic stand-in for the gaze-to-mirror
// mapping: it scales the landmark's pixel position directly into a mirror
// setpoint, ignoring any fisheye reconfiguration beyond recording it.
type FakeEyeTrackerRunner struct {
	fisheye *FisheyeConfig
}

// NewFakeEyeTrackerRunner returns a FakeEyeTrackerRunner.
func NewFakeEyeTrackerRunner() *FakeEyeTrackerRunner { return &FakeEyeTrackerRunner{} }

// Run implements agent.Runner.
func (r *FakeEyeTrackerRunner) Run(ctx context.Context, in <-chan EyeTrackerInput, out chan<- port.Output[EyeTrackerOutput]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case input, ok := <-in:
			if !ok {
				return nil
			}
			if input.Fisheye != nil {
				r.fisheye = input.Fisheye
			}
			width := 1.0
			height := 1.0
			if r.fisheye != nil && r.fisheye.RgbWidth > 0 && r.fisheye.RgbHeight > 0 {
				width = float64(r.fisheye.RgbWidth)
				height = float64(r.fisheye.RgbHeight)
			}
			point := MirrorPoint{
				Horizontal: input.EyeLandmark.X / width,
				Vertical:   input.EyeLandmark.Y / height,
			}
			out <- port.Output[EyeTrackerOutput]{Value: EyeTrackerOutput{Point: point}}
		}
	}
}

// FakeEyePidRunner is a deterministic stand-in for the eye-PID controller:
// it integrates EyePidInput.Error and resets the integrator whenever
// SwitchEye arrives, since the error history belongs to whichever eye was
// previously targeted.
type FakeEyePidRunner struct {
	integrator float64
}

// NewFakeEyePidRunner returns a FakeEyePidRunner with a zeroed integrator.
func NewFakeEyePidRunner() *FakeEyePidRunner { return &FakeEyePidRunner{} }

// Run implements agent.Runner. The input channel is untyped because the
// cell's contract accepts both EyePidInput and SwitchEye.
func (r *FakeEyePidRunner) Run(ctx context.Context, in <-chan any, out chan<- port.Output[EyePidOutput]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			switch v := msg.(type) {
			case SwitchEye:
				r.integrator = 0
				continue
			case EyePidInput:
				r.integrator += v.Error
				out <- port.Output[EyePidOutput]{Value: EyePidOutput{Offset: MirrorPoint{Horizontal: r.integrator}}}
			}
		}
	}
}

// FakeMirrorRunner is a deterministic stand-in for the mirror actuator: it
// echoes SetPoint/Recalibrate commands directly into reported motor steps.
type FakeMirrorRunner struct {
	x, y int32
}

// NewFakeMirrorRunner returns a FakeMirrorRunner at the origin.
func NewFakeMirrorRunner() *FakeMirrorRunner { return &FakeMirrorRunner{} }

// Run implements agent.Runner.
func (r *FakeMirrorRunner) Run(ctx context.Context, in <-chan MirrorCommand, out chan<- port.Output[MirrorOutput]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-in:
			if !ok {
				return nil
			}
			switch {
			case cmd.SetPoint != nil:
				r.x = int32(cmd.SetPoint.Horizontal)
				r.y = int32(cmd.SetPoint.Vertical)
			case cmd.Recalibrate != nil:
				r.x = int32(cmd.Recalibrate.HorizontalOffset)
				r.y = int32(cmd.Recalibrate.VerticalOffset)
			}
			out <- port.Output[MirrorOutput]{Value: MirrorOutput{XSteps: r.x, YSteps: r.y}}
		}
	}
}

// FakeDistanceRunner is a deterministic stand-in for the distance
// estimator: it reports an inverse-sharpness heuristic as a millimeter
// distance, close enough for this facade to drive the rest of the
// pipeline without a real depth model.
type FakeDistanceRunner struct{}

// NewFakeDistanceRunner returns a FakeDistanceRunner.
func NewFakeDistanceRunner() *FakeDistanceRunner { return &FakeDistanceRunner{} }

// Run implements agent.Runner.
func (r *FakeDistanceRunner) Run(ctx context.Context, in <-chan DistanceInput, out chan<- port.Output[DistanceOutput]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case input, ok := <-in:
			if !ok {
				return nil
			}
			millimeters := 300.0
			if input.Sharpness > 0 {
				millimeters = 300.0 / input.Sharpness
			}
			out <- port.Output[DistanceOutput]{Value: DistanceOutput{Millimeters: millimeters}}
		}
	}
}
