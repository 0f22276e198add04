// Package biometric implements the capture plan the broker drives: the
// objective queue that walks both eyes across every configured IR
// illuminator setting, the per-eye frame acceptance gates, the occlusion
// indicator's hysteresis filter, continuous mirror calibration, and the
// UX progress calculation the ring LED displays during a session.
package biometric

import (
	"context"
	"log/slog"
	"time"

	"github.com/orb-project/orb-core/internal/broker"
	"github.com/orb-project/orb-core/internal/calibration"
	"github.com/orb-project/orb-core/internal/camera"
	"github.com/orb-project/orb-core/internal/estimate"
	"github.com/orb-project/orb-core/internal/led"
	"github.com/orb-project/orb-core/internal/orb"
	"github.com/orb-project/orb-core/internal/port"
	"github.com/orb-project/orb-core/internal/telemetry"
)

// MinSharpness is the minimum sharpness the autofocus agent is configured
// with. The occlusion filter does not use it; it gates on irisSharpnessMin.
const MinSharpness = 1.2

// IrTargetMean is the IR frame pixel mean autoexposure converges toward.
const IrTargetMean = 135.0

// IrisScoreMin is the minimal IR-Net iris score a frame must clear to be
// accepted as a sharp iris capture.
const IrisScoreMin = 0.7

// IrisBrightnessRange bounds the IR frame mean an accepted capture must
// fall within, when autoexposure is running.
var IrisBrightnessRange = camera.Range{Min: 60, Max: 200}

// RgbFisheyeWidth and RgbFisheyeHeight are the RGB camera's resolution,
// pushed to the eye tracker and RGB camera agent so both undistort
// against the same lens model.
const (
	RgbFisheyeWidth  = 1080
	RgbFisheyeHeight = 1080
)

// FisheyeUndistortionEnabled gates whether the RGB camera agent applies
// lens-distortion correction to frames before they leave the agent.
const FisheyeUndistortionEnabled = true

// AutoFocusUseRgbNetEstimate selects whether autofocus follows the
// RGB-Net bounding box instead of IR-Net sharpness readings. It is passed
// to StartAutoFocus when a session starts.
const AutoFocusUseRgbNetEstimate = true

// thresholdOcclusion30 is the occlusion-30 score threshold, evaluated
// against the low-pass-filtered signal with hysteresis margins.
const thresholdOcclusion30 = 0.5

const occlusionLowPassRC = 0.4

// occlusionIndicatorMinInterval is the minimum time the occlusion
// indicator stays lit once triggered, so it reads as a steady signal
// rather than a flicker.
const occlusionIndicatorMinInterval = 450 * time.Millisecond

// maxProgress and faceIdentifiedProgress apportion the UX progress bar:
// capture sharpness fills [0, maxProgress-faceIdentifiedProgress], and a
// captured face self-custody candidate fills the rest.
const (
	maxProgress           = 0.8
	faceIdentifiedProgress = 0.25
)

// EyeCapture is the accepted IR/RGB frame pair and model estimates for
// one eye.
type EyeCapture struct {
	IrFrame       camera.Frame
	IrNetEstimate estimate.IrNetOutput
	RgbFrame      camera.Frame
	RgbNetOutput  estimate.RgbNetOutput
}

// SelfCustodyCandidate is the best-scoring RGB frame and fused output
// seen during a session, used for face self-custody enrollment.
type SelfCustodyCandidate struct {
	RgbFrame           camera.Frame
	RgbNetEyeLandmarks [2]estimate.Point
	RgbNetBbox         estimate.Rectangle
}

// Capture is the full biometric record a successful session produces.
type Capture struct {
	EyeLeft                  EyeCapture
	EyeRight                 EyeCapture
	FaceSelfCustodyCandidate SelfCustodyCandidate
	Latitude, Longitude      *float64
}

// Output is what Run returns: the capture, if the session succeeded, and
// whether the session ended on its timeout. It carries no log of the
// agent configuration changes made during the session.
type Output struct {
	Capture *Capture
	TimedOut bool
}

type frameInfo[E any] struct {
	estimate E
	frame    camera.Frame
}

// Plan drives the broker through one biometric capture session: an
// objective queue walking both eyes across every IR wavelength/duration
// pair, frame acceptance gates per objective, occlusion indication, and
// continuous mirror calibration on success.
type Plan struct {
	orb.DefaultPlan

	recorder         telemetry.Recorder
	led              led.Engine
	calibrationStore *calibration.Store

	objectives      []Objective
	objectiveIndex  int
	totalObjectives int
	targetLeftEye   bool

	timeout   time.Duration
	deadline  time.Time
	timedOut  bool

	leftIr    *frameInfo[estimate.IrNetOutput]
	leftRgb   *frameInfo[estimate.RgbNetOutput]
	rightIr   *frameInfo[estimate.IrNetOutput]
	rightRgb  *frameInfo[estimate.RgbNetOutput]
	selfCustodyCandidate *frameInfo[estimate.FaceIdentifierOutput]

	latitude, longitude *float64
	gpsPoints           int

	maxSharpness float64

	occlusionTimer       instantTimer
	occlusionFilter      lowPassFilter
	occlusionIndicatorOn *time.Time

	mirrorOffsets []calibration.Point
}

// Option configures a Plan at construction.
type Option func(*Plan)

// WithRecorder overrides the telemetry recorder; the default is a no-op.
func WithRecorder(r telemetry.Recorder) Option { return func(p *Plan) { p.recorder = r } }

// WithLed overrides the LED engine driving progress/occlusion feedback;
// the default is a Fake.
func WithLed(e led.Engine) Option { return func(p *Plan) { p.led = e } }

// WithCalibrationStore attaches the durable calibration store; when
// unset, a successful capture's continuous calibration still updates the
// in-memory Orb calibration and mirror actuator, it just isn't persisted.
func WithCalibrationStore(s *calibration.Store) Option {
	return func(p *Plan) { p.calibrationStore = s }
}

// NewPlan builds a biometric capture plan across the given wavelengths,
// breaking off with a timeout if no session completes before it elapses
// (zero means no timeout).
func NewPlan(wavelengths []Wavelength, timeout time.Duration, opts ...Option) *Plan {
	objectives := NewObjectives(wavelengths)
	p := &Plan{
		recorder:        &telemetry.Fake{},
		led:             &led.Fake{},
		objectives:      objectives,
		totalObjectives: len(objectives),
		timeout:         timeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run drives the full capture session: pre-flight setup, the broker loop
// (each iteration runs the broker until a handler or PollExtra breaks,
// then checks for timeout or moves to the next objective), and teardown,
// returning the resulting capture if one was assembled.
func (p *Plan) Run(ctx context.Context, o *orb.Orb, runners Runners) (Output, error) {
	if err := p.runPre(ctx, o, runners); err != nil {
		return Output{}, err
	}
	for {
		if err := broker.Run(ctx, o.Stations(ctx, p), func() broker.Flow { return p.PollExtra(ctx, o) }); err != nil {
			return Output{}, err
		}
		done, err := p.runCheck(ctx, o)
		if err != nil {
			return Output{}, err
		}
		if done {
			break
		}
	}
	return p.runPost(ctx, o)
}

// Runners supplies the driver implementations the facade's subprocess
// and thread-model agents run, since the Plan — not the facade — knows
// which concrete perception models and camera drivers a session needs.
type Runners struct {
	IrEyeCamera    agentRunner[camera.Command, camera.Frame]
	IrFaceCamera   agentRunner[camera.Command, camera.Frame]
	RgbCamera      agentRunner[camera.Command, camera.Frame]
	IrNet          agentRunner[port.Input[estimate.IrNetInput], estimate.IrNetOutput]
	RgbNet         agentRunner[port.Input[struct{}], estimate.RgbNetOutput]
	FaceIdentifier agentRunner[port.Input[struct{}], estimate.FaceIdentifierOutput]

	Mirror       agentRunner[orb.MirrorCommand, orb.MirrorOutput]
	Distance     agentRunner[orb.DistanceInput, orb.DistanceOutput]
	AutoFocus    agentRunner[orb.AutoFocusInput, orb.AutoFocusOutput]
	AutoExposure agentRunner[orb.AutoExposureInput, orb.AutoExposureOutput]
	EyeTracker   agentRunner[orb.EyeTrackerInput, orb.EyeTrackerOutput]
	EyePid       agentRunner[any, orb.EyePidOutput]
}

type agentRunner[I, V any] interface {
	Run(ctx context.Context, in <-chan I, out chan<- port.Output[V]) error
}

func (p *Plan) runPre(ctx context.Context, o *orb.Orb, runners Runners) error {
	if err := o.EnableIrNet(ctx, runners.IrNet); err != nil {
		return err
	}
	if err := o.EnableRgbNet(ctx, runners.RgbNet, runners.FaceIdentifier, false); err != nil {
		return err
	}
	if err := o.StartIrEyeCamera(ctx, runners.IrEyeCamera); err != nil {
		return err
	}
	if err := o.StartIrFaceCamera(ctx, runners.IrFaceCamera); err != nil {
		return err
	}
	if err := o.RgbCamera.Enable(ctx, runners.RgbCamera); err != nil {
		return err
	}
	if err := o.RgbCamera.Send(ctx, camera.Start); err != nil {
		return err
	}

	if err := o.EnableMirror(ctx, runners.Mirror); err != nil {
		return err
	}
	if err := o.EnableDistance(ctx, runners.Distance); err != nil {
		return err
	}
	if err := o.StartAutoFocus(ctx, runners.AutoFocus, AutoFocusUseRgbNetEstimate); err != nil {
		return err
	}
	if err := o.StartEyeTracker(ctx, runners.EyeTracker); err != nil {
		return err
	}
	if err := o.EnableEyePid(ctx, runners.EyePid); err != nil {
		return err
	}
	if err := o.StartAutoExposure(ctx, runners.AutoExposure); err != nil {
		return err
	}
	if err := o.SetFisheye(ctx, RgbFisheyeWidth, RgbFisheyeHeight, FisheyeUndistortionEnabled); err != nil {
		return err
	}

	if !p.setNextObjective(ctx, o) {
		panic("biometric: NewPlan given no wavelengths")
	}

	if p.timeout > 0 {
		p.deadline = time.Now().Add(p.timeout)
	}

	// Start with negative occlusion, so the first real sample doesn't
	// read as a sudden occlusion event relative to a zeroed filter.
	p.occlusionFilter.reset()
	p.occlusionFilter.add(thresholdOcclusion30*1.5, 0, occlusionLowPassRC)
	return nil
}

func (p *Plan) runCheck(ctx context.Context, o *orb.Orb) (bool, error) {
	if offset := o.MirrorOffset(); offset != nil {
		p.mirrorOffsets = append(p.mirrorOffsets, calibration.Point{Horizontal: offset.Horizontal, Vertical: offset.Vertical})
	}
	if p.timedOut {
		slog.Info("biometric capture timeout")
		return true, nil
	}
	if !p.setNextObjective(ctx, o) {
		p.recorder.BothEyeCaptured()
		slog.Info("biometric capture: all objectives achieved")
		return true, nil
	}
	return false, nil
}

func (p *Plan) runPost(ctx context.Context, o *orb.Orb) (Output, error) {
	if err := o.DisableIrNet(); err != nil {
		return Output{}, err
	}
	if err := o.DisableRgbNet(); err != nil {
		return Output{}, err
	}
	if err := o.StopAutoExposure(); err != nil {
		return Output{}, err
	}
	if err := o.StopEyeTracker(); err != nil {
		return Output{}, err
	}
	if err := o.StopAutoFocus(); err != nil {
		return Output{}, err
	}
	if err := o.DisableDistance(); err != nil {
		return Output{}, err
	}
	if err := o.DisableMirror(); err != nil {
		return Output{}, err
	}
	if err := o.DisableEyePid(); err != nil {
		return Output{}, err
	}
	if err := o.RgbCamera.Send(ctx, camera.Stop); err != nil {
		return Output{}, err
	}
	if err := o.RgbCamera.Disable(); err != nil {
		return Output{}, err
	}
	if err := o.StopIrEyeCamera(ctx); err != nil {
		return Output{}, err
	}
	if err := o.StopIrFaceCamera(ctx); err != nil {
		return Output{}, err
	}

	capture := p.intoCapture()
	if capture != nil && len(p.mirrorOffsets) >= 2 {
		if err := p.continuousCalibration(ctx, o); err != nil {
			return Output{}, err
		}
	}

	return Output{Capture: capture, TimedOut: p.timedOut}, nil
}

func (p *Plan) intoCapture() *Capture {
	if p.leftIr == nil || p.leftRgb == nil || p.rightIr == nil || p.rightRgb == nil || p.selfCustodyCandidate == nil {
		return nil
	}
	return &Capture{
		EyeLeft: EyeCapture{
			IrFrame: p.leftIr.frame, IrNetEstimate: p.leftIr.estimate,
			RgbFrame: p.leftRgb.frame, RgbNetOutput: p.leftRgb.estimate,
		},
		EyeRight: EyeCapture{
			IrFrame: p.rightIr.frame, IrNetEstimate: p.rightIr.estimate,
			RgbFrame: p.rightRgb.frame, RgbNetOutput: p.rightRgb.estimate,
		},
		FaceSelfCustodyCandidate: SelfCustodyCandidate{
			RgbFrame:           p.selfCustodyCandidate.frame,
			RgbNetEyeLandmarks: p.selfCustodyCandidate.estimate.RgbNetEyeLandmarks,
			RgbNetBbox:         p.selfCustodyCandidate.estimate.RgbNetBbox,
		},
		Latitude:  p.latitude,
		Longitude: p.longitude,
	}
}

func (p *Plan) setNextObjective(ctx context.Context, o *orb.Orb) bool {
	if p.objectiveIndex >= len(p.objectives) {
		return false
	}
	objective := p.objectives[p.objectiveIndex]
	p.objectiveIndex++

	p.maxSharpness = 0
	p.targetLeftEye = objective.TargetLeftEye
	if err := o.SetTargetLeftEye(ctx, objective.TargetLeftEye); err != nil {
		slog.Error("biometric: set target left eye failed", "error", err)
	}
	if err := o.SetIrWavelength(ctx, objective.IrLedWavelength); err != nil {
		slog.Error("biometric: set ir wavelength failed", "error", err)
	}
	if err := o.SetIrDuration(ctx, objective.IrLedDuration); err != nil {
		slog.Error("biometric: set ir duration failed", "error", err)
	}
	o.SetOnlyRgbNetFrames(objective.OnlyRgbNetFrames)
	return true
}

func (p *Plan) isLastObjective() bool {
	return p.objectiveIndex >= len(p.objectives)
}
