package orb

import (
	"context"
	"log/slog"
	"time"

	"github.com/orb-project/orb-core/internal/camera"
	"github.com/orb-project/orb-core/internal/estimate"
	"github.com/orb-project/orb-core/internal/mcu"
	"github.com/orb-project/orb-core/internal/port"
)

// DispatchIrEyeFrame implements the IR-eye-frame pre-dispatch rule: it
// always forwards to autoexposure, and either enqueues the frame for
// IR-Net (recording it in the pending queue) or, when IR-Net is disabled,
// forwards straight to autofocus and the image notary.
func (o *Orb) DispatchIrEyeFrame(ctx context.Context, frame port.Output[camera.Frame]) {
	o.AutoExposure.TrySend(AutoExposureInput{FrameMean: frame.Value.Mean()})

	o.mu.Lock()
	irNetEnabled := o.irNetEnabled
	targetLeftEye := o.targetLeftEye
	focusMatrixCode := o.focusMatrixCode
	o.mu.Unlock()

	if irNetEnabled {
		input := port.Input[estimate.IrNetInput]{
			Value:    estimate.IrNetInput{TargetLeftEye: targetLeftEye, FocusMatrixCode: focusMatrixCode},
			SourceTS: frame.SourceTS,
		}
		if o.IrNet.TrySend(input) {
			o.irNetFrames.push(frame.Value, frame.SourceTS)
		}
		return
	}
	o.AutoFocus.TrySend(AutoFocusInput{})
	o.Notary.TrySend(NotaryInput{FrameID: frame.Value.ID()})
}

// DispatchIrFaceFrame implements the IR-face-frame pre-dispatch rule: it
// only ever goes to the image notary.
func (o *Orb) DispatchIrFaceFrame(ctx context.Context, frame port.Output[camera.Frame]) {
	o.Notary.TrySend(NotaryInput{FrameID: frame.Value.ID()})
}

// DispatchRgbFrame implements the RGB-frame pre-dispatch rule: forward to
// qr-code if enabled, and either enqueue for RGB-Net (recording it in the
// pending queue) or do nothing further, depending on whether RGB-Net is
// enabled.
func (o *Orb) DispatchRgbFrame(ctx context.Context, frame port.Output[camera.Frame]) {
	if _, enabled := o.QrCode.Output(); enabled {
		o.QrCode.TrySend(QrCodeInput{FrameID: frame.Value.ID()})
	}

	o.mu.Lock()
	rgbNetEnabled := o.rgbNetEnabled
	onlyRgbNetFrames := o.onlyRgbNetFrames
	o.mu.Unlock()
	if !rgbNetEnabled {
		return
	}

	input := port.Input[struct{}]{SourceTS: frame.SourceTS}
	var sent bool
	if onlyRgbNetFrames {
		sent = o.RgbNet.TrySend(input)
	} else {
		sent = o.FaceIdentifier.TrySend(input)
	}
	if sent {
		o.rgbNetFrames.push(frame.Value, frame.SourceTS)
	}
}

// PopIrNetFrame resolves the IR-Net pending-frame queue by source
// timestamp, discarding any older stale entries in FIFO order, per §4.4's
// pairing rule. ok is false if no frame's timestamp matches (a pairing
// miss: the caller should log and continue, never panic).
func (o *Orb) PopIrNetFrame(sourceTS time.Time) (camera.Frame, bool) {
	return o.irNetFrames.pop(sourceTS)
}

// PopRgbNetFrame resolves the RGB-Net pending-frame queue the same way.
func (o *Orb) PopRgbNetFrame(sourceTS time.Time) (camera.Frame, bool) {
	return o.rgbNetFrames.pop(sourceTS)
}

// DispatchAutoFocus implements the autofocus-output pre-dispatch rule:
// forward to the main MCU as a liquid-lens target.
func (o *Orb) DispatchAutoFocus(ctx context.Context, out port.Output[AutoFocusOutput]) {
	focus := out.Value.Focus
	if err := o.Mcu.Send(ctx, mcu.SetLiquidLens{Focus: &focus}); err != nil {
		slog.Warn("autofocus dispatch: set liquid lens failed", "error", err)
	}
}

// DispatchAutoExposure implements the autoexposure-output pre-dispatch
// rule: push the converged gain/exposure to both IR cameras and update
// the IR illuminator duration to match.
func (o *Orb) DispatchAutoExposure(ctx context.Context, out port.Output[AutoExposureOutput]) error {
	o.IrEyeCamera.TrySend(camera.SetGain(out.Value.Gain))
	o.IrEyeCamera.TrySend(camera.SetExposure(out.Value.ExposureUS))
	o.IrFaceCamera.TrySend(camera.SetGain(out.Value.Gain))
	o.IrFaceCamera.TrySend(camera.SetExposure(out.Value.ExposureUS))

	durationUS := uint16(out.Value.ExposureUS)
	return o.SetIrDuration(ctx, durationUS)
}

// DispatchEyeTracker implements the eye-tracker-output pre-dispatch rule:
// store the mirror point and send the mirror actuator the sum of it and
// any stored mirror offset.
func (o *Orb) DispatchEyeTracker(ctx context.Context, out port.Output[EyeTrackerOutput]) error {
	o.mu.Lock()
	point := out.Value.Point
	o.mirrorPoint = &point
	offset := o.mirrorOffset
	o.mu.Unlock()
	return o.sendMirrorSetPoint(ctx, point, offset)
}

// DispatchEyePid implements the eye-PID-output pre-dispatch rule: store
// the mirror offset and send the mirror actuator the sum of it and any
// stored mirror point.
func (o *Orb) DispatchEyePid(ctx context.Context, out port.Output[EyePidOutput]) error {
	o.mu.Lock()
	offset := out.Value.Offset
	o.mirrorOffset = &offset
	point := o.mirrorPoint
	o.mu.Unlock()
	return o.sendMirrorSetPoint(ctx, orZero(point), offset)
}

func (o *Orb) sendMirrorSetPoint(ctx context.Context, point MirrorPoint, offset *MirrorPoint) error {
	sum := point
	if offset != nil {
		sum.Horizontal += offset.Horizontal
		sum.Vertical += offset.Vertical
	}
	return o.Mirror.Send(ctx, MirrorCommand{SetPoint: &sum})
}

func orZero(p *MirrorPoint) MirrorPoint {
	if p == nil {
		return MirrorPoint{}
	}
	return *p
}

// DispatchMirror implements the mirror-actuator-output pre-dispatch rule:
// forward the reported position to the main MCU as a mirror command.
func (o *Orb) DispatchMirror(ctx context.Context, out port.Output[MirrorOutput]) error {
	return o.Mcu.Send(ctx, mcu.SetMirror{Phi: float64(out.Value.XSteps), Theta: float64(out.Value.YSteps)})
}
