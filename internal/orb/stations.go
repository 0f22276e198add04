package orb

import (
	"context"
	"log/slog"

	"github.com/orb-project/orb-core/internal/broker"
	"github.com/orb-project/orb-core/internal/camera"
	"github.com/orb-project/orb-core/internal/estimate"
	"github.com/orb-project/orb-core/internal/port"
)

// Stations builds the broker's fixed, declared poll order for this
// facade: cameras, then models, then derived agents (autofocus,
// autoexposure, eye tracker, eye PID), then actuators (mirror, distance),
// then notary. Every pre-dispatch rule of §4.4 runs inside a station's
// dispatch closure, before the Plan's handler is invoked.
func (o *Orb) Stations(ctx context.Context, plan Plan) []broker.Station {
	return []broker.Station{
		broker.StationFor("ir_eye_camera", o.IrEyeCamera, func(frame port.Output[camera.Frame]) broker.Flow {
			o.DispatchIrEyeFrame(ctx, frame)
			return plan.HandleIrEyeCamera(ctx, o, frame)
		}),
		broker.StationFor("ir_face_camera", o.IrFaceCamera, func(frame port.Output[camera.Frame]) broker.Flow {
			o.DispatchIrFaceFrame(ctx, frame)
			return plan.HandleIrFaceCamera(ctx, o, frame)
		}),
		broker.StationFor("rgb_camera", o.RgbCamera, func(frame port.Output[camera.Frame]) broker.Flow {
			o.DispatchRgbFrame(ctx, frame)
			return plan.HandleRgbCamera(ctx, o, frame)
		}),
		broker.StationFor("thermal_camera", o.ThermalCamera, func(frame port.Output[camera.Frame]) broker.Flow {
			return plan.HandleThermalCamera(ctx, o, frame)
		}),

		broker.StationFor("ir_net", o.IrNet, func(out port.Output[estimate.IrNetOutput]) broker.Flow {
			return o.dispatchIrNetEstimate(ctx, plan, out)
		}),
		broker.StationFor("rgb_net", o.RgbNet, func(out port.Output[estimate.RgbNetOutput]) broker.Flow {
			return o.dispatchRgbNetEstimate(ctx, plan, out)
		}),
		broker.StationFor("face_identifier", o.FaceIdentifier, func(out port.Output[estimate.FaceIdentifierOutput]) broker.Flow {
			return o.dispatchFusedFaceIdentifier(ctx, plan, out)
		}),

		broker.StationFor("ir_auto_focus", o.AutoFocus, func(out port.Output[AutoFocusOutput]) broker.Flow {
			o.DispatchAutoFocus(ctx, out)
			return broker.Continue
		}),
		broker.StationFor("ir_auto_exposure", o.AutoExposure, func(out port.Output[AutoExposureOutput]) broker.Flow {
			if err := o.DispatchAutoExposure(ctx, out); err != nil {
				slog.Warn("autoexposure dispatch failed", "error", err)
			}
			return broker.Continue
		}),
		broker.StationFor("eye_tracker", o.EyeTracker, func(out port.Output[EyeTrackerOutput]) broker.Flow {
			if err := o.DispatchEyeTracker(ctx, out); err != nil {
				slog.Warn("eye tracker dispatch failed", "error", err)
			}
			return broker.Continue
		}),
		broker.StationFor("eye_pid_controller", o.EyePid, func(out port.Output[EyePidOutput]) broker.Flow {
			if err := o.DispatchEyePid(ctx, out); err != nil {
				slog.Warn("eye pid dispatch failed", "error", err)
			}
			return broker.Continue
		}),

		broker.StationFor("mirror", o.Mirror, func(out port.Output[MirrorOutput]) broker.Flow {
			if err := o.DispatchMirror(ctx, out); err != nil {
				slog.Warn("mirror dispatch failed", "error", err)
			}
			return plan.HandleMirror(ctx, o, out)
		}),
		broker.StationFor("distance", o.Distance, func(port.Output[DistanceOutput]) broker.Flow {
			return broker.Continue
		}),
		broker.StationFor("qr_code", o.QrCode, func(out port.Output[QrCodeOutput]) broker.Flow {
			return plan.HandleQrCode(ctx, o, out)
		}),

		broker.StationFor("image_notary", o.Notary, func(port.Output[struct{}]) broker.Flow {
			return broker.Continue
		}),
	}
}

func (o *Orb) dispatchIrNetEstimate(ctx context.Context, plan Plan, out port.Output[estimate.IrNetOutput]) broker.Flow {
	frame, ok := o.PopIrNetFrame(out.SourceTS)
	var framePtr *camera.Frame
	if ok {
		framePtr = &frame
	} else {
		slog.Error("ir_net pairing miss: no pending frame for source timestamp", "source_ts", out.SourceTS)
	}

	flow := plan.HandleIrNet(ctx, o, out, framePtr)
	if framePtr == nil {
		return flow
	}

	o.AutoFocus.TrySend(AutoFocusInput{Sharpness: &out.Value.Sharpness})
	if out.Value.PerceivedSide != nil {
		o.EyePid.TrySend(EyePidInput{Error: out.Value.GazeOffset})
	}
	o.Distance.TrySend(DistanceInput{Sharpness: out.Value.Sharpness})
	o.Notary.TrySend(NotaryInput{FrameID: framePtr.ID()})
	return flow
}

func (o *Orb) dispatchRgbNetEstimate(ctx context.Context, plan Plan, out port.Output[estimate.RgbNetOutput]) broker.Flow {
	frame, ok := o.PopRgbNetFrame(out.SourceTS)
	var framePtr *camera.Frame
	if ok {
		framePtr = &frame
	} else {
		slog.Error("rgb_net pairing miss: no pending frame for source timestamp", "source_ts", out.SourceTS)
	}

	flow := plan.HandleRgbNet(ctx, o, out, framePtr)
	if framePtr == nil || out.Value.Primary == nil {
		return flow
	}

	o.EyeTracker.TrySend(EyeTrackerInput{EyeLandmark: out.Value.Primary.EyeLandmarks[0]})
	o.mu.Lock()
	useRgbNetForFocus := o.irAutoFocusUseRgbNetEstimate
	o.mu.Unlock()
	if useRgbNetForFocus {
		bbox := out.Value.Primary.Bbox
		o.AutoFocus.TrySend(AutoFocusInput{RgbNetBbox: &bbox})
	}
	o.Distance.TrySend(DistanceInput{})
	o.Notary.TrySend(NotaryInput{FrameID: framePtr.ID()})
	return flow
}

// dispatchFusedFaceIdentifier implements the fused RGB-Net+face-identifier
// pre-dispatch rule: re-pair one RGB frame by source timestamp, run the
// RGB pre-dispatch derived from the fused output's embedded RGB-Net
// fields, invoke the Plan's RGB-Net handler, and only on Continue invoke
// the face-identifier handler. The pending-frame pop here matches by
// timestamp, not by the tautological comparison of the original this
// behavior was ported from.
func (o *Orb) dispatchFusedFaceIdentifier(ctx context.Context, plan Plan, out port.Output[estimate.FaceIdentifierOutput]) broker.Flow {
	frame, ok := o.PopRgbNetFrame(out.SourceTS)
	var framePtr *camera.Frame
	if ok {
		framePtr = &frame
	} else {
		slog.Error("face_identifier pairing miss: no pending frame for source timestamp", "source_ts", out.SourceTS)
	}

	rgbNetOut := port.Output[estimate.RgbNetOutput]{
		SourceTS: out.SourceTS,
		Value: estimate.RgbNetOutput{Primary: &estimate.PrimaryPrediction{
			Bbox:         out.Value.RgbNetBbox,
			EyeLandmarks: out.Value.RgbNetEyeLandmarks,
		}},
	}
	if framePtr != nil {
		o.EyeTracker.TrySend(EyeTrackerInput{EyeLandmark: rgbNetOut.Value.Primary.EyeLandmarks[0]})
		o.Distance.TrySend(DistanceInput{})
		o.Notary.TrySend(NotaryInput{FrameID: framePtr.ID()})
	}

	if flow := plan.HandleRgbNet(ctx, o, rgbNetOut, framePtr); flow == broker.Break {
		return broker.Break
	}
	return plan.HandleFaceIdentifier(ctx, o, out, framePtr)
}
