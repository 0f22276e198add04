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
)

// irisSharpnessMin is the sharpness floor below which an IR-Net frame's
// occlusion-30 reading is considered unreliable and substituted with a
// fixed above-threshold value, so a blurry frame never masquerades as a
// clean occlusion reading.
const irisSharpnessMin = 0.5

// HandleIrNet implements orb.Plan: it updates the occlusion indicator
// off every IR-Net estimate regardless of acceptance, then gates frame
// acceptance on perceived-side agreement with the current objective and
// on score/brightness thresholds.
func (p *Plan) HandleIrNet(ctx context.Context, o *orb.Orb, out port.Output[estimate.IrNetOutput], frame *camera.Frame) broker.Flow {
	est := out.Value
	p.updateOcclusion(ctx, est)

	if est.PerceivedSide == nil {
		slog.Debug("ir_net perceived_side=nil, skipping frame")
		return broker.Continue
	}
	wantSide := 0
	if p.targetLeftEye {
		wantSide = 1
	}
	if *est.PerceivedSide != wantSide {
		slog.Debug("skipping frame due to target and perceived side mismatch")
		return broker.Continue
	}

	p.updateUX(ctx, o, est.Sharpness)

	if frame == nil {
		slog.Error("ir_net: accepted estimate has no paired frame")
		return broker.Continue
	}

	validCapture := est.Score >= IrisScoreMin &&
		(!o.AutoExposure.IsEnabled() || IrisBrightnessRange.Contains(frame.Mean()))
	if !validCapture {
		return broker.Continue
	}

	slot := &p.rightIr
	if p.targetLeftEye {
		slot = &p.leftIr
	}
	if *slot == nil {
		p.recorder.FirstSideSharpIrisDetected(p.targetLeftEye)
	}
	slog.Debug("found sharp iris", "score", est.Score)
	*slot = &frameInfo[estimate.IrNetOutput]{estimate: est, frame: *frame}
	return broker.Continue
}

// HandleRgbNet implements orb.Plan: accept the frame into the current
// objective's RGB slot if RGB-Net found a well-formed primary prediction.
func (p *Plan) HandleRgbNet(ctx context.Context, o *orb.Orb, out port.Output[estimate.RgbNetOutput], frame *camera.Frame) broker.Flow {
	if !out.Value.IsAcceptable() {
		return broker.Continue
	}
	if frame == nil {
		slog.Error("rgb_net: accepted estimate has no paired frame")
		return broker.Continue
	}
	slot := &p.rightRgb
	if p.targetLeftEye {
		slot = &p.leftRgb
	}
	*slot = &frameInfo[estimate.RgbNetOutput]{estimate: out.Value, frame: *frame}
	return broker.Continue
}

// HandleFaceIdentifier implements orb.Plan: track the highest-scoring
// valid self-custody candidate seen this session, and once one is found
// switch the RGB pipeline back to RGB-Net-only mode (the fused pass has
// done its job for this session).
func (p *Plan) HandleFaceIdentifier(ctx context.Context, o *orb.Orb, out port.Output[estimate.FaceIdentifierOutput], frame *camera.Frame) broker.Flow {
	est := out.Value
	slog.Debug("face self-custody frame score", "score", est.Score)
	if est.Error != "" {
		slog.Error("face self-custody frame error", "error", est.Error)
	}
	if !est.IsValid {
		return broker.Continue
	}

	highest := 0.0
	if p.selfCustodyCandidate != nil {
		highest = p.selfCustodyCandidate.estimate.Score
	}
	if est.Score > highest {
		if frame == nil {
			slog.Error("face_identifier: accepted estimate has no paired frame")
			return broker.Continue
		}
		slog.Info("new face self-custody frame captured", "score", est.Score)
		p.selfCustodyCandidate = &frameInfo[estimate.FaceIdentifierOutput]{estimate: est, frame: *frame}
	}
	o.SetOnlyRgbNetFrames(true)
	return broker.Continue
}

// PollExtra implements orb.Plan: drains GPS broadcasts, checks whether
// the current objective's eye now has both an accepted IR and RGB frame
// (breaking the broker loop if so, unless this is the last objective and
// no self-custody candidate has been found yet), and checks the session
// timeout.
func (p *Plan) PollExtra(ctx context.Context, o *orb.Orb) broker.Flow {
drainGps:
	for {
		select {
		case broadcast, ok := <-o.Mcu.Broadcasts():
			if !ok {
				break drainGps
			}
			p.trackGps(broadcast.NMEA)
		default:
			break drainGps
		}
	}

	var ir *frameInfo[estimate.IrNetOutput]
	var rgb *frameInfo[estimate.RgbNetOutput]
	if p.targetLeftEye {
		ir, rgb = p.leftIr, p.leftRgb
	} else {
		ir, rgb = p.rightIr, p.rightRgb
	}
	if ir != nil && rgb != nil {
		if !p.isLastObjective() {
			return broker.Break
		}
		if p.selfCustodyCandidate != nil {
			return broker.Break
		}
	}

	if p.timeout > 0 && !p.timedOut && time.Now().After(p.deadline) {
		p.timedOut = true
		return broker.Break
	}
	return broker.Continue
}

func (p *Plan) trackGps(nmea string) {
	latitude, longitude, ok := parseNMEAGGAFix(nmea)
	if !ok {
		return
	}
	prevLat, prevLon := 0.0, 0.0
	if p.latitude != nil {
		prevLat = *p.latitude
	}
	if p.longitude != nil {
		prevLon = *p.longitude
	}
	p.gpsPoints++
	newLat := prevLat + (latitude-prevLat)/float64(p.gpsPoints)
	newLon := prevLon + (longitude-prevLon)/float64(p.gpsPoints)
	p.latitude, p.longitude = &newLat, &newLon
}

// updateUX recomputes the capture progress bar and drives the ring LED:
// the maximum sharpness seen this objective fills its share of the
// progress bar, and a captured self-custody candidate contributes a
// fixed share on top.
func (p *Plan) updateUX(ctx context.Context, o *orb.Orb, sharpness float64) {
	p.maxSharpness = max(p.maxSharpness, sharpness)

	currObjectiveIndex := float64(p.objectiveIndex - 1)
	currObjectiveProgress := min(p.maxSharpness/IrisScoreMin, 1.0)
	totalObjectiveProgress := (currObjectiveIndex + currObjectiveProgress) / float64(p.totalObjectives)

	progress := totalObjectiveProgress * (maxProgress - faceIdentifiedProgress)
	if p.selfCustodyCandidate != nil {
		progress += faceIdentifiedProgress
	}

	if err := p.led.Drive(ctx, led.Progress, progress); err != nil {
		slog.Warn("led drive failed", "error", err)
	}
	if p.isLastObjective() {
		if err := p.led.Drive(ctx, led.Success, progress); err != nil {
			slog.Warn("led drive failed", "error", err)
		}
	}
}

// updateOcclusion folds the latest IR-Net occlusion-30 reading into the
// low-pass filter and applies hysteresis plus a minimum pulse time before
// driving the occlusion-warning LED pattern.
func (p *Plan) updateOcclusion(ctx context.Context, est estimate.IrNetOutput) {
	dt := p.occlusionTimer.dtSeconds()
	occlusion30 := est.Occlusion30
	if !est.IsSharpnessReliable(irisSharpnessMin) {
		occlusion30 = thresholdOcclusion30 * 1.05
	}
	filtered := p.occlusionFilter.add(occlusion30, dt, occlusionLowPassRC)

	var detected bool
	if p.occlusionIndicatorOn != nil {
		detected = filtered < thresholdOcclusion30*1.025 ||
			time.Since(*p.occlusionIndicatorOn) < occlusionIndicatorMinInterval
	} else {
		detected = filtered < thresholdOcclusion30*0.975
	}

	if detected {
		if p.occlusionIndicatorOn == nil {
			now := time.Now()
			p.occlusionIndicatorOn = &now
		}
		if err := p.led.Drive(ctx, led.OcclusionWarning, 0); err != nil {
			slog.Warn("led drive failed", "error", err)
		}
	} else {
		p.occlusionIndicatorOn = nil
		if err := p.led.Drive(ctx, led.Off, 0); err != nil {
			slog.Warn("led drive failed", "error", err)
		}
	}
}

// continuousCalibration performs the light mirror re-calibration run at
// the end of every successful capture: it takes the least-absolute-value
// horizontal/vertical mirror offsets observed this session, scales them
// down, folds them into the stored calibration, persists it, and pushes
// it back to the mirror actuator.
func (p *Plan) continuousCalibration(ctx context.Context, o *orb.Orb) error {
	slog.Info("mirror offsets after successful capture", "offsets", p.mirrorOffsets)
	next := calibration.ReduceOffsets(o.Calibration(), p.mirrorOffsets)
	if p.calibrationStore != nil {
		if err := p.calibrationStore.Store(ctx, next); err != nil {
			slog.Error("continuous calibration: store failed", "error", err)
		}
	}
	return o.Recalibrate(ctx, next)
}
