// Package estimate declares the model-output value types consumed by the
// biometric-capture Plan: IR-Net quality estimates, RGB-Net landmark
// estimates, and the face-identifier validity result.
package estimate

import "math"

// IrNetInput is what the IR-Net model agent consumes: a frame reference
// (carried by the port envelope, not here) plus the targeting context the
// Plan must echo back so a fused or delayed reply can be re-associated.
type IrNetInput struct {
	TargetLeftEye   bool
	FocusMatrixCode bool
}

// IrNetOutput is the per-frame quality estimate IR-Net produces.
type IrNetOutput struct {
	// Sharpness is the estimated optical sharpness; below
	// IRIS_SHARPNESS_MIN the occlusion reading for this frame is
	// considered unreliable and substituted.
	Sharpness float64
	// Score is the iris quality score gating frame acceptance.
	Score float64
	// PerceivedSide is the eye side the model believes it is looking
	// at: 0 for right, 1 for left. Nil when the model could not tell.
	PerceivedSide *int
	// Occlusion30 is the fraction of the iris occluded within a 30
	// degree cone, the raw signal behind the occlusion indicator LED.
	Occlusion30 float64
	// GazeOffset is IR-Net's perceived eye-position error: how far the
	// pupil sits from the frame center, normalized to frame width and
	// signed positive toward the temporal side. It is the error signal
	// the eye-PID controller drives toward zero.
	GazeOffset float64
}

// IsSharpnessReliable reports whether Sharpness clears the minimum for
// its Occlusion30 reading to be trusted.
func (o IrNetOutput) IsSharpnessReliable(minSharpness float64) bool {
	return !math.IsNaN(o.Sharpness) && !math.IsNaN(o.Occlusion30) && o.Sharpness >= minSharpness
}
