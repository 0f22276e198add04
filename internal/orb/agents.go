package orb

import "github.com/orb-project/orb-core/internal/estimate"

// AutoFocusInput carries whatever signal the autofocus agent uses to
// adjust the liquid lens: either a fresh IR-Net sharpness reading or, when
// configured to do so, an RGB-Net bounding box.
type AutoFocusInput struct {
	Sharpness   *float64
	RgbNetBbox  *estimate.Rectangle
}

// AutoFocusOutput is the liquid lens focus value the agent has converged
// on.
type AutoFocusOutput struct {
	Focus int16
}

// AutoExposureInput carries the frame mean the agent uses to adjust gain
// and exposure toward the configured target mean.
type AutoExposureInput struct {
	FrameMean float64
}

// AutoExposureOutput is the gain/exposure pair the agent has converged on,
// which also drives the IR illuminator duration to keep exposure and
// illumination consistent.
type AutoExposureOutput struct {
	Gain       float64
	ExposureUS uint32
}

// FisheyeConfig carries the RGB camera's resolution so the eye tracker and
// RGB camera agent can correct for lens distortion before deriving a
// landmark-to-mirror mapping.
type FisheyeConfig struct {
	RgbWidth, RgbHeight uint32
}

// EyeTrackerInput carries the RGB-Net eye landmark the tracker follows,
// plus an optional fisheye reconfiguration sent by SetFisheye.
type EyeTrackerInput struct {
	EyeLandmark estimate.Point
	Fisheye     *FisheyeConfig
}

// EyeTrackerOutput is a mirror setpoint derived from gaze tracking.
type EyeTrackerOutput struct {
	Point MirrorPoint
}

// EyePidInput carries the IR-Net perceived eye position error signal.
type EyePidInput struct {
	Error float64
}

// EyePidOutput is a mirror offset correction.
type EyePidOutput struct {
	Offset MirrorPoint
}

// SwitchEye is sent to the eye-PID controller when the Plan's target eye
// changes, so its internal error integrator resets rather than applying
// stale history to the other eye.
type SwitchEye struct{}

// MirrorPoint is a two-axis mirror position, shared by the eye-tracker,
// eye-PID, and mirror actuator contracts.
type MirrorPoint struct {
	Horizontal, Vertical float64
}

// MirrorCommand is the mirror actuator's input contract: either an
// absolute SetPoint or a full Recalibrate with new calibration offsets.
type MirrorCommand struct {
	SetPoint    *MirrorPoint
	Recalibrate *MirrorRecalibrate
}

// MirrorRecalibrate carries new calibration offsets to the mirror
// actuator.
type MirrorRecalibrate struct {
	HorizontalOffset, VerticalOffset float64
}

// MirrorOutput is the mirror actuator's reported physical position, in
// motor steps.
type MirrorOutput struct {
	XSteps, YSteps int32
}

// DistanceInput carries whatever upstream estimate the distance agent
// uses (IR-Net or RGB-Net derived) to estimate user distance from the
// device.
type DistanceInput struct {
	Sharpness float64
}

// DistanceOutput is the estimated distance, in millimeters.
type DistanceOutput struct {
	Millimeters float64
}

// NotaryInput is a frame reference the image notary persists for audit
// purposes; it does not participate in the Plan's acceptance logic.
type NotaryInput struct {
	FrameID uint64
}

// QrCodeInput is an RGB frame reference forwarded for QR decoding when
// the facade's qr-code agent is enabled.
type QrCodeInput struct {
	FrameID uint64
}

// QrCodeOutput is a decoded QR payload, if any.
type QrCodeOutput struct {
	Payload string
}
