package orb

import (
	"context"
	"fmt"
	"time"

	"github.com/orb-project/orb-core/internal/agent"
	"github.com/orb-project/orb-core/internal/calibration"
	"github.com/orb-project/orb-core/internal/camera"
	"github.com/orb-project/orb-core/internal/mcu"
	"github.com/orb-project/orb-core/internal/port"
)

// irCameraFrameRate is the shared trigger rate for both IR cameras. Per
// the component design, whichever start_ir_*_camera call runs last
// re-asserts this rate on the MCU; the intended semantics are a single
// shared rate, not an independent one per camera.
const irCameraFrameRate = 60

// irCameraStopDelay is held after disabling an IR camera cell so any
// frame already mid-flight from the driver is not mistaken for output
// from the next objective.
const irCameraStopDelay = time.Duration(2000/irCameraFrameRate) * time.Millisecond

// SetIrWavelength sends the new IR LED wavelength to the MCU and records
// it. It does not change any autoexposure setting.
func (o *Orb) SetIrWavelength(ctx context.Context, wavelength mcu.IrLed) error {
	if err := o.Mcu.Send(ctx, mcu.SetIrLed{Wavelength: wavelength}); err != nil {
		return fmt.Errorf("orb: set ir wavelength: %w", err)
	}
	o.mu.Lock()
	o.irLedWavelength = wavelength
	o.mu.Unlock()
	return nil
}

// SetIrDuration updates the active IR LED PWM duration, routing to the
// 740nm-specific MCU message when that wavelength is active.
func (o *Orb) SetIrDuration(ctx context.Context, durationUS uint16) error {
	o.mu.Lock()
	wavelength := o.irLedWavelength
	o.mu.Unlock()

	var err error
	if wavelength == mcu.IrLed740 {
		err = o.Mcu.Send(ctx, mcu.SetIrLedDuration740nm{Microseconds: durationUS})
	} else {
		err = o.Mcu.Send(ctx, mcu.SetIrLedDuration{Microseconds: durationUS})
	}
	if err != nil {
		return fmt.Errorf("orb: set ir duration: %w", err)
	}
	o.mu.Lock()
	o.irLedDuration = durationUS
	o.mu.Unlock()
	return nil
}

// DisableIrLed turns the illuminator off entirely.
func (o *Orb) DisableIrLed(ctx context.Context) error {
	if err := o.SetIrWavelength(ctx, mcu.IrLedNone); err != nil {
		return err
	}
	return o.SetIrDuration(ctx, 0)
}

// StartIrEyeCamera enables the IR eye camera agent and its shared
// illuminator, asserting the shared IR trigger frame rate.
func (o *Orb) StartIrEyeCamera(ctx context.Context, runner agent.Runner[camera.Command, port.Output[camera.Frame]]) error {
	if err := o.Mcu.Send(ctx, mcu.TriggeringIrEyeCamera{Enabled: true}); err != nil {
		return err
	}
	if err := o.Mcu.Send(ctx, mcu.SetFrameRate{Hertz: irCameraFrameRate}); err != nil {
		return err
	}
	if err := o.IrEyeCamera.Enable(ctx, runner); err != nil {
		return err
	}
	return o.IrEyeCamera.Send(ctx, camera.Start)
}

// StopIrEyeCamera disables the IR eye camera agent and, if the IR face
// camera isn't also running, turns off the shared illuminator. It must
// not be called from inside a broker handler: it awaits MCU
// acknowledgements and a fixed settle delay.
func (o *Orb) StopIrEyeCamera(ctx context.Context) error {
	if err := o.IrEyeCamera.Send(ctx, camera.Stop); err != nil {
		return err
	}
	if err := o.IrEyeCamera.Disable(); err != nil {
		return err
	}
	time.Sleep(irCameraStopDelay)
	if !o.IrFaceCamera.IsEnabled() {
		if err := o.DisableIrLed(ctx); err != nil {
			return err
		}
	}
	return o.Mcu.Send(ctx, mcu.TriggeringIrEyeCamera{Enabled: false})
}

// StartIrFaceCamera is the face-camera counterpart of StartIrEyeCamera.
func (o *Orb) StartIrFaceCamera(ctx context.Context, runner agent.Runner[camera.Command, port.Output[camera.Frame]]) error {
	if err := o.Mcu.Send(ctx, mcu.TriggeringIrFaceCamera{Enabled: true}); err != nil {
		return err
	}
	if err := o.Mcu.Send(ctx, mcu.SetFrameRate{Hertz: irCameraFrameRate}); err != nil {
		return err
	}
	if err := o.IrFaceCamera.Enable(ctx, runner); err != nil {
		return err
	}
	return o.IrFaceCamera.Send(ctx, camera.Start)
}

// StopIrFaceCamera is the face-camera counterpart of StopIrEyeCamera.
func (o *Orb) StopIrFaceCamera(ctx context.Context) error {
	if err := o.IrFaceCamera.Send(ctx, camera.Stop); err != nil {
		return err
	}
	if err := o.IrFaceCamera.Disable(); err != nil {
		return err
	}
	time.Sleep(irCameraStopDelay)
	if !o.IrEyeCamera.IsEnabled() {
		if err := o.DisableIrLed(ctx); err != nil {
			return err
		}
	}
	return o.Mcu.Send(ctx, mcu.TriggeringIrFaceCamera{Enabled: false})
}

// SetTargetLeftEye switches the targeted eye and resets the eye-PID
// controller's error integrator, since its prior history belongs to the
// other eye.
func (o *Orb) SetTargetLeftEye(ctx context.Context, targetLeftEye bool) error {
	o.mu.Lock()
	o.targetLeftEye = targetLeftEye
	o.mu.Unlock()
	return o.EyePid.SendUnjam(ctx, SwitchEye{})
}

// Recalibrate updates the stored calibration and pushes it to the mirror
// actuator.
func (o *Orb) Recalibrate(ctx context.Context, cal calibration.Calibration) error {
	o.mu.Lock()
	o.calibration = cal
	o.mu.Unlock()
	return o.Mirror.SendUnjam(ctx, MirrorCommand{Recalibrate: &MirrorRecalibrate{
		HorizontalOffset: cal.Mirror.HorizontalOffset,
		VerticalOffset:   cal.Mirror.VerticalOffset,
	}})
}

// EnableMirror enables the mirror actuator agent.
func (o *Orb) EnableMirror(ctx context.Context, runner agent.Runner[MirrorCommand, port.Output[MirrorOutput]]) error {
	return o.Mirror.Enable(ctx, runner)
}

// DisableMirror tears down the mirror actuator agent, if enabled.
func (o *Orb) DisableMirror() error {
	if !o.Mirror.IsEnabled() {
		return nil
	}
	return o.Mirror.Disable()
}

// EnableDistance enables the distance-estimation agent.
func (o *Orb) EnableDistance(ctx context.Context, runner agent.Runner[DistanceInput, port.Output[DistanceOutput]]) error {
	return o.Distance.Enable(ctx, runner)
}

// DisableDistance tears down the distance-estimation agent, if enabled.
func (o *Orb) DisableDistance() error {
	if !o.Distance.IsEnabled() {
		return nil
	}
	return o.Distance.Disable()
}

// StartAutoFocus enables the autofocus agent and configures whether it
// follows IR-Net sharpness readings or the RGB-Net bounding box.
func (o *Orb) StartAutoFocus(ctx context.Context, runner agent.Runner[AutoFocusInput, port.Output[AutoFocusOutput]], useRgbNetEstimate bool) error {
	o.SetAutoFocusUseRgbNetEstimate(useRgbNetEstimate)
	return o.AutoFocus.Enable(ctx, runner)
}

// StopAutoFocus tears down the autofocus agent, if enabled.
func (o *Orb) StopAutoFocus() error {
	if !o.AutoFocus.IsEnabled() {
		return nil
	}
	return o.AutoFocus.Disable()
}

// StartAutoExposure enables the autoexposure agent.
func (o *Orb) StartAutoExposure(ctx context.Context, runner agent.Runner[AutoExposureInput, port.Output[AutoExposureOutput]]) error {
	return o.AutoExposure.Enable(ctx, runner)
}

// StopAutoExposure tears down the autoexposure agent, if enabled.
func (o *Orb) StopAutoExposure() error {
	if !o.AutoExposure.IsEnabled() {
		return nil
	}
	return o.AutoExposure.Disable()
}

// StartEyeTracker enables the eye-tracker agent.
func (o *Orb) StartEyeTracker(ctx context.Context, runner agent.Runner[EyeTrackerInput, port.Output[EyeTrackerOutput]]) error {
	return o.EyeTracker.Enable(ctx, runner)
}

// StopEyeTracker tears down the eye-tracker agent, if enabled.
func (o *Orb) StopEyeTracker() error {
	if !o.EyeTracker.IsEnabled() {
		return nil
	}
	return o.EyeTracker.Disable()
}

// EnableEyePid enables the eye-PID controller agent.
func (o *Orb) EnableEyePid(ctx context.Context, runner agent.Runner[any, port.Output[EyePidOutput]]) error {
	return o.EyePid.Enable(ctx, runner)
}

// DisableEyePid tears down the eye-PID controller agent, if enabled.
func (o *Orb) DisableEyePid() error {
	if !o.EyePid.IsEnabled() {
		return nil
	}
	return o.EyePid.Disable()
}

// SetFisheye pushes lens-distortion correction parameters to the eye
// tracker and RGB camera, so both agree on the resolution landmark
// coordinates are expressed in.
func (o *Orb) SetFisheye(ctx context.Context, width, height uint32, undistortionEnabled bool) error {
	if o.EyeTracker.IsEnabled() {
		if err := o.EyeTracker.SendUnjam(ctx, EyeTrackerInput{Fisheye: &FisheyeConfig{RgbWidth: width, RgbHeight: height}}); err != nil {
			return err
		}
	}
	if o.RgbCamera.IsEnabled() {
		return o.RgbCamera.SendUnjam(ctx, camera.Fisheye(width, height, undistortionEnabled))
	}
	return nil
}

// Shutdown asks the MCU to power the device off within maxDelay.
func (o *Orb) Shutdown(ctx context.Context, maxDelay time.Duration) error {
	return o.Mcu.Send(ctx, mcu.Shutdown{MaxDelaySeconds: uint16(maxDelay / time.Second)})
}
