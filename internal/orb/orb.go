// Package orb implements the facade: the named collection of agent cells
// and shared actuators, the pre-dispatch routing rules that run on every
// agent output before the Plan sees it, and the lifecycle procedures
// (start_*/stop_*, set_ir_wavelength, recalibrate) that combine agent
// enable/disable with actuator configuration.
package orb

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/orb-project/orb-core/internal/agent"
	"github.com/orb-project/orb-core/internal/calibration"
	"github.com/orb-project/orb-core/internal/camera"
	"github.com/orb-project/orb-core/internal/estimate"
	"github.com/orb-project/orb-core/internal/led"
	"github.com/orb-project/orb-core/internal/mcu"
	"github.com/orb-project/orb-core/internal/monitor"
	"github.com/orb-project/orb-core/internal/port"
	"github.com/orb-project/orb-core/internal/sound"
)

// pendingFrame is one entry of a per-model pending-frame queue: a frame
// retained until a matching estimate arrives, keyed by source timestamp.
type pendingFrame[F any] struct {
	frame    F
	sourceTS time.Time
}

// pendingQueue is the FIFO-by-source-timestamp queue reconstructing which
// frame produced which model estimate, tolerant of the drop-on-full
// backpressure policy: stale entries are skipped, not errored on.
type pendingQueue[F any] struct {
	mu sync.Mutex
	l  list.List
}

func (q *pendingQueue[F]) push(frame F, sourceTS time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.l.PushBack(pendingFrame[F]{frame: frame, sourceTS: sourceTS})
}

// pop scans from the front, discarding any entry older than sourceTS,
// and returns the first entry matching it exactly. Entries newer than
// sourceTS are always left in place.
func (q *pendingQueue[F]) pop(sourceTS time.Time) (F, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.l.Front(); e != nil; {
		next := e.Next()
		pf := e.Value.(pendingFrame[F])
		switch {
		case pf.sourceTS.Equal(sourceTS):
			q.l.Remove(e)
			return pf.frame, true
		case pf.sourceTS.Before(sourceTS):
			q.l.Remove(e)
		}
		e = next
	}
	var zero F
	return zero, false
}

func (q *pendingQueue[F]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}

// Orb is the facade: every agent cell the biometric-capture Plan drives,
// plus the shared actuators and bookkeeping the pre-dispatch rules
// consult.
type Orb struct {
	IrEyeCamera   *agent.Cell[camera.Command, port.Output[camera.Frame]]
	IrFaceCamera  *agent.Cell[camera.Command, port.Output[camera.Frame]]
	RgbCamera     *agent.Cell[camera.Command, port.Output[camera.Frame]]
	ThermalCamera *agent.Cell[camera.Command, port.Output[camera.Frame]]

	IrNet          *agent.Cell[port.Input[estimate.IrNetInput], port.Output[estimate.IrNetOutput]]
	RgbNet         *agent.Cell[port.Input[struct{}], port.Output[estimate.RgbNetOutput]]
	FaceIdentifier *agent.Cell[port.Input[struct{}], port.Output[estimate.FaceIdentifierOutput]]

	AutoFocus    *agent.Cell[AutoFocusInput, port.Output[AutoFocusOutput]]
	AutoExposure *agent.Cell[AutoExposureInput, port.Output[AutoExposureOutput]]
	EyeTracker   *agent.Cell[EyeTrackerInput, port.Output[EyeTrackerOutput]]
	EyePid       *agent.Cell[any, port.Output[EyePidOutput]]

	Mirror   *agent.Cell[MirrorCommand, port.Output[MirrorOutput]]
	Distance *agent.Cell[DistanceInput, port.Output[DistanceOutput]]
	QrCode   *agent.Cell[QrCodeInput, port.Output[QrCodeOutput]]
	Notary   *agent.Cell[NotaryInput, port.Output[struct{}]]
	Uploader *agent.Cell[NotaryInput, port.Output[struct{}]]

	Mcu   mcu.Mcu
	Led   led.Engine
	Sound sound.Player

	NetMonitor monitor.NetMonitor
	CpuMonitor monitor.CpuMonitor

	mu               sync.Mutex
	calibration      calibration.Calibration
	targetLeftEye    bool
	irLedWavelength  mcu.IrLed
	irLedDuration    uint16
	onlyRgbNetFrames bool
	focusMatrixCode  bool

	irAutoFocusUseRgbNetEstimate bool

	mirrorPoint  *MirrorPoint
	mirrorOffset *MirrorPoint

	irNetEnabled  bool
	rgbNetEnabled bool

	irNetFrames  pendingQueue[camera.Frame]
	rgbNetFrames pendingQueue[camera.Frame]
}

// Builder constructs an Orb, defaulting every optional dependency to its
// Fake implementation so partial configuration is always safe.
type Builder struct {
	calibration calibration.Calibration
	mcu         mcu.Mcu
	led         led.Engine
	sound       sound.Player
	netMonitor  monitor.NetMonitor
	cpuMonitor  monitor.CpuMonitor
}

// NewBuilder starts a Builder with every dependency defaulted to a Fake.
func NewBuilder() *Builder {
	return &Builder{
		mcu:        mcu.NewFake(),
		led:        &led.Fake{},
		sound:      &sound.Fake{},
		netMonitor: monitor.NewFakeNetMonitor(),
		cpuMonitor: monitor.NewFakeCpuMonitor(),
	}
}

func (b *Builder) WithCalibration(c calibration.Calibration) *Builder { b.calibration = c; return b }
func (b *Builder) WithMcu(m mcu.Mcu) *Builder                         { b.mcu = m; return b }
func (b *Builder) WithLed(l led.Engine) *Builder                      { b.led = l; return b }
func (b *Builder) WithSound(s sound.Player) *Builder                  { b.sound = s; return b }
func (b *Builder) WithNetMonitor(m monitor.NetMonitor) *Builder       { b.netMonitor = m; return b }
func (b *Builder) WithCpuMonitor(m monitor.CpuMonitor) *Builder       { b.cpuMonitor = m; return b }

// Build assembles the Orb facade. Every agent cell starts Disabled; the
// Plan's run_pre is responsible for enabling the ones it needs.
func (b *Builder) Build() *Orb {
	return &Orb{
		IrEyeCamera:      agent.NewCell[camera.Command, port.Output[camera.Frame]]("ir_eye_camera", agent.Thread, 4),
		IrFaceCamera:     agent.NewCell[camera.Command, port.Output[camera.Frame]]("ir_face_camera", agent.Thread, 4),
		RgbCamera:        agent.NewCell[camera.Command, port.Output[camera.Frame]]("rgb_camera", agent.Task, 4),
		ThermalCamera:    agent.NewCell[camera.Command, port.Output[camera.Frame]]("thermal_camera", agent.Subprocess, 4),
		IrNet:            agent.NewCell[port.Input[estimate.IrNetInput], port.Output[estimate.IrNetOutput]]("ir_net", agent.Subprocess, 4),
		RgbNet:           agent.NewCell[port.Input[struct{}], port.Output[estimate.RgbNetOutput]]("rgb_net", agent.Subprocess, 4),
		FaceIdentifier:   agent.NewCell[port.Input[struct{}], port.Output[estimate.FaceIdentifierOutput]]("face_identifier", agent.Subprocess, 4),
		AutoFocus:        agent.NewCell[AutoFocusInput, port.Output[AutoFocusOutput]]("ir_auto_focus", agent.Task, 4),
		AutoExposure:     agent.NewCell[AutoExposureInput, port.Output[AutoExposureOutput]]("ir_auto_exposure", agent.Task, 4),
		EyeTracker:       agent.NewCell[EyeTrackerInput, port.Output[EyeTrackerOutput]]("eye_tracker", agent.Thread, 4),
		EyePid:           agent.NewCell[any, port.Output[EyePidOutput]]("eye_pid_controller", agent.Task, 4),
		Mirror:           agent.NewCell[MirrorCommand, port.Output[MirrorOutput]]("mirror", agent.Task, 4),
		Distance:         agent.NewCell[DistanceInput, port.Output[DistanceOutput]]("distance", agent.Task, 4),
		QrCode:           agent.NewCell[QrCodeInput, port.Output[QrCodeOutput]]("qr_code", agent.Subprocess, 4),
		Notary:           agent.NewCell[NotaryInput, port.Output[struct{}]]("image_notary", agent.Thread, 16),
		Uploader:         agent.NewCell[NotaryInput, port.Output[struct{}]]("image_uploader", agent.Task, 16),
		Mcu:              b.mcu,
		Led:               b.led,
		Sound:             b.sound,
		NetMonitor:        b.netMonitor,
		CpuMonitor:        b.cpuMonitor,
		calibration:       b.calibration,
		onlyRgbNetFrames:  true,
		targetLeftEye:     false,
	}
}

// Calibration returns the facade's current mirror calibration.
func (o *Orb) Calibration() calibration.Calibration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calibration
}

// TargetLeftEye reports which eye is currently targeted.
func (o *Orb) TargetLeftEye() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.targetLeftEye
}

// OnlyRgbNetFrames reports whether the RGB pipeline is in RGB-Net-only
// mode (phase 1 of an objective pass) or fused with the face identifier.
func (o *Orb) OnlyRgbNetFrames() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.onlyRgbNetFrames
}

// SetOnlyRgbNetFrames switches the RGB pipeline mode.
func (o *Orb) SetOnlyRgbNetFrames(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onlyRgbNetFrames = v
}

// MirrorOffset returns the most recent eye-PID correction stored by
// DispatchEyePid, or nil if the PID controller has not produced one yet.
func (o *Orb) MirrorOffset() *MirrorPoint {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mirrorOffset == nil {
		return nil
	}
	offset := *o.mirrorOffset
	return &offset
}

// SetAutoFocusUseRgbNetEstimate switches autofocus between following
// IR-Net sharpness readings and following the RGB-Net bounding box.
func (o *Orb) SetAutoFocusUseRgbNetEstimate(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.irAutoFocusUseRgbNetEstimate = v
}

// EnableIrNet marks the IR-Net pipeline active, so IR-eye frames are
// routed to it by the pre-dispatch rules instead of straight to autofocus
// and the notary.
func (o *Orb) EnableIrNet(ctx context.Context, runner agent.Runner[port.Input[estimate.IrNetInput], port.Output[estimate.IrNetOutput]]) error {
	if err := o.IrNet.Enable(ctx, runner); err != nil {
		return err
	}
	o.mu.Lock()
	o.irNetEnabled = true
	o.mu.Unlock()
	return nil
}

// DisableIrNet tears down the IR-Net agent and marks the pipeline
// inactive.
func (o *Orb) DisableIrNet() error {
	o.mu.Lock()
	o.irNetEnabled = false
	o.mu.Unlock()
	if !o.IrNet.IsEnabled() {
		return nil
	}
	return o.IrNet.Disable()
}

// EnableRgbNet marks the RGB-Net/face-identifier pipeline active and
// starts both agents, since the fused pre-dispatch rule may route to
// either depending on OnlyRgbNetFrames. onlyRgbNetFrames sets the initial
// routing mode.
func (o *Orb) EnableRgbNet(ctx context.Context, rgbNetRunner agent.Runner[port.Input[struct{}], port.Output[estimate.RgbNetOutput]], faceIdentifierRunner agent.Runner[port.Input[struct{}], port.Output[estimate.FaceIdentifierOutput]], onlyRgbNetFrames bool) error {
	if err := o.RgbNet.Enable(ctx, rgbNetRunner); err != nil {
		return err
	}
	if err := o.FaceIdentifier.Enable(ctx, faceIdentifierRunner); err != nil {
		return err
	}
	o.mu.Lock()
	o.rgbNetEnabled = true
	o.onlyRgbNetFrames = onlyRgbNetFrames
	o.mu.Unlock()
	return nil
}

// DisableRgbNet tears down both the RGB-Net and face-identifier agents
// and marks the pipeline inactive.
func (o *Orb) DisableRgbNet() error {
	o.mu.Lock()
	o.rgbNetEnabled = false
	o.mu.Unlock()
	if o.RgbNet.IsEnabled() {
		if err := o.RgbNet.Disable(); err != nil {
			return err
		}
	}
	if o.FaceIdentifier.IsEnabled() {
		if err := o.FaceIdentifier.Disable(); err != nil {
			return err
		}
	}
	return nil
}
