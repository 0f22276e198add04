package camera

import (
	"fmt"
	"time"
)

// CommandKind distinguishes the operations a camera agent's inbox accepts.
type CommandKind int

const (
	// CmdStart begins streaming frames to the agent's output.
	CmdStart CommandKind = iota
	// CmdStop ends streaming; the agent keeps running, and keeps its Log,
	// until its cell is disabled.
	CmdStop
	// CmdReset fully restarts the capture pipeline, used by the RGB
	// camera to guarantee no stale frames from a previous objective
	// leak into the next one.
	CmdReset
	// CmdSetGain updates the sensor's analog gain, driven by the
	// autoexposure agent.
	CmdSetGain
	// CmdSetExposure updates the sensor's exposure time, driven by the
	// autoexposure agent.
	CmdSetExposure
	// CmdFisheye reconfigures the lens-distortion correction applied
	// before frames leave the agent, sent to the RGB camera by
	// Orb.SetFisheye.
	CmdFisheye
)

// Command is sent to a camera agent's inbox to control acquisition and,
// for the IR cameras, the gain/exposure values autoexposure converges on.
type Command struct {
	Kind                CommandKind
	Gain                float64
	ExposureUS          uint32
	FisheyeWidth        uint32
	FisheyeHeight       uint32
	UndistortionEnabled bool
}

var (
	// Start begins streaming frames to the agent's output.
	Start = Command{Kind: CmdStart}
	// Stop ends streaming; the agent keeps running, and keeps its Log,
	// until its cell is disabled.
	Stop = Command{Kind: CmdStop}
	// Reset fully restarts the capture pipeline, used by the RGB camera
	// to guarantee no stale frames from a previous objective leak into
	// the next one.
	Reset = Command{Kind: CmdReset}
)

// SetGain builds a command updating the sensor's analog gain.
func SetGain(gain float64) Command { return Command{Kind: CmdSetGain, Gain: gain} }

// SetExposure builds a command updating the sensor's exposure time.
func SetExposure(us uint32) Command { return Command{Kind: CmdSetExposure, ExposureUS: us} }

// Fisheye builds a command reconfiguring lens-distortion correction to
// match the given resolution.
func Fisheye(width, height uint32, undistortionEnabled bool) Command {
	return Command{Kind: CmdFisheye, FisheyeWidth: width, FisheyeHeight: height, UndistortionEnabled: undistortionEnabled}
}

func (c Command) String() string {
	switch c.Kind {
	case CmdStart:
		return "start"
	case CmdStop:
		return "stop"
	case CmdReset:
		return "reset"
	case CmdSetGain:
		return fmt.Sprintf("set_gain(%.3f)", c.Gain)
	case CmdSetExposure:
		return fmt.Sprintf("set_exposure(%dus)", c.ExposureUS)
	case CmdFisheye:
		return fmt.Sprintf("fisheye(%dx%d, undistort=%v)", c.FisheyeWidth, c.FisheyeHeight, c.UndistortionEnabled)
	default:
		return "unknown"
	}
}

// Log records what a camera agent actually did during one enabled
// lifetime: every Command it received and basic frame-production
// statistics.
type Log struct {
	Kind          Kind
	Commands      []Command
	FramesEmitted int
	EnabledAt     time.Time
	DisabledAt    time.Time
}

// Record appends a command to the log. Exported so a real driver agent
// and the Fake share the same bookkeeping helper.
func (l *Log) Record(c Command) { l.Commands = append(l.Commands, c) }
