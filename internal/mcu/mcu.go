// Package mcu declares the command surface exchanged with the Orb's
// microcontroller: IR LED wavelength and duration, camera triggering,
// frame rate, liquid lens focus, mirror actuation, and shutdown, plus the
// GPS broadcast the MCU pushes back unsolicited. A real implementation
// drives the serial link; Fake satisfies the same interface for tests and
// for brokers not attached to real hardware.
package mcu

import (
	"context"
	"fmt"
)

// IrLed selects the active infrared illuminator wavelength. IrLed740 is the
// legacy wavelength: it takes a distinct MCU message for its PWM duration
// (SetIrLedDuration740nm) instead of the common SetIrLedDuration path used
// by every other wavelength.
type IrLed int

const (
	IrLedNone IrLed = iota
	IrLed740
	IrLed850
	IrLed940
)

func (l IrLed) String() string {
	switch l {
	case IrLedNone:
		return "none"
	case IrLed740:
		return "740nm"
	case IrLed850:
		return "850nm"
	case IrLed940:
		return "940nm"
	default:
		return "unknown"
	}
}

// Command is the sum type of every message the facade may send to the
// MCU. Each variant is carried as its own Go type so Mcu.Send can be a
// plain interface method rather than a hand-rolled tag switch at the call
// site.
type Command interface{ isCommand() }

// SetIrLed changes the active IR LED wavelength.
type SetIrLed struct{ Wavelength IrLed }

// SetIrLedDuration sets the PWM duration, in microseconds, for every
// wavelength except 740nm.
type SetIrLedDuration struct{ Microseconds uint16 }

// SetIrLedDuration740nm sets the PWM duration for the 740nm wavelength,
// which the MCU firmware exposes as a distinct register.
type SetIrLedDuration740nm struct{ Microseconds uint16 }

// TriggeringIrEyeCamera toggles the MCU's IR-eye-camera trigger line.
type TriggeringIrEyeCamera struct{ Enabled bool }

// TriggeringIrFaceCamera toggles the MCU's IR-face-camera trigger line.
type TriggeringIrFaceCamera struct{ Enabled bool }

// SetFrameRate sets the shared trigger frame rate, in hertz, used by
// whichever IR camera is currently triggering.
type SetFrameRate struct{ Hertz uint16 }

// SetLiquidLens adjusts the autofocus liquid lens. A nil Focus disables
// the lens drive entirely.
type SetLiquidLens struct{ Focus *int16 }

// SetMirror commands the two-axis mirror to absolute phi/theta angles.
type SetMirror struct{ Phi, Theta float64 }

// Shutdown asks the MCU to power the device off within MaxDelaySeconds.
type Shutdown struct{ MaxDelaySeconds uint16 }

func (SetIrLed) isCommand()                {}
func (SetIrLedDuration) isCommand()        {}
func (SetIrLedDuration740nm) isCommand()   {}
func (TriggeringIrEyeCamera) isCommand()   {}
func (TriggeringIrFaceCamera) isCommand()  {}
func (SetFrameRate) isCommand()            {}
func (SetLiquidLens) isCommand()           {}
func (SetMirror) isCommand()               {}
func (Shutdown) isCommand()                {}

// GpsBroadcast is an unsolicited NMEA sentence the MCU pushes whenever a
// GPS fix update is available.
type GpsBroadcast struct {
	NMEA string
}

// Mcu is the single-writer command bus the facade uses to talk to the
// microcontroller. Implementations must serialize concurrent Send calls
// internally; the facade never issues overlapping sends on the same
// command kind.
type Mcu interface {
	// Send delivers a command, returning once the MCU has acknowledged
	// it or an error if the link is unavailable.
	Send(ctx context.Context, cmd Command) error
	// Broadcasts returns the channel of unsolicited MCU pushes (GPS
	// fixes).
	Broadcasts() <-chan GpsBroadcast
	// Close releases the underlying transport.
	Close() error
}

// Log records every command sent for a session, mirroring how camera and
// other hardware-facing agents expose a Log of what actually happened for
// post-session diagnostics and the audit trail.
type Log struct {
	Commands []Command
}

func (l *Log) record(cmd Command) { l.Commands = append(l.Commands, cmd) }

// ErrLinkUnavailable is returned by Send when the MCU transport could not
// be reached at all, as opposed to the MCU responding with a firmware
// error.
var ErrLinkUnavailable = fmt.Errorf("mcu: link unavailable")
