package mcu

import (
	"context"
	"sync"
)

// Fake is an in-memory Mcu used by tests and by brokers running without
// attached hardware. It never fails a Send and records every command into
// its Log for assertions.
type Fake struct {
	mu         sync.Mutex
	log        Log
	broadcasts chan GpsBroadcast

	wavelength IrLed
	duration   uint16
	duration740 uint16
	frameRate  uint16
}

// NewFake returns a ready-to-use Fake with a buffered broadcast channel so
// tests can push GPS fixes without a concurrent reader.
func NewFake() *Fake {
	return &Fake{broadcasts: make(chan GpsBroadcast, 16)}
}

// Send implements Mcu.
func (f *Fake) Send(ctx context.Context, cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.record(cmd)
	switch c := cmd.(type) {
	case SetIrLed:
		f.wavelength = c.Wavelength
	case SetIrLedDuration:
		f.duration = c.Microseconds
	case SetIrLedDuration740nm:
		f.duration740 = c.Microseconds
	case SetFrameRate:
		f.frameRate = c.Hertz
	}
	return nil
}

// Broadcasts implements Mcu.
func (f *Fake) Broadcasts() <-chan GpsBroadcast { return f.broadcasts }

// Close implements Mcu.
func (f *Fake) Close() error {
	close(f.broadcasts)
	return nil
}

// PushGps feeds a synthetic NMEA sentence to Broadcasts, for tests driving
// the GPS-averaging behavior of the biometric-capture Plan.
func (f *Fake) PushGps(nmea string) {
	f.broadcasts <- GpsBroadcast{NMEA: nmea}
}

// Log returns a copy of every command sent so far.
func (f *Fake) Log() Log {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmds := make([]Command, len(f.log.Commands))
	copy(cmds, f.log.Commands)
	return Log{Commands: cmds}
}

// Wavelength returns the last wavelength set via SetIrLed.
func (f *Fake) Wavelength() IrLed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wavelength
}
