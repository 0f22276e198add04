package camera

import (
	"context"
	"time"

	"github.com/orb-project/orb-core/internal/port"
)

// FakeRunner is a deterministic agent.Runner[Command, port.Output[Frame]]
// driven entirely by PushFrame from a test, standing in for a real sensor
// driver agent under the Thread execution model.
type FakeRunner struct {
	Kind  Kind
	log   Log
	push  chan Frame
	width int
	height int

	gain       float64
	exposureUS uint32

	fisheyeWidth, fisheyeHeight uint32
	undistortionEnabled         bool
}

// NewFakeRunner returns a FakeRunner with a buffered injection channel.
func NewFakeRunner(kind Kind, width, height int) *FakeRunner {
	return &FakeRunner{Kind: kind, push: make(chan Frame, 32), width: width, height: height}
}

// PushFrame injects pixels as a new Frame of this runner's Kind. It is
// safe to call before or after Run starts; a frame that Run reads while
// it is not streaming (before Start, or after Stop) is discarded.
func (r *FakeRunner) PushFrame(pixels []byte) {
	r.push <- New(r.Kind, r.width, r.height, pixels)
}

// Run implements agent.Runner.
func (r *FakeRunner) Run(ctx context.Context, in <-chan Command, out chan<- port.Output[Frame]) error {
	streaming := false
	r.log.EnabledAt = time.Now()
	for {
		select {
		case <-ctx.Done():
			r.log.DisabledAt = time.Now()
			return nil
		case cmd, ok := <-in:
			if !ok {
				return nil
			}
			r.log.Record(cmd)
			switch cmd.Kind {
			case CmdStart:
				streaming = true
			case CmdStop:
				streaming = false
			case CmdReset:
				streaming = true
			case CmdSetGain:
				r.gain = cmd.Gain
			case CmdSetExposure:
				r.exposureUS = cmd.ExposureUS
			case CmdFisheye:
				r.fisheyeWidth, r.fisheyeHeight, r.undistortionEnabled = cmd.FisheyeWidth, cmd.FisheyeHeight, cmd.UndistortionEnabled
			}
		case frame := <-r.push:
			if !streaming {
				continue
			}
			r.log.FramesEmitted++
			out <- port.Output[Frame]{Value: frame, SourceTS: frame.SourceTS()}
		}
	}
}

// Log returns the runner's accumulated Log. Only safe to call after the
// runner has stopped.
func (r *FakeRunner) Log() Log { return r.log }

// Gain returns the last gain value set via SetGain, for test assertions.
func (r *FakeRunner) Gain() float64 { return r.gain }

// ExposureUS returns the last exposure value set via SetExposure, for
// test assertions.
func (r *FakeRunner) ExposureUS() uint32 { return r.exposureUS }

// FisheyeConfig returns the last fisheye parameters set via Fisheye, for
// test assertions.
func (r *FakeRunner) FisheyeConfig() (width, height uint32, undistortionEnabled bool) {
	return r.fisheyeWidth, r.fisheyeHeight, r.undistortionEnabled
}
