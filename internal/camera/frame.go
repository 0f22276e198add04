// Package camera defines the Frame value exchanged between the sensor
// agents, the perception-model agents, and the biometric-capture Plan, and
// the camera agent's Input/Output/Command contracts.
package camera

import (
	"sync/atomic"
	"time"
)

var frameSeq atomic.Uint64

// Kind distinguishes which physical sensor produced a Frame.
type Kind int

const (
	KindIR Kind = iota
	KindRGB
	KindThermal
)

// Frame is an opaque, cheaply-cloneable handle to an acquired image. The
// pixel buffer is held by reference (pointer to a shared backing array)
// so passing a Frame across agent boundaries, including the fan-out to
// several model inboxes, never copies pixel data.
type Frame struct {
	id       uint64
	kind     Kind
	sourceTS time.Time
	width    int
	height   int
	pixels   *[]byte // 8-bit grayscale or packed RGB, per Kind
}

// New builds a Frame over pixels, stamping a fresh source timestamp.
// pixels is not copied; callers must not mutate it after constructing the
// Frame.
func New(kind Kind, width, height int, pixels []byte) Frame {
	return Frame{
		id:       frameSeq.Add(1),
		kind:     kind,
		sourceTS: time.Now(),
		width:    width,
		height:   height,
		pixels:   &pixels,
	}
}

// ID uniquely identifies a Frame within a process lifetime, for log
// correlation independent of timestamp resolution.
func (f Frame) ID() uint64 { return f.id }

// Kind returns which sensor produced the frame.
func (f Frame) Kind() Kind { return f.kind }

// SourceTS is the timestamp pending-frame queues and estimate pairing key
// on. It never changes after construction.
func (f Frame) SourceTS() time.Time { return f.sourceTS }

// Dimensions returns the frame's pixel width and height.
func (f Frame) Dimensions() (width, height int) { return f.width, f.height }

// Mean returns the arithmetic mean pixel intensity, used by the
// brightness-range acceptance gate for IR frames captured with
// autoexposure enabled.
func (f Frame) Mean() float64 {
	pixels := *f.pixels
	if len(pixels) == 0 {
		return 0
	}
	var sum uint64
	for _, p := range pixels {
		sum += uint64(p)
	}
	return float64(sum) / float64(len(pixels))
}

// Bytes returns the frame's raw pixel buffer, for the self-custody upload
// and signing path. The returned slice is shared with the Frame; callers
// must not mutate it.
func (f Frame) Bytes() []byte {
	if f.pixels == nil {
		return nil
	}
	return *f.pixels
}

// Range is a half-open interval [Min, Max) used for the IR brightness
// acceptance gate.
type Range struct {
	Min, Max float64
}

// Contains reports whether v falls in the half-open range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v < r.Max
}
