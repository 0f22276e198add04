// Package monitor implements the net and CPU monitor capabilities the
// facade surfaces to diagnostics: a net monitor backed by a kernel eBPF
// ring buffer that counts traffic without copying packet payloads into
// user space, and a CPU monitor, both behind small interfaces so a
// capability-less or test build can substitute a Fake.
package monitor

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
)

// NetSample is one point-in-time reading of network activity.
type NetSample struct {
	BytesSent     uint64
	BytesReceived uint64
}

// NetMonitor exposes the current network activity sample.
type NetMonitor interface {
	Sample() NetSample
	Close() error
}

// netEvent mirrors the eBPF program's emitted ring buffer record: a
// packet direction tag and its length, one record per packet.
type netEvent struct {
	Direction uint32
	Length    uint32
}

const (
	directionSent     = 0
	directionReceived = 1
)

// RingbufNetMonitor counts bytes sent/received from a kernel ring buffer
// populated by an attached eBPF program. When no program is attached (the
// common case outside a real device), it runs in mock mode and always
// reports a zero sample.
type RingbufNetMonitor struct {
	ring *ringbuf.Reader

	sent     atomic.Uint64
	received atomic.Uint64
}

// NewRingbufNetMonitor removes the RLIMIT_MEMLOCK cap needed to load BPF
// maps and starts consuming ring, if attached. Passing a nil ring leaves
// the monitor in mock mode.
func NewRingbufNetMonitor(ring *ringbuf.Reader) (*RingbufNetMonitor, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("monitor: remove memlock: %w", err)
	}
	m := &RingbufNetMonitor{ring: ring}
	if ring != nil {
		go m.consume()
	} else {
		slog.Warn("net monitor running in mock mode, no eBPF ring buffer attached")
	}
	return m, nil
}

func (m *RingbufNetMonitor) consume() {
	for {
		record, err := m.ring.Read()
		if err != nil {
			if err == ringbuf.ErrClosed {
				return
			}
			slog.Warn("net monitor ring buffer read failed", "error", err)
			continue
		}
		if len(record.RawSample) < 8 {
			continue
		}
		ev := netEvent{
			Direction: binary.LittleEndian.Uint32(record.RawSample[0:4]),
			Length:    binary.LittleEndian.Uint32(record.RawSample[4:8]),
		}
		switch ev.Direction {
		case directionSent:
			m.sent.Add(uint64(ev.Length))
		case directionReceived:
			m.received.Add(uint64(ev.Length))
		}
	}
}

// Sample implements NetMonitor.
func (m *RingbufNetMonitor) Sample() NetSample {
	return NetSample{BytesSent: m.sent.Load(), BytesReceived: m.received.Load()}
}

// Close implements NetMonitor.
func (m *RingbufNetMonitor) Close() error {
	if m.ring == nil {
		return nil
	}
	return m.ring.Close()
}

// FakeNetMonitor is a settable NetMonitor for tests.
type FakeNetMonitor struct {
	sample NetSample
}

// NewFakeNetMonitor returns a zeroed FakeNetMonitor.
func NewFakeNetMonitor() *FakeNetMonitor { return &FakeNetMonitor{} }

// SetSample sets the value the next Sample call returns.
func (f *FakeNetMonitor) SetSample(s NetSample) { f.sample = s }

// Sample implements NetMonitor.
func (f *FakeNetMonitor) Sample() NetSample { return f.sample }

// Close implements NetMonitor.
func (f *FakeNetMonitor) Close() error { return nil }
