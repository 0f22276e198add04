package monitor

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CpuSample is one point-in-time reading of CPU load.
type CpuSample struct {
	// LoadPercent is the fraction of CPU time spent outside idle since
	// the previous sample, in [0, 100].
	LoadPercent float64
}

// CpuMonitor exposes the current CPU load sample.
type CpuMonitor interface {
	Sample() (CpuSample, error)
}

// ProcStatCpuMonitor reads /proc/stat between calls to derive load,
// standard on any Linux device including the orb's onboard computer.
type ProcStatCpuMonitor struct {
	path   string
	last   cpuTicks
	hasLast bool
}

type cpuTicks struct {
	idle, total uint64
}

// NewProcStatCpuMonitor reads from /proc/stat.
func NewProcStatCpuMonitor() *ProcStatCpuMonitor {
	return &ProcStatCpuMonitor{path: "/proc/stat"}
}

// Sample implements CpuMonitor.
func (m *ProcStatCpuMonitor) Sample() (CpuSample, error) {
	ticks, err := readCPUTicks(m.path)
	if err != nil {
		return CpuSample{}, err
	}
	defer func() { m.last, m.hasLast = ticks, true }()

	if !m.hasLast || ticks.total <= m.last.total {
		return CpuSample{}, nil
	}
	deltaTotal := ticks.total - m.last.total
	deltaIdle := ticks.idle - m.last.idle
	busy := float64(deltaTotal-deltaIdle) / float64(deltaTotal) * 100
	return CpuSample{LoadPercent: busy}, nil
}

func readCPUTicks(path string) (cpuTicks, error) {
	f, err := os.Open(path)
	if err != nil {
		return cpuTicks{}, fmt.Errorf("monitor: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return cpuTicks{}, fmt.Errorf("monitor: %s is empty", path)
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return cpuTicks{}, fmt.Errorf("monitor: unexpected %s format", path)
	}

	var total uint64
	var idle uint64
	for i, field := range fields[1:] {
		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		total += v
		if i == 3 { // idle is the 4th field (index 3) per /proc/stat's cpu line
			idle = v
		}
	}
	return cpuTicks{idle: idle, total: total}, nil
}

// FakeCpuMonitor is a settable CpuMonitor for tests.
type FakeCpuMonitor struct {
	sample CpuSample
	err    error
}

// NewFakeCpuMonitor returns a zeroed FakeCpuMonitor.
func NewFakeCpuMonitor() *FakeCpuMonitor { return &FakeCpuMonitor{} }

// SetSample sets the value and error the next Sample call returns.
func (f *FakeCpuMonitor) SetSample(s CpuSample, err error) { f.sample, f.err = s, err }

// Sample implements CpuMonitor.
func (f *FakeCpuMonitor) Sample() (CpuSample, error) { return f.sample, f.err }
