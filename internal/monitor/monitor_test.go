package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeNetMonitorReturnsSetSample(t *testing.T) {
	m := NewFakeNetMonitor()
	m.SetSample(NetSample{BytesSent: 10, BytesReceived: 20})
	require.Equal(t, NetSample{BytesSent: 10, BytesReceived: 20}, m.Sample())
	require.NoError(t, m.Close())
}

func TestFakeCpuMonitorReturnsSetSample(t *testing.T) {
	m := NewFakeCpuMonitor()
	m.SetSample(CpuSample{LoadPercent: 42}, nil)
	sample, err := m.Sample()
	require.NoError(t, err)
	require.Equal(t, 42.0, sample.LoadPercent)
}
