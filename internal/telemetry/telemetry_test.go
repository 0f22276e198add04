package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderIncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPrometheusRecorder(reg)
	r.FirstSideSharpIrisDetected(true)
	r.FirstSideSharpIrisDetected(false)
	r.BothEyeCaptured()

	metrics, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metrics)
}

func TestFakeRecordsCalls(t *testing.T) {
	f := &Fake{}
	f.FirstSideSharpIrisDetected(true)
	f.BothEyeCaptured()
	require.Equal(t, []bool{true}, f.FirstSideSharpIrisCalls)
	require.Equal(t, 1, f.BothEyeCapturedCalls)
}
