// Package telemetry records the one-shot signup events a biometric
// capture plan fires mid-session (first sharp iris on a side, both eyes
// captured). It deliberately does not cover the broader diagnostics
// surface (HTTP admin server, live debug streams, system metrics) — see
// internal/diagnostics for that.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the narrow event-counting contract a Plan calls into. It is
// satisfied by a Prometheus-backed Recorder in production and by Fake in
// tests.
type Recorder interface {
	FirstSideSharpIrisDetected(left bool)
	BothEyeCaptured()
}

// PrometheusRecorder registers and increments counters on the registerer
// passed to NewPrometheusRecorder, for in-process metrics.
type PrometheusRecorder struct {
	firstSideSharpIris *prometheus.CounterVec
	bothEyeCaptured    prometheus.Counter
}

// NewPrometheusRecorder registers its counters against reg. Pass
// prometheus.DefaultRegisterer in production.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		firstSideSharpIris: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orb",
			Subsystem: "biometric_capture",
			Name:      "first_side_sharp_iris_detected_total",
			Help:      "Count of first sharp-iris detections per side during a biometric capture session.",
		}, []string{"side"}),
		bothEyeCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orb",
			Subsystem: "biometric_capture",
			Name:      "both_eye_captured_total",
			Help:      "Count of biometric capture sessions that captured both eyes.",
		}),
	}
	reg.MustRegister(r.firstSideSharpIris, r.bothEyeCaptured)
	return r
}

// FirstSideSharpIrisDetected implements Recorder.
func (r *PrometheusRecorder) FirstSideSharpIrisDetected(left bool) {
	side := "right"
	if left {
		side = "left"
	}
	r.firstSideSharpIris.WithLabelValues(side).Inc()
}

// BothEyeCaptured implements Recorder.
func (r *PrometheusRecorder) BothEyeCaptured() {
	r.bothEyeCaptured.Inc()
}

// Fake records calls in memory for assertions in tests.
type Fake struct {
	FirstSideSharpIrisCalls []bool
	BothEyeCapturedCalls    int
}

// FirstSideSharpIrisDetected implements Recorder.
func (f *Fake) FirstSideSharpIrisDetected(left bool) {
	f.FirstSideSharpIrisCalls = append(f.FirstSideSharpIrisCalls, left)
}

// BothEyeCaptured implements Recorder.
func (f *Fake) BothEyeCaptured() {
	f.BothEyeCapturedCalls++
}
