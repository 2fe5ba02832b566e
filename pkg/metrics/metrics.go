// Package metrics exports Prometheus instrumentation for the bridge.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "framebridge"

// Metrics holds the bridge collectors.
type Metrics struct {
	registry *prometheus.Registry

	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	sessions     prometheus.Gauge
	frames       *prometheus.CounterVec
	frameBytes   prometheus.Counter
}

// New creates collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Bridge operations by name.",
		}, []string{"op"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Bridge operation latency.",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed bridge operations by name.",
		}, []string{"op"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Capture sessions currently open.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames transferred by output layout.",
		}, []string{"layout"}),
		frameBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_bytes_total",
			Help:      "Bytes written to output buffers.",
		}),
	}
	m.registry.MustRegister(m.calls, m.callDuration, m.errors, m.sessions, m.frames, m.frameBytes)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCall records one operation and whether it failed.
func (m *Metrics) ObserveCall(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op).Inc()
	m.callDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.errors.WithLabelValues(op).Inc()
	}
}

// SetSessions records the number of open sessions.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// ObserveFrame records one transferred buffer.
func (m *Metrics) ObserveFrame(layout string, bytes int) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(layout).Inc()
	m.frameBytes.Add(float64(bytes))
}
