package extension

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the Prometheus surface wired up for the manager watcher: a
// gauge tracking how many extensions are currently registered, a
// counter of ping failures/deregistrations, and a histogram of ping
// latency.
type Metrics struct {
	LiveExtensions  prometheus.Gauge
	PingFailures    prometheus.Counter
	Deregistrations prometheus.Counter
	PingLatency     prometheus.Histogram
}

// NewMetrics registers a fresh Metrics set against reg. Pass
// prometheus.DefaultRegisterer for process-wide metrics, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions between
// parallel test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LiveExtensions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sentryd",
			Subsystem: "extensions",
			Name:      "live_total",
			Help:      "Number of extensions currently registered with the manager.",
		}),
		PingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentryd",
			Subsystem: "extensions",
			Name:      "ping_failures_total",
			Help:      "Number of failed manager-watcher pings against extensions.",
		}),
		Deregistrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentryd",
			Subsystem: "extensions",
			Name:      "deregistrations_total",
			Help:      "Number of extensions evicted after repeated ping failures.",
		}),
		PingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sentryd",
			Subsystem: "extensions",
			Name:      "ping_latency_seconds",
			Help:      "Latency of manager-watcher pings against extensions.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.LiveExtensions, m.PingFailures, m.Deregistrations, m.PingLatency)
	return m
}

// ObservePing records the latency of one ping round trip.
func (m *Metrics) ObservePing(start time.Time) {
	if m == nil {
		return
	}
	m.PingLatency.Observe(time.Since(start).Seconds())
}

// RecordFailure increments the ping-failure counter.
func (m *Metrics) RecordFailure() {
	if m == nil {
		return
	}
	m.PingFailures.Inc()
}

// RecordDeregistration increments the deregistration counter.
func (m *Metrics) RecordDeregistration() {
	if m == nil {
		return
	}
	m.Deregistrations.Inc()
}

// SetLiveCount reports the current number of registered extensions.
func (m *Metrics) SetLiveCount(n int) {
	if m == nil {
		return
	}
	m.LiveExtensions.Set(float64(n))
}
