// Package metrics exposes Prometheus instrumentation for the upstream
// correlation client: reconnect counts, in-flight waiter gauges, and
// per-call latency, broken out by backend name and request type.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the instrumentation surface the upstream package depends
// on. A Noop implementation is used in tests.
type Recorder interface {
	IncReconnect(backend string)
	SetWaiters(backend string, n int)
	ObserveCallLatency(backend, requestType string, d time.Duration)
}

// Prometheus is a Recorder backed by client_golang collectors. Register
// it against a prometheus.Registerer once per process.
type Prometheus struct {
	reconnects *prometheus.CounterVec
	waiters    *prometheus.GaugeVec
	latency    *prometheus.HistogramVec
}

// NewPrometheus builds and registers the Embergate upstream collectors.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embergate",
			Subsystem: "upstream",
			Name:      "reconnects_total",
			Help:      "Number of times the backend connection was lost and a reconnect was requested.",
		}, []string{"backend"}),
		waiters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "embergate",
			Subsystem: "upstream",
			Name:      "inflight_waiters",
			Help:      "Number of requests currently awaiting a reply.",
		}, []string{"backend"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "embergate",
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Latency of a typed facade call, from send to resolution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "request_type"}),
	}
	reg.MustRegister(p.reconnects, p.waiters, p.latency)
	return p
}

func (p *Prometheus) IncReconnect(backend string) {
	p.reconnects.WithLabelValues(backend).Inc()
}

func (p *Prometheus) SetWaiters(backend string, n int) {
	p.waiters.WithLabelValues(backend).Set(float64(n))
}

func (p *Prometheus) ObserveCallLatency(backend, requestType string, d time.Duration) {
	p.latency.WithLabelValues(backend, requestType).Observe(d.Seconds())
}

// Noop discards all observations. Useful in tests and for backends that
// opt out of metrics.
type Noop struct{}

func (Noop) IncReconnect(string) {}

func (Noop) SetWaiters(string, int) {}

func (Noop) ObserveCallLatency(string, string, time.Duration) {}
