package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the agent's Prometheus collectors, exposed on /metrics.
type Metrics struct {
	ScansTotal   *prometheus.CounterVec
	ScanDuration prometheus.Histogram
	ClientsGauge prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics builds and registers the agent's collectors on a private
// registry, so tests can create as many as they like.
func NewMetrics() *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin_agent",
			Name:      "scans_total",
			Help:      "Badge scans by outcome.",
		}, []string{"outcome"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "checkin_agent",
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a full scan, badge wait included.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		ClientsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "checkin_agent",
			Name:      "websocket_clients",
			Help:      "Connected status clients.",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.ScansTotal, m.ScanDuration, m.ClientsGauge)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordScan counts one finished scan under the given outcome label.
func (m *Metrics) RecordScan(outcome string, seconds float64) {
	m.ScansTotal.WithLabelValues(outcome).Inc()
	m.ScanDuration.Observe(seconds)
}
