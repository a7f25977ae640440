package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stellar-hierarchy/hierarchy"
)

type MetricsCollector struct {
	registry         *prometheus.Registry
	reassignments    *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	bodies           *prometheus.GaugeVec
	drifting         prometheus.Gauge
	destructions     *prometheus.CounterVec
	engineErrors     *prometheus.CounterVec
	websocketClients prometheus.Gauge
}

// NewMetricsCollector creates the collector and registers it with the
// default Prometheus registry
func NewMetricsCollector() *MetricsCollector {
	m := newMetrics()
	m.register(prometheus.DefaultRegisterer)
	return m
}

// NewTestMetricsCollector creates a collector on a private registry so
// tests can build as many as they like
func NewTestMetricsCollector() *MetricsCollector {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.register(m.registry)
	return m
}

func newMetrics() *MetricsCollector {
	return &MetricsCollector{
		reassignments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hierarchy_reassignments_total",
				Help: "Parent reassignments by reason",
			},
			[]string{"reason"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hierarchy_run_duration_seconds",
				Help:    "Time spent in one engine operation",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"operation"},
		),
		bodies: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hierarchy_bodies",
				Help: "Bodies in the registry by kind and status",
			},
			[]string{"kind", "status"},
		),
		drifting: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hierarchy_drifting_bodies",
				Help: "Active non-star bodies without a parent",
			},
		),
		destructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hierarchy_destructions_total",
				Help: "Bodies removed from play by kind",
			},
			[]string{"kind"},
		),
		engineErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hierarchy_engine_errors_total",
				Help: "Engine operations that returned an error",
			},
			[]string{"operation"},
		),
		websocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hierarchy_websocket_clients",
				Help: "Connected websocket clients",
			},
		),
	}
}

func (m *MetricsCollector) register(r prometheus.Registerer) {
	r.MustRegister(m.reassignments)
	r.MustRegister(m.runDuration)
	r.MustRegister(m.bodies)
	r.MustRegister(m.drifting)
	r.MustRegister(m.destructions)
	r.MustRegister(m.engineErrors)
	r.MustRegister(m.websocketClients)
}

// RecordRun records one engine operation and the changes it produced
func (m *MetricsCollector) RecordRun(operation string, duration time.Duration, changes hierarchy.ChangeLog, err error) {
	m.runDuration.WithLabelValues(operation).Observe(duration.Seconds())
	for _, c := range changes {
		m.reassignments.WithLabelValues(string(c.Reason)).Inc()
	}
	if err != nil {
		m.engineErrors.WithLabelValues(operation).Inc()
	}
}

func (m *MetricsCollector) RecordDestruction(kind hierarchy.Kind) {
	m.destructions.WithLabelValues(kind.String()).Inc()
}

// ObserveRegistry refreshes the body gauges from the registry
func (m *MetricsCollector) ObserveRegistry(reg *hierarchy.Registry) {
	m.bodies.Reset()
	for _, b := range reg.Bodies() {
		m.bodies.WithLabelValues(b.Kind.String(), b.Status.String()).Inc()
	}
	m.drifting.Set(float64(len(reg.Drifting())))
}

func (m *MetricsCollector) SetWebsocketClients(n int) {
	m.websocketClients.Set(float64(n))
}

// Handler serves the collector's registry in the Prometheus text format
func (m *MetricsCollector) Handler() http.Handler {
	if m.registry != nil {
		return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
