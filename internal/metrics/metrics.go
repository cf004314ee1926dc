// Package metrics provides Prometheus metrics for the board service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the board service.
type Metrics struct {
	OpsTotal         *prometheus.CounterVec
	OpDuration       *prometheus.HistogramVec
	DeliveryFailures *prometheus.CounterVec
	SpawnsTotal      *prometheus.CounterVec
	GoalsActive      prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		OpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "condos_ops_total",
				Help: "Total board operations by op and status.",
			},
			[]string{"op", "status"},
		),
		OpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "condos_op_duration_seconds",
				Help:    "Board operation duration by op.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		DeliveryFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "condos_delivery_failures_total",
				Help: "Best-effort notification and session message failures by target.",
			},
			[]string{"target"},
		),
		SpawnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "condos_spawns_total",
				Help: "Task session spawns by result.",
			},
			[]string{"result"},
		),
		GoalsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "condos_goals_active",
				Help: "Number of goals currently active.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.OpsTotal)
	reg.MustRegister(m.OpDuration)
	reg.MustRegister(m.DeliveryFailures)
	reg.MustRegister(m.SpawnsTotal)
	reg.MustRegister(m.GoalsActive)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOp increments the operation counter.
func (m *Metrics) RecordOp(op, status string) {
	m.OpsTotal.WithLabelValues(op, status).Inc()
}

// ObserveOp records operation duration.
func (m *Metrics) ObserveOp(op string, seconds float64) {
	m.OpDuration.WithLabelValues(op).Observe(seconds)
}

// RecordDeliveryFailure increments the delivery failure counter.
func (m *Metrics) RecordDeliveryFailure(target string) {
	m.DeliveryFailures.WithLabelValues(target).Inc()
}

// RecordSpawn increments the spawn counter.
func (m *Metrics) RecordSpawn(result string) {
	m.SpawnsTotal.WithLabelValues(result).Inc()
}

// SetGoalsActive sets the active goal gauge.
func (m *Metrics) SetGoalsActive(count float64) {
	m.GoalsActive.Set(count)
}
