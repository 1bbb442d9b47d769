/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-crptapi/internal/libinfo"
)

// MetricsCollector is an interface for collecting metrics of throttled executors.
type MetricsCollector interface {
	// ObserveAcquire observes how long the caller waited for a permit.
	ObserveAcquire(executor string, waited time.Duration)

	// IncAcquireCancellations counts acquires that were interrupted by the context.
	IncAcquireCancellations(executor string)

	// IncReplenishments counts window resets.
	IncReplenishments(executor string)

	// SetInFlight sets the number of units of work holding a permit.
	SetInFlight(executor string, n int)
}

// PrometheusMetricsCollector is a Prometheus metrics collector.
type PrometheusMetricsCollector struct {
	AcquireWaitDurations *prometheus.HistogramVec
	AcquireCancellations *prometheus.CounterVec
	Replenishments       *prometheus.CounterVec
	InFlight             *prometheus.GaugeVec
}

var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	labels := []string{"executor"}
	constLabels := libinfo.PrometheusLibVersionLabels()
	return &PrometheusMetricsCollector{
		AcquireWaitDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "throttle_acquire_wait_seconds",
			Help:        "A histogram of time spent waiting for a throttle permit.",
			Buckets:     []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			ConstLabels: constLabels,
		}, labels),
		AcquireCancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "throttle_acquire_cancellations_total",
			Help:        "Number of permit acquires interrupted by the context.",
			ConstLabels: constLabels,
		}, labels),
		Replenishments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "throttle_replenishments_total",
			Help:        "Number of throttle window resets.",
			ConstLabels: constLabels,
		}, labels),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "throttle_in_flight",
			Help:        "Number of units of work holding a throttle permit.",
			ConstLabels: constLabels,
		}, labels),
	}
}

// MustRegister registers the Prometheus metrics.
func (c *PrometheusMetricsCollector) MustRegister() {
	prometheus.MustRegister(c.AcquireWaitDurations, c.AcquireCancellations, c.Replenishments, c.InFlight)
}

// Unregister the Prometheus metrics.
func (c *PrometheusMetricsCollector) Unregister() {
	prometheus.Unregister(c.AcquireWaitDurations)
	prometheus.Unregister(c.AcquireCancellations)
	prometheus.Unregister(c.Replenishments)
	prometheus.Unregister(c.InFlight)
}

// ObserveAcquire implements MetricsCollector.
func (c *PrometheusMetricsCollector) ObserveAcquire(executor string, waited time.Duration) {
	c.AcquireWaitDurations.WithLabelValues(executor).Observe(waited.Seconds())
}

// IncAcquireCancellations implements MetricsCollector.
func (c *PrometheusMetricsCollector) IncAcquireCancellations(executor string) {
	c.AcquireCancellations.WithLabelValues(executor).Inc()
}

// IncReplenishments implements MetricsCollector.
func (c *PrometheusMetricsCollector) IncReplenishments(executor string) {
	c.Replenishments.WithLabelValues(executor).Inc()
}

// SetInFlight implements MetricsCollector.
func (c *PrometheusMetricsCollector) SetInFlight(executor string, n int) {
	c.InFlight.WithLabelValues(executor).Set(float64(n))
}
