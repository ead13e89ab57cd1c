package limits

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the limits package.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Admission checks
	checks      *prometheus.CounterVec
	deniedWait  *prometheus.HistogramVec
	available   *prometheus.GaugeVec
	acquireWait *prometheus.HistogramVec

	// Administrative resets
	resets *prometheus.CounterVec

	// Check latency
	checkDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "throttle_limiter_checks_total",
				Help: "Total number of admission checks performed",
			},
			[]string{"limiter", "strategy", "result"},
		),

		deniedWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "throttle_limiter_denied_wait_seconds",
				Help:    "Advised wait returned with denied checks",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4.4min
			},
			[]string{"limiter"},
		),

		available: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "throttle_limiter_available_permits",
				Help: "Permits obtainable without waiting, as of the last check",
			},
			[]string{"limiter"},
		),

		acquireWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "throttle_limiter_acquire_wait_seconds",
				Help:    "Time spent blocked in Acquire",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"limiter", "outcome"},
		),

		resets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "throttle_limiter_resets_total",
				Help: "Total number of limiter resets",
			},
			[]string{"limiter", "trigger"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "throttle_limiter_check_duration_seconds",
				Help:    "Duration of admission checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
			[]string{"operation"},
		),
	}
}

// RecordCheck records the outcome of a TryAcquire.
func (m *Metrics) RecordCheck(limiter, strategy string, allowed bool, wait time.Duration) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
		m.deniedWait.WithLabelValues(limiter).Observe(wait.Seconds())
	}
	m.checks.WithLabelValues(limiter, strategy, result).Inc()
}

// SetAvailable updates the available permits gauge.
func (m *Metrics) SetAvailable(limiter string, n uint64) {
	if m == nil {
		return
	}
	m.available.WithLabelValues(limiter).Set(float64(n))
}

// ObserveAcquire records how long Acquire blocked and how it ended.
func (m *Metrics) ObserveAcquire(limiter, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.acquireWait.WithLabelValues(limiter, outcome).Observe(d.Seconds())
}

// RecordReset records a limiter reset.
func (m *Metrics) RecordReset(limiter, trigger string) {
	if m == nil {
		return
	}
	m.resets.WithLabelValues(limiter, trigger).Inc()
}

// ObserveCheckDuration records the latency of a manager operation.
func (m *Metrics) ObserveCheckDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.checkDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Forget drops the per-limiter series of a removed limiter.
func (m *Metrics) Forget(limiter string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"limiter": limiter}
	m.checks.DeletePartialMatch(labels)
	m.deniedWait.DeletePartialMatch(labels)
	m.available.DeletePartialMatch(labels)
	m.acquireWait.DeletePartialMatch(labels)
	m.resets.DeletePartialMatch(labels)
}
