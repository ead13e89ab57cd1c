package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultMaxClients bounds the distinct client keys tracked per metric.
const DefaultMaxClients = 1000

// OtherClient is the label used once the client cardinality limit is hit.
const OtherClient = "other"

// Collector owns the process-wide Prometheus registry and the HTTP-level
// metrics of the admission service. Limiter metrics are registered against
// Registry() by the limits package.
type Collector struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	clientRequests *prometheus.CounterVec

	clients *CardinalityLimiter
}

// NewCollector creates a collector with a fresh registry that already
// carries the Go runtime and process collectors. maxClients <= 0 uses
// DefaultMaxClients.
func NewCollector(maxClients int) *Collector {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "throttle",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "throttle",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, including time spent waiting for admission.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"route"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "throttle",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		clientRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "throttle",
			Subsystem: "http",
			Name:      "client_admissions_total",
			Help:      "Admission outcomes per client key.",
		}, []string{"client", "outcome"}),
		clients: NewCardinalityLimiter(maxClients),
	}
}

// Registry returns the registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRequest records a completed HTTP request.
func (c *Collector) ObserveRequest(route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.duration.WithLabelValues(route).Observe(d.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the matching
// decrement.
func (c *Collector) TrackInFlight() func() {
	if c == nil {
		return func() {}
	}
	c.inFlight.Inc()
	return c.inFlight.Dec
}

// RecordClientAdmission counts an admission outcome ("admitted", "rejected"
// or "timeout") for a client key. Keys past the cardinality limit are folded
// into OtherClient. An empty key is not recorded.
func (c *Collector) RecordClientAdmission(client, outcome string) {
	if c == nil || client == "" {
		return
	}
	if !c.clients.Allow(client) {
		client = OtherClient
	}
	c.clientRequests.WithLabelValues(client, outcome).Inc()
}

// AuditStats exposes the counters of an asynchronous audit recorder.
type AuditStats interface {
	Written() int64
	Dropped() int64
}

// RegisterAuditStats publishes the audit recorder counters.
func (c *Collector) RegisterAuditStats(stats AuditStats) error {
	written := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "throttle",
		Subsystem: "audit",
		Name:      "events_written_total",
		Help:      "Audit events persisted to storage.",
	}, func() float64 { return float64(stats.Written()) })

	dropped := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "throttle",
		Subsystem: "audit",
		Name:      "events_dropped_total",
		Help:      "Audit events dropped because the buffer was full or storage failed.",
	}, func() float64 { return float64(stats.Dropped()) })

	if err := c.registry.Register(written); err != nil {
		return err
	}
	if err := c.registry.Register(dropped); err != nil {
		c.registry.Unregister(written)
		return err
	}
	return nil
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values admitted.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or still fits under the
// limit. Admitted values stay tracked for the life of the limiter.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
