// Package metrics provides the Prometheus registry and HTTP-level metrics
// of the throttle service.
//
// # Overview
//
// A Collector owns a dedicated prometheus.Registry preloaded with the Go
// runtime and process collectors. Other packages register their own metrics
// against Collector.Registry(); the limits package does this for per-limiter
// check counters and wait histograms. Handler() exposes everything at the
// configured metrics path.
//
// # Metrics
//
//   - throttle_http_requests_total{route,code}
//   - throttle_http_request_duration_seconds{route}
//   - throttle_http_requests_in_flight
//   - throttle_http_client_admissions_total{client,outcome}
//   - throttle_audit_events_written_total
//   - throttle_audit_events_dropped_total
//
// # Cardinality
//
// Client keys come from request headers and are unbounded. The collector
// tracks at most DefaultMaxClients distinct keys (configurable) and folds
// the rest into the "other" label value.
//
// # Usage
//
//	collector := metrics.NewCollector(0)
//	limiterMetrics := limits.NewMetrics(collector.Registry())
//	mux.Handle("/metrics", collector.Handler())
package metrics
