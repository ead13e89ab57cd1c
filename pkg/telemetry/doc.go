// Package telemetry groups the observability packages of Throttle.
//
// # Components
//
//   - logging: Structured logging on log/slog with request, limiter and
//     client key fields pulled from the context
//   - metrics: Prometheus registry, HTTP request metrics and the /metrics
//     handler
//   - health: Liveness, readiness and version endpoints
//
// Limiter-level metrics (checks, denials, waits, resets) live in package
// limits and register against the registry owned by metrics.Collector.
//
// # Usage
//
//	logger, _ := logging.New(logging.Config{Level: "info", Format: "json"})
//	collector := metrics.NewCollector(0)
//	manager, _ := limits.NewManager(defs,
//		limits.WithMetrics(limits.NewMetrics(collector.Registry())),
//		limits.WithLogger(logger.Slog()),
//	)
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("limiters", health.LimitersCheck(manager))
//
// Client keys can be masked in logs with logging.Config.MaskClientKeys:
//
//	tenant-7f3a9c21 → tena***
package telemetry
