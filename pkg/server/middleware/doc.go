// Package middleware provides the HTTP middleware chain of the throttle
// server: request IDs, panic recovery, access logging, per-route metrics
// and admission control backed by a named limiter.
//
// A typical chain, outermost first:
//
//	handler = middleware.RequestID(
//		middleware.Recovery(logger)(
//			middleware.Logging(logger)(mux)))
//
// RateLimit is applied per route. In reject mode a denied request gets 429
// with Retry-After; in wait mode the request blocks until admitted or the
// wait timeout elapses.
package middleware
