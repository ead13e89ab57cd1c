// Package server exposes the limits manager over HTTP.
//
// # Routes
//
//	GET  /v1/limiters                 status of every limiter
//	GET  /v1/limiters/{name}          status of one limiter
//	POST /v1/limiters/{name}/try      non-blocking admission (200 or 429)
//	POST /v1/limiters/{name}/acquire  blocking admission, ?timeout=2s
//	POST /v1/limiters/{name}/reset    reset to the initial state (204)
//	GET  /v1/audit                    audit journal query (when audit is on)
//	ANY  /v1/admit                    204 when admitted by the middleware limiter
//
// Metrics, liveness, readiness and /version are mounted at the configured
// telemetry paths. /v1/admit is meant for reverse proxies that authorize a
// request with a subrequest (for example nginx auth_request): a 2xx lets the
// original request through and a 429 carries Retry-After back to the client.
//
// When server.admin_keys is set, reset and audit routes answer 401 unless
// the request carries one of the keys (see package auth).
//
// Every route runs behind request ID, panic recovery and access logging
// middleware and is counted under its route pattern.
//
// # Lifecycle
//
// Start blocks until its context is cancelled, then shuts down gracefully
// within the configured shutdown timeout. Signal handling belongs to the
// caller.
package server
