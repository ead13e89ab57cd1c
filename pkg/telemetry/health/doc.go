// Package health provides liveness, readiness and version endpoints.
//
// Liveness only reports that the process is running. Readiness runs every
// registered check concurrently, each bounded by the checker timeout:
//
//   - a failing critical check (RegisterCheck) makes the service
//     "unhealthy" and the readiness probe returns 503
//   - a failing optional check (RegisterOptionalCheck) makes it "degraded"
//     and the probe still returns 200
//
// The throttle server registers the limiter registry as critical and the
// audit storage as optional, since admission keeps working without audit.
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("limiters", health.LimitersCheck(manager))
//	checker.RegisterOptionalCheck("audit", health.PingCheck("audit", storage))
//	health.Register(mux, checker, "/health", "/ready", health.NewVersionInfo(version, commit, date))
package health
