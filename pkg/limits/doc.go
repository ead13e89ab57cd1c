// Package limits manages named rate limiters for the throttle service.
//
// # Overview
//
// A Manager owns one ratelimit.Limiter per configured definition and adds
// the service concerns around the core algorithms:
//
//   - Lookup by name for the HTTP middleware and admin API
//   - Prometheus metrics for checks, denials, waits and resets
//   - Audit events for denials, resets and reloads
//   - Cron-scheduled resets
//   - Hot reload that keeps the state of unchanged limiters
//
// # Architecture
//
//   - ratelimit: token bucket, sliding window and fixed window limiters
//
// # Usage
//
//	manager, err := limits.NewManager(defs,
//	    limits.WithMetrics(limits.NewMetrics(registry)),
//	    limits.WithAuditor(recorder),
//	    limits.WithScheduler(scheduler),
//	)
//
//	res, err := manager.TryAcquire(ctx, "api")
//	if err != nil {
//	    return err // unknown limiter
//	}
//	if res.IsDenied() {
//	    return res.Err() // *ratelimit.ExceededError
//	}
//
// # Thread Safety
//
// All Manager methods are safe for concurrent use. Admission checks only take
// the manager's read lock for the name lookup; the decision itself runs in
// the limiter's own critical section.
package limits
