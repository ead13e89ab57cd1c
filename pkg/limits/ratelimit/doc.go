// Package ratelimit provides in-process admission control.
//
// # Overview
//
// Every limiter is built from a validated Config and implements the same
// four-method Limiter contract:
//
//   - Token Bucket: continuous refill with bursts up to capacity
//   - Sliding Window: exact counting over a trailing window
//   - Fixed Window: O(1) counting per window, allows boundary double bursts
//
// # Token Bucket
//
//	cfg, err := ratelimit.PerSecond(10) // 10/sec, burst 10
//	if err != nil {
//	    return err
//	}
//	bucket, _ := ratelimit.NewTokenBucket(cfg)
//	if res := bucket.TryAcquire(); res.IsDenied() {
//	    // retry after res.WaitTime()
//	}
//
// # Blocking Acquire
//
// Acquire loops TryAcquire and sleeps for the advised wait without holding
// the limiter's lock. It never gives up on its own, so bound it:
//
//	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
//	defer cancel()
//	if err := limiter.Acquire(ctx); err != nil {
//	    // context.DeadlineExceeded, or an *InternalError
//	}
//
// # Errors
//
// Denial is data (Result), not an error. Result.Err converts a denial into
// an *ExceededError for callers that prefer error flow. Configuration
// problems surface as *ConfigError at construction only.
//
// # Thread Safety
//
// Each limiter guards all of its state with one mutex; every call is a
// single critical section. Separate instances share nothing.
package ratelimit
