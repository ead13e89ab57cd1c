package ratelimit

import (
	"fmt"
	"time"
)

// Result is the outcome of a single admission check: either Allowed or
// Denied with an advisory wait time.
//
// The zero value is Allowed.
type Result struct {
	denied bool
	wait   time.Duration
}

// Allowed returns an admitting Result.
func Allowed() Result {
	return Result{}
}

// Denied returns a rejecting Result. wait estimates how long until the next
// TryAcquire is likely to succeed; negative values are clamped to zero.
func Denied(wait time.Duration) Result {
	if wait < 0 {
		wait = 0
	}
	return Result{denied: true, wait: wait}
}

// IsAllowed reports whether the permit was granted.
func (r Result) IsAllowed() bool { return !r.denied }

// IsDenied reports whether the permit was refused.
func (r Result) IsDenied() bool { return r.denied }

// WaitTime returns the advisory wait of a Denied result, or 0 when allowed.
// It is an estimate: concurrent callers may consume the freed capacity first.
func (r Result) WaitTime() time.Duration { return r.wait }

// Err returns nil for Allowed and an *ExceededError for Denied.
func (r Result) Err() error {
	if !r.denied {
		return nil
	}
	return Exceeded(r.wait)
}

// String implements fmt.Stringer.
func (r Result) String() string {
	if !r.denied {
		return "allowed"
	}
	return fmt.Sprintf("denied (wait %s)", r.wait)
}
