package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for errors.Is matching.
var (
	// ErrExceeded matches every *ExceededError.
	ErrExceeded = errors.New("rate limit exceeded")

	// ErrInvalidConfig matches every *ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInternal matches every *InternalError.
	ErrInternal = errors.New("internal rate limiter error")
)

// ExceededError is the error form of a Denied result, for callers that
// prefer error-based flow control over matching on Result.
type ExceededError struct {
	// RetryAfterMs is the advisory wait in milliseconds, rounded up.
	RetryAfterMs uint64
}

// Exceeded builds an ExceededError from a wait time. Partial milliseconds
// round up so a caller honouring the hint does not retry early.
func Exceeded(wait time.Duration) *ExceededError {
	if wait < 0 {
		wait = 0
	}
	ms := wait / time.Millisecond
	if wait%time.Millisecond != 0 {
		ms++
	}
	return &ExceededError{RetryAfterMs: uint64(ms)}
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, try again in %dms", e.RetryAfterMs)
}

// RetryAfter returns the wait as a duration.
func (e *ExceededError) RetryAfter() time.Duration {
	return time.Duration(e.RetryAfterMs) * time.Millisecond
}

// Is reports whether target is ErrExceeded.
func (e *ExceededError) Is(target error) bool {
	return target == ErrExceeded
}

// ConfigError reports a Config that violates its invariants.
// It is only ever returned at construction time.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// InternalError reports an infrastructure fault that is not a normal
// admission outcome. It is never retried.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return "internal rate limiter error: " + e.Reason
}

func (e *InternalError) Unwrap() error {
	return ErrInternal
}
