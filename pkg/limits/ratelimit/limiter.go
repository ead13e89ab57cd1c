package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limiter is the admission contract shared by every strategy.
//
// All methods are safe for concurrent use. TryAcquire, Available and Reset
// each run inside a single critical section of the instance; Acquire never
// holds that lock while it waits.
type Limiter interface {
	// TryAcquire makes a single non-blocking admission decision.
	TryAcquire() Result

	// Acquire blocks until a permit is granted or ctx is done.
	//
	// There is no queue and no retry limit: when capacity frees up any
	// waiter may win, so an individual caller can starve under sustained
	// contention. Bound the wait with a context deadline.
	Acquire(ctx context.Context) error

	// Available reports the permits obtainable right now without waiting,
	// after applying refill, eviction or rollover bookkeeping.
	Available() uint64

	// Reset restores the just-constructed state.
	Reset()
}

// Strategy names an admission algorithm.
type Strategy string

// Supported strategies.
const (
	StrategyTokenBucket   Strategy = "token_bucket"
	StrategySlidingWindow Strategy = "sliding_window"
	StrategyFixedWindow   Strategy = "fixed_window"
)

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{StrategyTokenBucket, StrategySlidingWindow, StrategyFixedWindow}
}

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyTokenBucket, StrategySlidingWindow, StrategyFixedWindow:
		return Strategy(s), nil
	}
	return "", &ConfigError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", s)}
}

// Clock returns the current monotonic time.
type Clock func() time.Time

// Option configures a limiter at construction time.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces time.Now as the limiter's time source.
// Intended for deterministic tests.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New constructs a limiter for the named strategy.
func New(strategy Strategy, cfg Config, opts ...Option) (Limiter, error) {
	switch strategy {
	case StrategyTokenBucket:
		return NewTokenBucket(cfg, opts...)
	case StrategySlidingWindow:
		return NewSlidingWindow(cfg, opts...)
	case StrategyFixedWindow:
		return NewFixedWindow(cfg, opts...)
	}
	return nil, &ConfigError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
}

// acquire is the wait-and-retry loop behind every Acquire method.
// try is called without any lock held by the loop itself.
func acquire(ctx context.Context, try func() Result) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := try()
		if res.IsAllowed() {
			return nil
		}

		wait := res.WaitTime()
		if wait < 0 {
			return &InternalError{Reason: fmt.Sprintf("negative wait time %s", wait)}
		}
		if wait == 0 {
			// Capacity is due now; yield once instead of spinning hot.
			wait = time.Microsecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
