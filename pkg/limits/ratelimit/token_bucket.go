package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// TokenBucket implements the token bucket rate limiting algorithm.
//
// The bucket holds up to Burst tokens and refills continuously at Rate
// tokens per second. Each admitted request consumes one token. Refill is
// proportional to elapsed time rather than ticked, so accounting stays
// rate-accurate for sub-millisecond gaps.
//
// # Algorithm
//
//  1. Add elapsed_seconds * rate tokens, capped at burst
//  2. If at least one token is banked: consume it and allow
//  3. Otherwise: deny with wait = (1 - tokens) / rate
//
// # Thread Safety
//
// TokenBucket is thread-safe using sync.Mutex for all operations.
type TokenBucket struct {
	cfg   Config
	clock Clock

	mu         sync.Mutex
	tokens     float64   // Banked permits, always within [0, burst]
	lastRefill time.Time // Last time tokens were refilled
}

// NewTokenBucket creates a token bucket that starts full.
//
// Example:
//
//	// 10 requests/sec average, burst up to 10
//	cfg, _ := ratelimit.PerSecond(10)
//	bucket, err := ratelimit.NewTokenBucket(cfg)
func NewTokenBucket(cfg Config, opts ...Option) (*TokenBucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	return &TokenBucket{
		cfg:        cfg,
		clock:      o.clock,
		tokens:     float64(cfg.Burst), // Start with full bucket
		lastRefill: o.clock(),
	}, nil
}

// TryAcquire attempts to consume one token.
func (tb *TokenBucket) TryAcquire() Result {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1.0 {
		tb.tokens--
		return Allowed()
	}

	needed := 1.0 - tb.tokens
	return Denied(secondsToDuration(needed / tb.cfg.Rate))
}

// Acquire blocks until a token is consumed or ctx is done.
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	return acquire(ctx, tb.TryAcquire)
}

// Available returns the number of whole tokens currently banked.
func (tb *TokenBucket) Available() uint64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return uint64(math.Floor(tb.tokens))
}

// Reset refills the bucket to capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = float64(tb.cfg.Burst)
	tb.lastRefill = tb.clock()
}

// Config returns the configuration the bucket was built with.
func (tb *TokenBucket) Config() Config { return tb.cfg }

// Strategy returns StrategyTokenBucket.
func (tb *TokenBucket) Strategy() Strategy { return StrategyTokenBucket }

// refillLocked adds tokens for the time elapsed since the last refill.
// Caller must hold lock.
func (tb *TokenBucket) refillLocked() {
	now := tb.clock()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed < 0 {
		// Injected clocks may step backwards; treat as no time passed.
		elapsed = 0
	}

	tb.tokens = math.Min(tb.tokens+elapsed.Seconds()*tb.cfg.Rate, float64(tb.cfg.Burst))
	if tb.tokens < 0 {
		tb.tokens = 0
	}
	tb.lastRefill = now
}

// secondsToDuration converts fractional seconds to a Duration, saturating
// instead of overflowing for extremely small rates.
func secondsToDuration(seconds float64) time.Duration {
	d := seconds * float64(time.Second)
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(math.Ceil(d))
}
