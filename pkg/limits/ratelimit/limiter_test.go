package ratelimit

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ============================================================================
// Config Tests
// ============================================================================

func TestNewConfig_Validation(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		burst     uint64
		window    time.Duration
		wantField string
	}{
		{name: "valid", rate: 10, burst: 10, window: time.Second},
		{name: "zero window", rate: 10, burst: 10, window: 0},
		{name: "zero rate", rate: 0, burst: 10, window: time.Second, wantField: "rate"},
		{name: "negative rate", rate: -1, burst: 10, window: time.Second, wantField: "rate"},
		{name: "NaN rate", rate: math.NaN(), burst: 10, window: time.Second, wantField: "rate"},
		{name: "infinite rate", rate: math.Inf(1), burst: 10, window: time.Second, wantField: "rate"},
		{name: "zero burst", rate: 10, burst: 0, window: time.Second, wantField: "burst"},
		{name: "negative window", rate: 10, burst: 10, window: -time.Second, wantField: "window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfig(tt.rate, tt.burst, tt.window)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("NewConfig() error = %v", err)
				}
				if cfg.Rate != tt.rate || cfg.Burst != tt.burst || cfg.Window != tt.window {
					t.Errorf("NewConfig() = %+v", cfg)
				}
				return
			}

			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestConfig_Shorthand(t *testing.T) {
	tests := []struct {
		name       string
		build      func(float64) (Config, error)
		rate       float64
		wantRate   float64
		wantBurst  uint64
		wantWindow time.Duration
	}{
		{"per second", PerSecond, 10, 10, 10, time.Second},
		{"per second fractional", PerSecond, 2.5, 2.5, 3, time.Second},
		{"per minute", PerMinute, 90, 1.5, 90, time.Minute},
		{"per hour", PerHour, 3600, 1, 3600, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.build(tt.rate)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(cfg.Rate-tt.wantRate) > 1e-9 {
				t.Errorf("Rate = %v, want %v", cfg.Rate, tt.wantRate)
			}
			if cfg.Burst != tt.wantBurst {
				t.Errorf("Burst = %d, want %d", cfg.Burst, tt.wantBurst)
			}
			if cfg.Window != tt.wantWindow {
				t.Errorf("Window = %v, want %v", cfg.Window, tt.wantWindow)
			}
		})
	}

	for _, rate := range []float64{0, -5, math.NaN()} {
		if _, err := PerMinute(rate); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("PerMinute(%v) expected ErrInvalidConfig, got %v", rate, err)
		}
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig() invalid: %v", err)
	}
}

// ============================================================================
// Result and Error Tests
// ============================================================================

func TestResult(t *testing.T) {
	allowed := Allowed()
	if !allowed.IsAllowed() || allowed.IsDenied() {
		t.Error("Allowed() should be allowed")
	}
	if allowed.Err() != nil {
		t.Errorf("Allowed().Err() = %v, want nil", allowed.Err())
	}

	denied := Denied(1500 * time.Microsecond)
	if !denied.IsDenied() {
		t.Error("Denied() should be denied")
	}
	if denied.WaitTime() != 1500*time.Microsecond {
		t.Errorf("WaitTime() = %v", denied.WaitTime())
	}

	err := denied.Err()
	if !errors.Is(err, ErrExceeded) {
		t.Fatalf("expected ErrExceeded, got %v", err)
	}
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected *ExceededError, got %T", err)
	}
	if exceeded.RetryAfterMs != 2 {
		t.Errorf("RetryAfterMs = %d, want 2 (rounded up)", exceeded.RetryAfterMs)
	}
	if got := exceeded.Error(); got != "rate limit exceeded, try again in 2ms" {
		t.Errorf("Error() = %q", got)
	}

	if Denied(-time.Second).WaitTime() != 0 {
		t.Error("negative wait should clamp to zero")
	}
}

func TestExceeded_Rounding(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want uint64
	}{
		{0, 0},
		{time.Millisecond, 1},
		{time.Millisecond + time.Nanosecond, 2},
		{100 * time.Millisecond, 100},
		{-time.Millisecond, 0},
	}
	for _, tt := range tests {
		if got := Exceeded(tt.wait).RetryAfterMs; got != tt.want {
			t.Errorf("Exceeded(%v).RetryAfterMs = %d, want %d", tt.wait, got, tt.want)
		}
	}
}

func TestInternalError(t *testing.T) {
	err := &InternalError{Reason: "lock poisoned"}
	if !errors.Is(err, ErrInternal) {
		t.Error("InternalError should match ErrInternal")
	}
	if errors.Is(err, ErrExceeded) {
		t.Error("InternalError should not match ErrExceeded")
	}
}

// ============================================================================
// Token Bucket Tests
// ============================================================================

func TestTokenBucket_BurstThenExhaust(t *testing.T) {
	cfg, _ := PerSecond(10)
	bucket, err := NewTokenBucket(cfg)
	if err != nil {
		t.Fatalf("NewTokenBucket() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		if res := bucket.TryAcquire(); !res.IsAllowed() {
			t.Fatalf("request %d: expected allowed, got %s", i+1, res)
		}
	}

	res := bucket.TryAcquire()
	if !res.IsDenied() {
		t.Fatal("11th request should be denied")
	}
	if res.WaitTime() <= 0 {
		t.Errorf("expected positive wait, got %v", res.WaitTime())
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	cfg, _ := PerSecond(10)
	bucket, _ := NewTokenBucket(cfg)

	for bucket.TryAcquire().IsAllowed() {
	}

	// 100ms = 1 token at 10/sec
	time.Sleep(110 * time.Millisecond)

	if got := bucket.Available(); got < 1 {
		t.Errorf("Available() = %d after refill, want >= 1", got)
	}
}

func TestTokenBucket_WaitTime(t *testing.T) {
	clock := newFakeClock()
	cfg, _ := PerSecond(10)
	bucket, _ := NewTokenBucket(cfg, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		bucket.TryAcquire()
	}

	res := bucket.TryAcquire()
	if res.WaitTime() < 99*time.Millisecond || res.WaitTime() > 101*time.Millisecond {
		t.Errorf("empty bucket wait = %v, want ~100ms", res.WaitTime())
	}

	// Half a token banked: wait drops to ~50ms
	clock.Advance(50 * time.Millisecond)
	res = bucket.TryAcquire()
	if !res.IsDenied() {
		t.Fatal("half a token should not admit")
	}
	if res.WaitTime() < 49*time.Millisecond || res.WaitTime() > 51*time.Millisecond {
		t.Errorf("half bucket wait = %v, want ~50ms", res.WaitTime())
	}

	clock.Advance(res.WaitTime())
	if !bucket.TryAcquire().IsAllowed() {
		t.Error("expected allowed after advised wait")
	}
}

func TestTokenBucket_CapacityInvariant(t *testing.T) {
	clock := newFakeClock()
	cfg, _ := NewConfig(5, 8, 0)
	bucket, _ := NewTokenBucket(cfg, WithClock(clock.Now))

	steps := []time.Duration{0, 10 * time.Millisecond, time.Second, 0, 3 * time.Second, 150 * time.Millisecond}
	for i := 0; i < 200; i++ {
		clock.Advance(steps[i%len(steps)])
		if i%3 != 0 {
			bucket.TryAcquire()
		}
		if got := bucket.Available(); got > cfg.Burst {
			t.Fatalf("step %d: Available() = %d exceeds burst %d", i, got, cfg.Burst)
		}
	}

	clock.Advance(time.Hour)
	if got := bucket.Available(); got != cfg.Burst {
		t.Errorf("Available() after long idle = %d, want %d", got, cfg.Burst)
	}
}

func TestTokenBucket_ClockStepsBackwards(t *testing.T) {
	clock := newFakeClock()
	cfg, _ := PerSecond(2)
	bucket, _ := NewTokenBucket(cfg, WithClock(clock.Now))

	bucket.TryAcquire()
	bucket.TryAcquire()
	clock.Advance(-time.Minute)

	if got := bucket.Available(); got != 0 {
		t.Errorf("Available() = %d, want 0", got)
	}
	if res := bucket.TryAcquire(); !res.IsDenied() || res.WaitTime() <= 0 {
		t.Errorf("expected positive denial, got %s", res)
	}
}

func TestTokenBucket_TinyRateWaitIsFinite(t *testing.T) {
	cfg, _ := NewConfig(1e-300, 1, 0)
	bucket, _ := NewTokenBucket(cfg)

	bucket.TryAcquire()
	res := bucket.TryAcquire()
	if res.WaitTime() <= 0 {
		t.Errorf("wait = %v, want large positive", res.WaitTime())
	}
}

// ============================================================================
// Sliding Window Tests
// ============================================================================

func TestSlidingWindow_Exactness(t *testing.T) {
	cfg, _ := NewConfig(50, 5, 100*time.Millisecond)
	window, _ := NewSlidingWindow(cfg)

	for i := 0; i < 5; i++ {
		if !window.TryAcquire().IsAllowed() {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if !window.TryAcquire().IsDenied() {
		t.Fatal("6th request should be denied")
	}

	time.Sleep(110 * time.Millisecond)

	if !window.TryAcquire().IsAllowed() {
		t.Error("expected allowed once the window has passed")
	}
}

func TestSlidingWindow_ReplacesOnlyExpiredSlots(t *testing.T) {
	clock := newFakeClock()
	cfg, _ := NewConfig(50, 5, 100*time.Millisecond)
	window, _ := NewSlidingWindow(cfg, WithClock(clock.Now))

	// Requests at t=0,10,20,30,40ms
	for i := 0; i < 5; i++ {
		if !window.TryAcquire().IsAllowed() {
			t.Fatalf("request %d should be allowed", i+1)
		}
		clock.Advance(10 * time.Millisecond)
	}

	// t=50ms: oldest leaves at t=100ms
	res := window.TryAcquire()
	if !res.IsDenied() {
		t.Fatal("expected denial while window is full")
	}
	if res.WaitTime() != 50*time.Millisecond {
		t.Errorf("WaitTime() = %v, want 50ms", res.WaitTime())
	}

	// t=101ms: only the t=0 entry expired
	clock.Advance(51 * time.Millisecond)
	if !window.TryAcquire().IsAllowed() {
		t.Fatal("expected the expired slot to be reusable")
	}
	if !window.TryAcquire().IsDenied() {
		t.Error("only one slot should have freed up")
	}
	if got := window.Available(); got != 0 {
		t.Errorf("Available() = %d, want 0", got)
	}
}

func TestSlidingWindow_BoundaryIsInclusive(t *testing.T) {
	clock := newFakeClock()
	cfg, _ := NewConfig(1, 1, time.Second)
	window, _ := NewSlidingWindow(cfg, WithClock(clock.Now))

	window.TryAcquire()

	// An entry exactly window old is still counted.
	clock.Advance(time.Second)
	if !window.TryAcquire().IsDenied() {
		t.Error("entry exactly one window old should still count")
	}

	clock.Advance(time.Nanosecond)
	if !window.TryAcquire().IsAllowed() {
		t.Error("entry older than one window should be evicted")
	}
}

func TestSlidingWindow_StorageBounded(t *testing.T) {
	clock := newFakeClock()
	cfg, _ := NewConfig(100, 16, 50*time.Millisecond)
	window, _ := NewSlidingWindow(cfg, WithClock(clock.Now))

	for i := 0; i < 5000; i++ {
		window.TryAcquire()
		clock.Advance(time.Millisecond)

		window.mu.Lock()
		n, c := window.countLocked(), cap(window.timestamps)
		window.mu.Unlock()
		if uint64(n) > cfg.Burst || uint64(c) > cfg.Burst {
			t.Fatalf("iteration %d: count=%d cap=%d exceeds burst %d", i, n, c, cfg.Burst)
		}
	}
}

func TestSlidingWindow_LargeBurstAllocatesLazily(t *testing.T) {
	cfg, _ := PerHour(1_000_000)
	window, _ := NewSlidingWindow(cfg)

	window.TryAcquire()
	if c := cap(window.timestamps); c > 8 {
		t.Errorf("cap = %d after one request, want small", c)
	}
	if got := window.Available(); got != cfg.Burst-1 {
		t.Errorf("Available() = %d, want %d", got, cfg.Burst-1)
	}
}

// ============================================================================
// Fixed Window Tests
// ============================================================================

func TestFixedWindow_Reset(t *testing.T) {
	cfg, _ := NewConfig(100, 5, 50*time.Millisecond)
	window, _ := NewFixedWindow(cfg)

	for i := 0; i < 5; i++ {
		if !window.TryAcquire().IsAllowed() {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if !window.TryAcquire().IsDenied() {
		t.Fatal("6th request should be denied")
	}

	time.Sleep(60 * time.Millisecond)

	if !window.TryAcquire().IsAllowed() {
		t.Error("expected allowed in the next window")
	}
}

func TestFixedWindow_BoundaryDoubleBurst(t *testing.T) {
	clock := newFakeClock()
	cfg, _ := NewConfig(5, 5, time.Second)
	window, _ := NewFixedWindow(cfg, WithClock(clock.Now))

	// Tail of the first window
	clock.Advance(990 * time.Millisecond)
	for i := 0; i < 5; i++ {
		if !window.TryAcquire().IsAllowed() {
			t.Fatalf("tail request %d should be allowed", i+1)
		}
	}

	// Head of the next window, 20ms later
	clock.Advance(20 * time.Millisecond)
	for i := 0; i < 5; i++ {
		if !window.TryAcquire().IsAllowed() {
			t.Fatalf("head request %d should be allowed", i+1)
		}
	}

	res := window.TryAcquire()
	if !res.IsDenied() {
		t.Fatal("11th request should be denied")
	}
	if res.WaitTime() != time.Second {
		t.Errorf("WaitTime() = %v, want 1s", res.WaitTime())
	}
}

func TestFixedWindow_WaitUntilWindowEnd(t *testing.T) {
	clock := newFakeClock()
	cfg, _ := NewConfig(2, 2, time.Second)
	window, _ := NewFixedWindow(cfg, WithClock(clock.Now))

	window.TryAcquire()
	window.TryAcquire()
	clock.Advance(300 * time.Millisecond)

	res := window.TryAcquire()
	if res.WaitTime() != 700*time.Millisecond {
		t.Errorf("WaitTime() = %v, want 700ms", res.WaitTime())
	}
	if got := window.Available(); got != 0 {
		t.Errorf("Available() = %d, want 0", got)
	}

	clock.Advance(700 * time.Millisecond)
	if got := window.Available(); got != 2 {
		t.Errorf("Available() after rollover = %d, want 2", got)
	}
}

// ============================================================================
// Shared Contract Tests
// ============================================================================

func allStrategies(t *testing.T, cfg Config, opts ...Option) map[Strategy]Limiter {
	t.Helper()
	limiters := make(map[Strategy]Limiter)
	for _, s := range Strategies() {
		l, err := New(s, cfg, opts...)
		if err != nil {
			t.Fatalf("New(%s) error = %v", s, err)
		}
		limiters[s] = l
	}
	return limiters
}

func TestLimiter_IdempotentReset(t *testing.T) {
	cfg, _ := NewConfig(1, 7, time.Minute)

	for strategy, limiter := range allStrategies(t, cfg) {
		t.Run(string(strategy), func(t *testing.T) {
			for i := 0; i < 4; i++ {
				limiter.TryAcquire()
			}

			limiter.Reset()
			if got := limiter.Available(); got != 7 {
				t.Errorf("Available() after Reset = %d, want 7", got)
			}

			limiter.Reset()
			if got := limiter.Available(); got != 7 {
				t.Errorf("Available() after second Reset = %d, want 7", got)
			}
		})
	}
}

func TestLimiter_ConcurrentAdmissionIsExact(t *testing.T) {
	// Negligible refill during the test
	cfg, _ := NewConfig(0.001, 50, time.Hour)

	for strategy, limiter := range allStrategies(t, cfg) {
		t.Run(string(strategy), func(t *testing.T) {
			var allowed atomic.Int64
			var wg sync.WaitGroup

			for g := 0; g < 20; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 10; i++ {
						if limiter.TryAcquire().IsAllowed() {
							allowed.Add(1)
						}
						limiter.Available()
					}
				}()
			}
			wg.Wait()

			if got := allowed.Load(); got != 50 {
				t.Errorf("admitted %d requests, want exactly 50", got)
			}
		})
	}
}

func TestLimiter_AcquireWaits(t *testing.T) {
	cfg, _ := NewConfig(20, 1, 50*time.Millisecond)

	for strategy, limiter := range allStrategies(t, cfg) {
		t.Run(string(strategy), func(t *testing.T) {
			limiter.TryAcquire()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			start := time.Now()
			if err := limiter.Acquire(ctx); err != nil {
				t.Fatalf("Acquire() error = %v", err)
			}
			if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
				t.Errorf("Acquire() returned after %v, expected it to wait", elapsed)
			}
		})
	}
}

func TestLimiter_AcquireHonoursDeadline(t *testing.T) {
	cfg, _ := NewConfig(0.001, 1, time.Hour)

	for strategy, limiter := range allStrategies(t, cfg) {
		t.Run(string(strategy), func(t *testing.T) {
			limiter.TryAcquire()

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			err := limiter.Acquire(ctx)
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Acquire() error = %v, want DeadlineExceeded", err)
			}
		})
	}
}

func TestLimiter_AcquireCanceledContext(t *testing.T) {
	cfg, _ := PerSecond(10)
	bucket, _ := NewTokenBucket(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := bucket.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want Canceled", err)
	}
	if got := bucket.Available(); got != 10 {
		t.Errorf("canceled Acquire consumed a token: Available() = %d", got)
	}
}

func TestLimiter_AcquireReleasesLockWhileWaiting(t *testing.T) {
	cfg, _ := NewConfig(0.001, 1, time.Hour)
	window, _ := NewFixedWindow(cfg)
	window.TryAcquire()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- window.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)

	// Would block forever if the waiter held the lock.
	finished := make(chan struct{})
	go func() {
		window.Available()
		window.Reset()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Available/Reset blocked while another caller was waiting")
	}

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected Acquire() error = %v", err)
	}
}

func TestAcquire_NegativeWaitIsInternal(t *testing.T) {
	err := acquire(context.Background(), func() Result {
		return Result{denied: true, wait: -time.Second}
	})
	if !errors.Is(err, ErrInternal) {
		t.Errorf("expected ErrInternal, got %v", err)
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	if _, err := New("leaky_bucket", DefaultConfig()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := ParseStrategy("fixed_window"); err != nil {
		t.Errorf("ParseStrategy(fixed_window) error = %v", err)
	}
	if _, err := ParseStrategy("bogus"); err == nil {
		t.Error("ParseStrategy(bogus) expected error")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	for _, s := range Strategies() {
		if _, err := New(s, Config{Rate: 1}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("New(%s) with zero burst: expected ErrInvalidConfig, got %v", s, err)
		}
	}
}
