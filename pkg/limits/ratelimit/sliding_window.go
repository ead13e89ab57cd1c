package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow admits at most Burst requests in any trailing Window by
// recording the timestamp of every admitted request.
//
// Accounting is exact: unlike FixedWindow there is no boundary double
// burst. Memory is O(burst) and eviction is amortized O(1) per admitted
// request.
//
// # Algorithm
//
//  1. Evict timestamps older than now - window (a prefix trim)
//  2. If fewer than burst remain: record now and allow
//  3. Otherwise: deny until the oldest entry leaves the window
//
// # Thread Safety
//
// SlidingWindow is thread-safe using sync.Mutex for all operations.
type SlidingWindow struct {
	cfg   Config
	clock Clock

	mu sync.Mutex
	// timestamps[head:] are the admitted requests still in the window,
	// oldest first. The slice grows on demand up to burst entries.
	timestamps []time.Time
	head       int
}

// NewSlidingWindow creates a sliding window limiter with an empty history.
//
// Example:
//
//	// 5 requests in any 100ms span
//	cfg, _ := ratelimit.NewConfig(50, 5, 100*time.Millisecond)
//	window, err := ratelimit.NewSlidingWindow(cfg)
func NewSlidingWindow(cfg Config, opts ...Option) (*SlidingWindow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	return &SlidingWindow{
		cfg:   cfg,
		clock: o.clock,
	}, nil
}

// TryAcquire records a request if the trailing window has room.
func (sw *SlidingWindow) TryAcquire() Result {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock()
	sw.evictLocked(now)

	if uint64(sw.countLocked()) < sw.cfg.Burst {
		sw.appendLocked(now)
		return Allowed()
	}

	oldest := sw.timestamps[sw.head]
	return Denied(oldest.Add(sw.cfg.Window).Sub(now))
}

// Acquire blocks until a request is recorded or ctx is done.
func (sw *SlidingWindow) Acquire(ctx context.Context) error {
	return acquire(ctx, sw.TryAcquire)
}

// Available returns burst minus the requests still inside the window.
func (sw *SlidingWindow) Available() uint64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.evictLocked(sw.clock())
	return sw.cfg.Burst - uint64(sw.countLocked())
}

// Reset discards the request history.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.timestamps = sw.timestamps[:0]
	sw.head = 0
}

// Config returns the configuration the window was built with.
func (sw *SlidingWindow) Config() Config { return sw.cfg }

// Strategy returns StrategySlidingWindow.
func (sw *SlidingWindow) Strategy() Strategy { return StrategySlidingWindow }

func (sw *SlidingWindow) countLocked() int {
	return len(sw.timestamps) - sw.head
}

// evictLocked drops timestamps strictly older than now - window.
// Caller must hold lock.
func (sw *SlidingWindow) evictLocked(now time.Time) {
	cutoff := now.Add(-sw.cfg.Window)
	for sw.head < len(sw.timestamps) && sw.timestamps[sw.head].Before(cutoff) {
		sw.timestamps[sw.head] = time.Time{}
		sw.head++
	}

	if sw.head == len(sw.timestamps) {
		sw.timestamps = sw.timestamps[:0]
		sw.head = 0
	}
}

// appendLocked records now, compacting the evicted prefix first when the
// backing array is full so storage never exceeds burst entries.
// Caller must hold lock.
func (sw *SlidingWindow) appendLocked(now time.Time) {
	if sw.head > 0 && len(sw.timestamps) == cap(sw.timestamps) {
		n := copy(sw.timestamps, sw.timestamps[sw.head:])
		clear(sw.timestamps[n:])
		sw.timestamps = sw.timestamps[:n]
		sw.head = 0
	}

	if len(sw.timestamps) == cap(sw.timestamps) {
		grown := make([]time.Time, len(sw.timestamps), sw.growCapLocked())
		copy(grown, sw.timestamps)
		sw.timestamps = grown
	}
	sw.timestamps = append(sw.timestamps, now)
}

// growCapLocked doubles the backing array, never past burst.
func (sw *SlidingWindow) growCapLocked() int {
	next := max(2*cap(sw.timestamps), 8)
	if uint64(next) > sw.cfg.Burst {
		next = int(sw.cfg.Burst)
	}
	return next
}
