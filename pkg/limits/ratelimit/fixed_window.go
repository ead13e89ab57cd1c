package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindow partitions time into consecutive windows of length Window and
// admits up to Burst requests in each, using O(1) memory.
//
// A window starts at the first check after the previous one expired, not on
// wall-clock boundaries. Because windows are counted independently, up to
// 2*burst requests can be admitted in a short span straddling a boundary
// (burst at the tail of one window, burst at the head of the next). That is
// the accepted cost of fixed-window counting; use SlidingWindow when it
// matters.
//
// # Thread Safety
//
// FixedWindow is thread-safe using sync.Mutex for all operations.
type FixedWindow struct {
	cfg   Config
	clock Clock

	mu          sync.Mutex
	count       uint64
	windowStart time.Time
}

// NewFixedWindow creates a fixed window limiter whose first window starts now.
func NewFixedWindow(cfg Config, opts ...Option) (*FixedWindow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	return &FixedWindow{
		cfg:         cfg,
		clock:       o.clock,
		windowStart: o.clock(),
	}, nil
}

// TryAcquire counts the request against the current window if it has room.
func (fw *FixedWindow) TryAcquire() Result {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.clock()
	fw.rolloverLocked(now)

	if fw.count < fw.cfg.Burst {
		fw.count++
		return Allowed()
	}

	return Denied(fw.windowStart.Add(fw.cfg.Window).Sub(now))
}

// Acquire blocks until the request is counted or ctx is done.
func (fw *FixedWindow) Acquire(ctx context.Context) error {
	return acquire(ctx, fw.TryAcquire)
}

// Available returns the requests left in the current window.
func (fw *FixedWindow) Available() uint64 {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.rolloverLocked(fw.clock())
	return fw.cfg.Burst - fw.count
}

// Reset zeroes the count and starts a new window now.
func (fw *FixedWindow) Reset() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.count = 0
	fw.windowStart = fw.clock()
}

// Config returns the configuration the window was built with.
func (fw *FixedWindow) Config() Config { return fw.cfg }

// Strategy returns StrategyFixedWindow.
func (fw *FixedWindow) Strategy() Strategy { return StrategyFixedWindow }

// rolloverLocked begins a new window once the current one has elapsed.
// Caller must hold lock.
func (fw *FixedWindow) rolloverLocked(now time.Time) {
	if now.Sub(fw.windowStart) >= fw.cfg.Window {
		fw.count = 0
		fw.windowStart = now
	}
}
