package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig contains configuration for the audit recorder.
type RecorderConfig struct {
	// Enabled enables audit recording. A disabled recorder drops every event.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing an event to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes audit events asynchronously so admission checks never
// block on storage. When the buffer is full new events are dropped and
// counted.
type Recorder struct {
	storage Storage
	config  *RecorderConfig
	events  chan *Event
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	written atomic.Int64
}

// NewRecorder creates a recorder and starts its background worker.
func NewRecorder(storage Storage, config *RecorderConfig) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		storage: storage,
		config:  config,
		events:  make(chan *Event, config.AsyncBuffer),
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"enabled", config.Enabled,
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Record enqueues an event. It never blocks; ID and Time are filled in when
// empty.
func (r *Recorder) Record(ctx context.Context, event *Event) {
	if !r.config.Enabled || event == nil {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return
	}

	select {
	case r.events <- event:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit buffer full, dropping event",
			"event_id", event.ID,
			"kind", event.Kind,
			"limiter", event.Limiter,
		)
	}
}

// Dropped returns the number of events discarded because the buffer was
// full or the recorder was closed.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Written returns the number of events successfully stored.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Close stops accepting events, drains the buffer and waits for the worker.
// It does not close the underlying storage.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("audit recorder closed",
		"written", r.Written(),
		"dropped", r.Dropped(),
	)
	return nil
}

// worker drains the channel until Close.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.events:
			r.write(event)

		case <-r.done:
			for {
				select {
				case event := <-r.events:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, event); err != nil {
		r.logger.Error("failed to store audit event",
			"event_id", event.ID,
			"kind", event.Kind,
			"error", err,
		)
		return
	}
	r.written.Add(1)
}
