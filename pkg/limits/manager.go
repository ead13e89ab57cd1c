package limits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mercator-hq/throttle/pkg/audit"
	"mercator-hq/throttle/pkg/limits/ratelimit"
	"mercator-hq/throttle/pkg/telemetry/logging"
)

// Auditor receives audit events. *audit.Recorder implements it.
type Auditor interface {
	Record(ctx context.Context, event *audit.Event)
}

// Scheduler runs periodic resets. *schedule.Scheduler implements it.
type Scheduler interface {
	Schedule(name, spec string, fn func()) error
	Remove(name string) bool
	NextRun(name string) *time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMetrics records Prometheus metrics for every operation.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithAuditor sends reset and reload events, and denials unless disabled
// with WithDenialAuditing, to the auditor.
func WithAuditor(auditor Auditor) ManagerOption {
	return func(m *Manager) { m.auditor = auditor }
}

// WithDenialAuditing controls whether denied checks are audited.
// Enabled by default.
func WithDenialAuditing(enabled bool) ManagerOption {
	return func(m *Manager) { m.auditDenials = enabled }
}

// WithScheduler registers a reset job for every definition with a
// ResetSchedule.
func WithScheduler(scheduler Scheduler) ManagerOption {
	return func(m *Manager) { m.scheduler = scheduler }
}

// WithLogger replaces the default component logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithLimiterOptions passes options, such as a clock, to every limiter built
// by the manager.
func WithLimiterOptions(opts ...ratelimit.Option) ManagerOption {
	return func(m *Manager) { m.limiterOpts = append(m.limiterOpts, opts...) }
}

type entry struct {
	def     Definition
	limiter ratelimit.Limiter
}

// Manager owns a set of named limiters built from definitions.
//
// Each limiter is an independent ratelimit.Limiter; the manager adds lookup
// by name, metrics, audit events, scheduled resets and hot reload on top.
//
// # Example
//
//	manager, err := limits.NewManager(defs, limits.WithMetrics(metrics))
//
//	res, err := manager.TryAcquire(ctx, "api")
//	if res.IsDenied() {
//	    // respond 429 with res.WaitTime()
//	}
type Manager struct {
	entries map[string]*entry

	metrics      *Metrics
	auditor      Auditor
	auditDenials bool
	scheduler    Scheduler
	limiterOpts  []ratelimit.Option
	logger       *slog.Logger

	mu       sync.RWMutex
	reloadMu sync.Mutex // serializes Reload
}

// NewManager builds a limiter for every definition.
func NewManager(defs []Definition, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		entries:      make(map[string]*entry),
		auditDenials: true,
		logger:       slog.Default().With("component", "limits"),
	}
	for _, opt := range opts {
		opt(m)
	}

	entries, err := m.build(defs, nil)
	if err != nil {
		return nil, err
	}
	if err := m.scheduleResets(entries); err != nil {
		return nil, err
	}
	m.entries = entries

	m.logger.Info("limits manager initialized", "limiters", len(entries))
	return m, nil
}

// TryAcquire makes a non-blocking admission decision on the named limiter.
func (m *Manager) TryAcquire(ctx context.Context, name string) (ratelimit.Result, error) {
	start := time.Now()

	e, err := m.lookup(name)
	if err != nil {
		return ratelimit.Result{}, err
	}

	res := e.limiter.TryAcquire()

	m.metrics.RecordCheck(name, string(e.def.Strategy), res.IsAllowed(), res.WaitTime())
	if m.metrics != nil {
		m.metrics.SetAvailable(name, e.limiter.Available())
	}

	if res.IsDenied() {
		m.logger.DebugContext(ctx, "request denied",
			"limiter", name,
			"wait", res.WaitTime(),
			"request_id", logging.GetRequestID(ctx),
		)
		if m.auditDenials {
			event := audit.NewEvent(audit.KindDenied, name)
			event.WaitMs = ratelimit.Exceeded(res.WaitTime()).RetryAfterMs
			m.audit(ctx, event)
		}
	}

	m.metrics.ObserveCheckDuration("try_acquire", time.Since(start))
	return res, nil
}

// Acquire blocks until the named limiter admits the caller or ctx is done.
func (m *Manager) Acquire(ctx context.Context, name string) error {
	e, err := m.lookup(name)
	if err != nil {
		return err
	}

	start := time.Now()
	err = e.limiter.Acquire(ctx)

	outcome := "acquired"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "canceled"
	default:
		outcome = "error"
	}
	m.metrics.ObserveAcquire(name, outcome, time.Since(start))

	if err != nil {
		return fmt.Errorf("limiter %q: %w", name, err)
	}
	return nil
}

// Available reports the permits obtainable from the named limiter right now.
func (m *Manager) Available(name string) (uint64, error) {
	e, err := m.lookup(name)
	if err != nil {
		return 0, err
	}

	n := e.limiter.Available()
	m.metrics.SetAvailable(name, n)
	return n, nil
}

// Reset restores the named limiter to its initial state.
func (m *Manager) Reset(ctx context.Context, name string) error {
	return m.reset(ctx, name, TriggerManual)
}

// ResetAll resets every limiter.
func (m *Manager) ResetAll(ctx context.Context) {
	for _, name := range m.Names() {
		// A concurrent reload may have removed the limiter; nothing to reset then.
		_ = m.reset(ctx, name, TriggerManual)
	}
}

// Get returns the named limiter.
func (m *Manager) Get(name string) (ratelimit.Limiter, bool) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, false
	}
	return e.limiter, true
}

// Definition returns the definition the named limiter was built from.
func (m *Manager) Definition(name string) (Definition, bool) {
	e, err := m.lookup(name)
	if err != nil {
		return Definition{}, false
	}
	return e.def, true
}

// Names lists limiter names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns a point-in-time view of the named limiter.
func (m *Manager) Status(name string) (Status, error) {
	e, err := m.lookup(name)
	if err != nil {
		return Status{}, err
	}
	return m.status(e), nil
}

// Snapshot returns the status of every limiter, sorted by name.
func (m *Manager) Snapshot() []Status {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	statuses := make([]Status, 0, len(entries))
	for _, e := range entries {
		statuses = append(statuses, m.status(e))
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// Reload replaces the definitions. Limiters whose strategy and config are
// unchanged keep their live state; changed ones are rebuilt fresh; missing
// ones are dropped. On error nothing changes.
func (m *Manager) Reload(ctx context.Context, defs []Definition) (ReloadSummary, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	m.mu.RLock()
	current := m.entries
	m.mu.RUnlock()

	next, err := m.build(defs, current)
	if err != nil {
		return ReloadSummary{}, err
	}

	var summary ReloadSummary
	for name, e := range next {
		old, ok := current[name]
		switch {
		case !ok:
			summary.Added = append(summary.Added, name)
		case old != e:
			summary.Updated = append(summary.Updated, name)
		default:
			summary.Unchanged = append(summary.Unchanged, name)
		}
	}

	m.mu.Lock()
	for name, e := range m.entries {
		if _, ok := next[name]; ok {
			continue
		}
		summary.Removed = append(summary.Removed, name)
		m.metrics.Forget(name)
		if m.scheduler != nil && e.def.ResetSchedule != "" {
			m.scheduler.Remove(resetJobName(name))
		}
	}
	m.entries = next
	m.mu.Unlock()

	// Schedules were validated by build, so registration only fails on a
	// scheduler fault; the new definitions stay in place either way.
	if err := m.scheduleResets(next); err != nil {
		m.logger.ErrorContext(ctx, "failed to schedule resets", "error", err)
	}
	if m.scheduler != nil {
		for name, e := range next {
			if e.def.ResetSchedule == "" {
				m.scheduler.Remove(resetJobName(name))
			}
		}
	}

	sort.Strings(summary.Added)
	sort.Strings(summary.Updated)
	sort.Strings(summary.Removed)
	sort.Strings(summary.Unchanged)

	m.logger.InfoContext(ctx, "limiters reloaded",
		"added", summary.Added,
		"updated", summary.Updated,
		"removed", summary.Removed,
	)

	event := audit.NewEvent(audit.KindReload, "")
	event.Detail = summary.String()
	m.audit(ctx, event)

	return summary, nil
}

// Close unregisters scheduled resets.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scheduler != nil {
		for name := range m.entries {
			m.scheduler.Remove(resetJobName(name))
		}
	}
	return nil
}

func (m *Manager) lookup(name string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLimiter, name)
	}
	return e, nil
}

func (m *Manager) reset(ctx context.Context, name, trigger string) error {
	e, err := m.lookup(name)
	if err != nil {
		return err
	}

	e.limiter.Reset()
	m.metrics.RecordReset(name, trigger)
	m.metrics.SetAvailable(name, e.limiter.Available())

	m.logger.InfoContext(ctx, "limiter reset", "limiter", name, "trigger", trigger)

	event := audit.NewEvent(audit.KindReset, name)
	event.Detail = trigger
	m.audit(ctx, event)
	return nil
}

func (m *Manager) audit(ctx context.Context, event *audit.Event) {
	if m.auditor == nil {
		return
	}
	event.RequestID = logging.GetRequestID(ctx)
	m.auditor.Record(ctx, event)
}

func (m *Manager) status(e *entry) Status {
	cfg := e.def.Config
	st := Status{
		Name:          e.def.Name,
		Strategy:      e.def.Strategy,
		Rate:          cfg.Rate,
		Burst:         cfg.Burst,
		Window:        cfg.Window,
		Available:     e.limiter.Available(),
		ResetSchedule: e.def.ResetSchedule,
	}
	if m.scheduler != nil && e.def.ResetSchedule != "" {
		st.NextReset = m.scheduler.NextRun(resetJobName(e.def.Name))
	}
	return st
}

// build creates entries for defs, reusing entries from current whose
// limiter would be identical.
func (m *Manager) build(defs []Definition, current map[string]*entry) (map[string]*entry, error) {
	entries := make(map[string]*entry, len(defs))

	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := entries[def.Name]; dup {
			return nil, fmt.Errorf("duplicate limiter name %q", def.Name)
		}

		if old, ok := current[def.Name]; ok && old.def.sameLimiter(def) {
			if old.def.ResetSchedule == def.ResetSchedule {
				entries[def.Name] = old
			} else {
				entries[def.Name] = &entry{def: def, limiter: old.limiter}
			}
			continue
		}

		limiter, err := ratelimit.New(def.Strategy, def.Config, m.limiterOpts...)
		if err != nil {
			return nil, fmt.Errorf("limiter %q: %w", def.Name, err)
		}
		entries[def.Name] = &entry{def: def, limiter: limiter}
	}

	return entries, nil
}

func (m *Manager) scheduleResets(entries map[string]*entry) error {
	if m.scheduler == nil {
		return nil
	}

	for name, e := range entries {
		if e.def.ResetSchedule == "" {
			continue
		}
		err := m.scheduler.Schedule(resetJobName(name), e.def.ResetSchedule, func() {
			if err := m.reset(context.Background(), name, TriggerSchedule); err != nil {
				m.logger.Warn("scheduled reset skipped", "limiter", name, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("limiter %q: %w", name, err)
		}
	}
	return nil
}

func resetJobName(limiter string) string {
	return "reset:" + limiter
}
