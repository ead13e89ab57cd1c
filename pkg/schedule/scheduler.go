// Package schedule runs named jobs on cron schedules.
//
// It backs scheduled limiter resets and audit retention pruning. Schedules
// use the standard five-field cron syntax, plus descriptors such as
// "@hourly" and "@every 30s".
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job describes a registered job.
type Job struct {
	Name string
	Spec string

	// Next is the next activation time; zero until the scheduler is started.
	Next time.Time
}

type job struct {
	id   cron.EntryID
	spec string
	fn   func()
}

// Scheduler manages named cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]*job
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// New creates an idle scheduler.
func New() *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		jobs:   make(map[string]*job),
		logger: slog.Default().With("component", "schedule"),
	}
}

// ValidateSpec checks a cron expression without scheduling anything.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "@every 1m"    - Every minute
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return nil
}

// Schedule registers fn under name, replacing any job with the same name.
// Jobs may be added before or after Start.
func (s *Scheduler) Schedule(name, spec string, fn func()) error {
	if err := ValidateSpec(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old.id)
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("failed to schedule %q: %w", name, err)
	}

	s.jobs[name] = &job{id: id, spec: spec, fn: fn}
	s.logger.Debug("job scheduled", "job", name, "schedule", spec)
	return nil
}

// Remove unregisters a job. It reports whether the job existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	s.cron.Remove(j.id)
	delete(s.jobs, name)
	s.logger.Debug("job removed", "job", name)
	return true
}

// RunNow executes a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	s.run(name, j.fn)
	return nil
}

// Start begins running jobs. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "jobs", len(s.jobs))

	// Wait for context cancellation in background
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop stops the scheduler and waits for any running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopped := s.cron.Stop()
	s.mu.Unlock()

	// Jobs may call back into the scheduler, so wait without the lock.
	<-stopped.Done()
	s.logger.Info("scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next activation time of a job, or nil if the job is
// unknown or the scheduler has not started.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return nil
	}

	next := s.cron.Entry(j.id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// Jobs lists registered jobs sorted by name.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for name, j := range s.jobs {
		jobs = append(jobs, Job{
			Name: name,
			Spec: j.spec,
			Next: s.cron.Entry(j.id).Next,
		})
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].Name < jobs[b].Name })
	return jobs
}

// run executes fn, recovering from panics so one job cannot stop the others.
func (s *Scheduler) run(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked", "job", name, "panic", r)
		}
	}()

	start := time.Now()
	fn()
	s.logger.Debug("scheduled job completed", "job", name, "duration", time.Since(start))
}
