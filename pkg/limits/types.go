package limits

import (
	"errors"
	"fmt"
	"time"

	"mercator-hq/throttle/pkg/limits/ratelimit"
	"mercator-hq/throttle/pkg/schedule"
)

// ErrUnknownLimiter is returned when a name has no registered limiter.
var ErrUnknownLimiter = errors.New("unknown limiter")

// Reset triggers recorded in metrics and audit events.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
)

// Definition describes one named limiter.
type Definition struct {
	// Name identifies the limiter in the API, metrics and logs.
	Name string

	// Strategy selects the admission algorithm.
	Strategy ratelimit.Strategy

	// Config is the validated rate budget.
	Config ratelimit.Config

	// ResetSchedule is an optional cron expression for periodic resets.
	ResetSchedule string
}

// Validate checks the definition without building a limiter.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("limiter name cannot be empty")
	}
	if _, err := ratelimit.ParseStrategy(string(d.Strategy)); err != nil {
		return fmt.Errorf("limiter %q: %w", d.Name, err)
	}
	if err := d.Config.Validate(); err != nil {
		return fmt.Errorf("limiter %q: %w", d.Name, err)
	}
	if d.ResetSchedule != "" {
		if err := schedule.ValidateSpec(d.ResetSchedule); err != nil {
			return fmt.Errorf("limiter %q: %w", d.Name, err)
		}
	}
	return nil
}

// sameLimiter reports whether two definitions produce identical limiters,
// in which case a reload keeps the live instance and its state.
func (d Definition) sameLimiter(other Definition) bool {
	return d.Strategy == other.Strategy && d.Config == other.Config
}

// Status is a point-in-time view of a limiter.
type Status struct {
	Name          string             `json:"name"`
	Strategy      ratelimit.Strategy `json:"strategy"`
	Rate          float64            `json:"rate"`
	Burst         uint64             `json:"burst"`
	Window        time.Duration      `json:"window"`
	Available     uint64             `json:"available"`
	ResetSchedule string             `json:"reset_schedule,omitempty"`
	NextReset     *time.Time         `json:"next_reset,omitempty"`
}

// ReloadSummary reports what a reload changed.
type ReloadSummary struct {
	Added     []string `json:"added,omitempty"`
	Updated   []string `json:"updated,omitempty"`
	Removed   []string `json:"removed,omitempty"`
	Unchanged []string `json:"unchanged,omitempty"`
}

// String implements fmt.Stringer.
func (s ReloadSummary) String() string {
	return fmt.Sprintf("added=%d updated=%d removed=%d unchanged=%d",
		len(s.Added), len(s.Updated), len(s.Removed), len(s.Unchanged))
}
