package ratelimit

import (
	"fmt"
	"math"
	"time"
)

// Default configuration values used by DefaultConfig.
const (
	DefaultRate   = 10.0
	DefaultBurst  = 10
	DefaultWindow = time.Second
)

// Config describes a rate budget shared by every strategy.
//
// Config is an immutable value; construct it with NewConfig or one of the
// shorthand constructors so the invariants below are checked.
//
// Invariants:
//   - Rate > 0 (permits admitted per second)
//   - Burst > 0 (maximum permits banked or consumed at once)
//   - Window >= 0 (accounting period for the window strategies)
type Config struct {
	// Rate is the number of permits admitted per second.
	Rate float64

	// Burst is the maximum number of permits that can be used at once.
	Burst uint64

	// Window is the accounting period for sliding and fixed window limiters.
	// The token bucket ignores it.
	Window time.Duration
}

// NewConfig validates the parameters and returns a Config.
//
// A *ConfigError naming the offending field is returned when rate is not a
// positive finite number, burst is zero or window is negative.
func NewConfig(rate float64, burst uint64, window time.Duration) (Config, error) {
	if err := validateRate(rate); err != nil {
		return Config{}, err
	}
	if burst == 0 {
		return Config{}, &ConfigError{Field: "burst", Reason: "must be greater than 0"}
	}
	if window < 0 {
		return Config{}, &ConfigError{Field: "window", Reason: fmt.Sprintf("must not be negative, got %s", window)}
	}

	return Config{Rate: rate, Burst: burst, Window: window}, nil
}

// PerSecond returns a Config admitting rate permits per second with a burst
// of ceil(rate) and a one second window.
func PerSecond(rate float64) (Config, error) {
	return perPeriod(rate, time.Second)
}

// PerMinute returns a Config admitting rate permits per minute with a burst
// of ceil(rate) and a one minute window.
func PerMinute(rate float64) (Config, error) {
	return perPeriod(rate, time.Minute)
}

// PerHour returns a Config admitting rate permits per hour with a burst of
// ceil(rate) and a one hour window.
func PerHour(rate float64) (Config, error) {
	return perPeriod(rate, time.Hour)
}

// DefaultConfig returns 10 permits per second with a burst of 10.
func DefaultConfig() Config {
	return Config{Rate: DefaultRate, Burst: DefaultBurst, Window: DefaultWindow}
}

// Validate re-checks the invariants of a Config built by hand.
func (c Config) Validate() error {
	_, err := NewConfig(c.Rate, c.Burst, c.Window)
	return err
}

// String implements fmt.Stringer.
func (c Config) String() string {
	return fmt.Sprintf("rate=%g/s burst=%d window=%s", c.Rate, c.Burst, c.Window)
}

func perPeriod(rate float64, period time.Duration) (Config, error) {
	// Checked before ceil so a negative or NaN rate never reaches the uint64 conversion.
	if err := validateRate(rate); err != nil {
		return Config{}, err
	}

	burst := math.Ceil(rate)
	if burst > math.MaxUint64/2 {
		return Config{}, &ConfigError{Field: "rate", Reason: "is too large"}
	}

	return NewConfig(rate/period.Seconds(), uint64(burst), period)
}

func validateRate(rate float64) error {
	switch {
	case math.IsNaN(rate) || math.IsInf(rate, 0):
		return &ConfigError{Field: "rate", Reason: "must be a finite number"}
	case rate <= 0:
		return &ConfigError{Field: "rate", Reason: fmt.Sprintf("must be greater than 0, got %g", rate)}
	}
	return nil
}
