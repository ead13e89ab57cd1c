package health

import (
	"context"
	"errors"
	"fmt"
)

// LimiterCounter reports how many limiters are registered.
type LimiterCounter interface {
	Names() []string
}

// LimitersCheck fails when no limiter is registered.
func LimitersCheck(limiters LimiterCounter) CheckFunc {
	return func(ctx context.Context) error {
		if len(limiters.Names()) == 0 {
			return errors.New("no limiters configured")
		}
		return nil
	}
}

// Pinger is a dependency that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps a Pinger, prefixing failures with name.
func PingCheck(name string, p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

// RunningCheck fails when running reports false.
func RunningCheck(name string, running func() bool) CheckFunc {
	return func(ctx context.Context) error {
		if !running() {
			return fmt.Errorf("%s is not running", name)
		}
		return nil
	}
}
