package cli

import (
	"errors"
	"fmt"
	"testing"

	"mercator-hq/throttle/pkg/config"
)

func TestConfigError(t *testing.T) {
	cause := errors.New("missing limiters")

	err := NewConfigError("throttle.yaml", cause)
	if got, want := err.Error(), "config error in throttle.yaml: missing limiters"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("ConfigError should unwrap to its cause")
	}

	noPath := NewConfigError("", cause)
	if got, want := noPath.Error(), "config error: missing limiters"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCommandError(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("run", underlyingErr)

	expected := "command run failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("CommandError should unwrap to underlying error")
	}
}

func TestExitCode(t *testing.T) {
	validation := config.ValidationError{Errors: []config.FieldError{{Field: "limiters", Message: "empty"}}}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitFailure},
		{"command", NewCommandError("run", errors.New("boom")), ExitFailure},
		{"config", NewConfigError("x.yaml", errors.New("bad")), ExitConfig},
		{"wrapped validation", fmt.Errorf("load: %w", validation), ExitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
