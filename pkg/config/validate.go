package config

import (
	"fmt"
	"strings"
	"time"

	"mercator-hq/throttle/pkg/limits/ratelimit"
	"mercator-hq/throttle/pkg/schedule"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateLimiters(cfg.Limiters)...)
	errs = append(errs, validateMiddleware(&cfg.Middleware, cfg.Limiters)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if cfg.Watch.Debounce < 0 {
		errs = append(errs, FieldError{Field: "watch.debounce", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "must not be empty"})
	} else if !strings.Contains(cfg.ListenAddress, ":") {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("must be host:port, got %q", cfg.ListenAddress),
		})
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", cfg.ReadTimeout},
		{"server.write_timeout", cfg.WriteTimeout},
		{"server.idle_timeout", cfg.IdleTimeout},
		{"server.shutdown_timeout", cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs = append(errs, FieldError{Field: d.field, Message: "must not be negative"})
		}
	}

	names := make(map[string]bool, len(cfg.AdminKeys))
	for i, k := range cfg.AdminKeys {
		field := fmt.Sprintf("server.admin_keys[%d]", i)
		if k.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "must not be empty"})
		} else if names[k.Name] {
			errs = append(errs, FieldError{Field: field + ".name", Message: fmt.Sprintf("duplicate key name %q", k.Name)})
		}
		names[k.Name] = true
		if len(k.Key) < MinAdminKeyLength {
			errs = append(errs, FieldError{
				Field:   field + ".key",
				Message: fmt.Sprintf("must be at least %d characters", MinAdminKeyLength),
			})
		}
	}

	return errs
}

func validateLimiters(limiters map[string]LimiterConfig) []FieldError {
	var errs []FieldError

	if len(limiters) == 0 {
		return []FieldError{{Field: "limiters", Message: "at least one limiter must be configured"}}
	}

	for name, l := range limiters {
		prefix := fmt.Sprintf("limiters.%s", name)

		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "/ ") {
			errs = append(errs, FieldError{Field: prefix, Message: "name must be non-empty and contain no spaces or slashes"})
		}

		if _, err := ratelimit.ParseStrategy(l.Strategy); err != nil {
			errs = append(errs, FieldError{
				Field:   prefix + ".strategy",
				Message: fmt.Sprintf("must be one of token_bucket, sliding_window, fixed_window, got %q", l.Strategy),
			})
		}

		switch l.Per {
		case "", "second", "minute", "hour":
		default:
			errs = append(errs, FieldError{
				Field:   prefix + ".per",
				Message: fmt.Sprintf("must be second, minute or hour, got %q", l.Per),
			})
		}

		if !(l.Rate > 0) {
			errs = append(errs, FieldError{Field: prefix + ".rate", Message: "must be greater than 0"})
		}
		if l.Window < 0 {
			errs = append(errs, FieldError{Field: prefix + ".window", Message: "must not be negative"})
		}
		if l.Rate > 0 && l.Window >= 0 {
			if _, err := l.RateLimitConfig(); err != nil {
				errs = append(errs, FieldError{Field: prefix, Message: err.Error()})
			}
		}

		if l.ResetSchedule != "" {
			if err := schedule.ValidateSpec(l.ResetSchedule); err != nil {
				errs = append(errs, FieldError{Field: prefix + ".reset_schedule", Message: err.Error()})
			}
		}
	}

	return errs
}

func validateMiddleware(cfg *MiddlewareConfig, limiters map[string]LimiterConfig) []FieldError {
	var errs []FieldError

	if cfg.Mode != "reject" && cfg.Mode != "wait" {
		errs = append(errs, FieldError{
			Field:   "middleware.mode",
			Message: fmt.Sprintf("must be reject or wait, got %q", cfg.Mode),
		})
	}
	if cfg.WaitTimeout < 0 {
		errs = append(errs, FieldError{Field: "middleware.wait_timeout", Message: "must not be negative"})
	}

	if !cfg.Enabled {
		return errs
	}

	if cfg.Limiter == "" {
		errs = append(errs, FieldError{Field: "middleware.limiter", Message: "is required when middleware is enabled"})
	} else if _, ok := limiters[cfg.Limiter]; !ok {
		errs = append(errs, FieldError{
			Field:   "middleware.limiter",
			Message: fmt.Sprintf("references unknown limiter %q", cfg.Limiter),
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.Backend != "memory" && cfg.Backend != "sqlite" {
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("must be memory or sqlite, got %q", cfg.Backend),
		})
	}
	if cfg.AsyncBuffer < 0 {
		errs = append(errs, FieldError{Field: "audit.async_buffer", Message: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "audit.write_timeout", Message: "must not be negative"})
	}

	if cfg.Backend == "sqlite" {
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.driver",
				Message: fmt.Sprintf("must be sqlite or sqlite3, got %q", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "audit.sqlite.path", Message: "must not be empty"})
		}
		if cfg.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{Field: "audit.sqlite.max_open_conns", Message: "must not be negative"})
		}
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "audit.retention.days", Message: "must not be negative"})
	}
	if cfg.Retention.PruneSchedule != "" {
		if err := schedule.ValidateSpec(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{Field: "audit.retention.prune_schedule", Message: err.Error()})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be debug, info, warn or error, got %q", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json, text or console, got %q", cfg.Logging.Format),
		})
	}

	paths := []struct {
		field string
		value string
	}{
		{"telemetry.metrics.path", cfg.Metrics.Path},
		{"telemetry.health.liveness_path", cfg.Health.LivenessPath},
		{"telemetry.health.readiness_path", cfg.Health.ReadinessPath},
	}
	for _, p := range paths {
		if !strings.HasPrefix(p.value, "/") {
			errs = append(errs, FieldError{Field: p.field, Message: fmt.Sprintf("must start with /, got %q", p.value)})
		}
	}

	if cfg.Health.CheckTimeout < 0 {
		errs = append(errs, FieldError{Field: "telemetry.health.check_timeout", Message: "must not be negative"})
	}

	return errs
}
