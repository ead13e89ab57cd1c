package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{
		Limiters: map[string]LimiterConfig{
			"api": {Rate: 10},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
	}
	if cfg.Limiters["api"].Strategy != DefaultStrategy {
		t.Errorf("expected strategy %q, got %q", DefaultStrategy, cfg.Limiters["api"].Strategy)
	}
	if cfg.Audit.SQLite.Path != DefaultAuditSQLitePath {
		t.Errorf("expected sqlite path %q, got %q", DefaultAuditSQLitePath, cfg.Audit.SQLite.Path)
	}
	if cfg.Audit.Retention.PruneSchedule != DefaultAuditPruneSchedule {
		t.Errorf("expected prune schedule %q, got %q", DefaultAuditPruneSchedule, cfg.Audit.Retention.PruneSchedule)
	}
	if !cfg.Audit.ShouldRecordDenials() {
		t.Error("expected denials recorded by default")
	}
	if !cfg.Audit.SQLite.UseWAL() {
		t.Error("expected WAL mode by default")
	}
	if cfg.Watch.Debounce != DefaultWatchDebounce {
		t.Errorf("expected debounce %v, got %v", DefaultWatchDebounce, cfg.Watch.Debounce)
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "no limiters",
			mutate:    func(c *Config) { c.Limiters = nil },
			wantField: "limiters",
		},
		{
			name: "zero burst is derived, not rejected",
			mutate: func(c *Config) {
				c.Limiters["api"] = LimiterConfig{Strategy: "fixed_window", Rate: 3, Burst: 0}
			},
		},
		{
			name: "unknown period",
			mutate: func(c *Config) {
				c.Limiters["api"] = LimiterConfig{Strategy: "token_bucket", Rate: 3, Per: "day"}
			},
			wantField: "limiters.api.per",
		},
		{
			name: "negative window",
			mutate: func(c *Config) {
				c.Limiters["api"] = LimiterConfig{Strategy: "token_bucket", Rate: 3, Window: -1}
			},
			wantField: "limiters.api.window",
		},
		{
			name: "bad reset schedule",
			mutate: func(c *Config) {
				c.Limiters["api"] = LimiterConfig{Strategy: "token_bucket", Rate: 3, ResetSchedule: "every tuesday"}
			},
			wantField: "limiters.api.reset_schedule",
		},
		{
			name:      "bad listen address",
			mutate:    func(c *Config) { c.Server.ListenAddress = "localhost" },
			wantField: "server.listen_address",
		},
		{
			name:      "negative timeout",
			mutate:    func(c *Config) { c.Server.ShutdownTimeout = -1 },
			wantField: "server.shutdown_timeout",
		},
		{
			name: "short admin key",
			mutate: func(c *Config) {
				c.Server.AdminKeys = []AdminKeyConfig{{Name: "ops", Key: "short"}}
			},
			wantField: "server.admin_keys[0].key",
		},
		{
			name: "duplicate admin key name",
			mutate: func(c *Config) {
				c.Server.AdminKeys = []AdminKeyConfig{
					{Name: "ops", Key: "0123456789abcdef"},
					{Name: "ops", Key: "fedcba9876543210"},
				}
			},
			wantField: "server.admin_keys[1].name",
		},
		{
			name:      "bad middleware mode",
			mutate:    func(c *Config) { c.Middleware.Mode = "queue" },
			wantField: "middleware.mode",
		},
		{
			name: "middleware references unknown limiter",
			mutate: func(c *Config) {
				c.Middleware.Enabled = true
				c.Middleware.Limiter = "missing"
			},
			wantField: "middleware.limiter",
		},
		{
			name: "disabled middleware ignores limiter",
			mutate: func(c *Config) {
				c.Middleware.Limiter = "missing"
			},
		},
		{
			name:      "bad audit backend",
			mutate:    func(c *Config) { c.Audit.Backend = "postgres" },
			wantField: "audit.backend",
		},
		{
			name:      "bad sqlite driver",
			mutate:    func(c *Config) { c.Audit.SQLite.Driver = "sqlite4" },
			wantField: "audit.sqlite.driver",
		},
		{
			name:      "bad prune schedule",
			mutate:    func(c *Config) { c.Audit.Retention.PruneSchedule = "* *" },
			wantField: "audit.retention.prune_schedule",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantField: "telemetry.logging.level",
		},
		{
			name:      "relative metrics path",
			mutate:    func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			wantField: "telemetry.metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for %s, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if single.Error() != "configuration validation failed: a: bad" {
		t.Errorf("unexpected single message: %q", single.Error())
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	msg := multi.Error()
	if !strings.Contains(msg, "2 errors") || !strings.Contains(msg, "  - b: worse") {
		t.Errorf("unexpected multi message: %q", msg)
	}
}
