package config

import (
	"fmt"
	"sort"
	"time"

	"mercator-hq/throttle/pkg/limits"
	"mercator-hq/throttle/pkg/limits/ratelimit"
)

// Config is the root configuration structure.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Limiters maps limiter names to their rate budgets.
	Limiters map[string]LimiterConfig `yaml:"limiters"`

	// Middleware configures admission control in front of the demo endpoint.
	Middleware MiddlewareConfig `yaml:"middleware"`

	// Audit configures the audit journal.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry configures logging, metrics and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Watch configures hot reload of this file.
	Watch WatchConfig `yaml:"watch"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address to bind to.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	// Must exceed middleware.wait_timeout in wait mode.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AdminKeys guard limiter resets and the audit API. When empty those
	// endpoints are open.
	AdminKeys []AdminKeyConfig `yaml:"admin_keys"`
}

// AdminKeyConfig is a named pre-shared admin secret.
type AdminKeyConfig struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

// LimiterConfig describes one named limiter.
//
// With Per set, Rate counts permits per second, minute or hour, Burst
// defaults to ceil(Rate) and Window to one period. Without Per, Rate is
// per second and Window defaults to one second. Explicit Burst and Window
// values always win.
type LimiterConfig struct {
	// Strategy is "token_bucket", "sliding_window" or "fixed_window".
	// Default: "token_bucket"
	Strategy string `yaml:"strategy"`

	// Rate is the number of permits admitted per Per period.
	Rate float64 `yaml:"rate"`

	// Per is "second", "minute" or "hour". Empty means per second.
	Per string `yaml:"per"`

	// Burst is the maximum permits usable at once. 0 derives it from Rate.
	Burst uint64 `yaml:"burst"`

	// Window is the accounting period of window strategies. 0 derives it
	// from Per.
	Window time.Duration `yaml:"window"`

	// ResetSchedule is an optional cron expression for periodic resets.
	ResetSchedule string `yaml:"reset_schedule"`
}

// MiddlewareConfig configures the HTTP admission middleware.
type MiddlewareConfig struct {
	// Enabled turns on admission control for the /v1/admit endpoint.
	Enabled bool `yaml:"enabled"`

	// Limiter names the limiter guarding requests.
	Limiter string `yaml:"limiter"`

	// Mode is "reject" (429 immediately) or "wait" (block up to WaitTimeout).
	// Default: "reject"
	Mode string `yaml:"mode"`

	// WaitTimeout bounds the wait in "wait" mode.
	// Default: 5s
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// ClientKeyHeader is logged with every request when present.
	// Default: "X-Client-Key"
	ClientKeyHeader string `yaml:"client_key_header"`
}

// AuditConfig configures the audit journal.
type AuditConfig struct {
	// Enabled turns on audit recording.
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// RecordDenials records every denied check, not just resets and reloads.
	// Default: true
	RecordDenials *bool `yaml:"record_denials"`

	// AsyncBuffer is the recorder channel size.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// SQLite configures the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Retention configures pruning of old events.
	Retention RetentionConfig `yaml:"retention"`
}

// ShouldRecordDenials reports the effective record_denials value.
func (c AuditConfig) ShouldRecordDenials() bool {
	return c.RecordDenials == nil || *c.RecordDenials
}

// SQLiteConfig configures the SQLite audit backend.
type SQLiteConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// MaxOpenConns caps open connections.
	// Default: 1
	MaxOpenConns int `yaml:"max_open_conns"`
}

// UseWAL reports the effective wal_mode value.
func (c SQLiteConfig) UseWAL() bool {
	return c.WALMode == nil || *c.WALMode
}

// RetentionConfig configures audit pruning.
type RetentionConfig struct {
	// Days to keep events. 0 keeps them forever.
	// Default: 30
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig groups observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json", "text" or "console".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource adds file:line to every entry.
	AddSource bool `yaml:"add_source"`

	// MaskClientKeys masks client keys in logs.
	MaskClientKeys bool `yaml:"mask_client_keys"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled exposes metrics.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the scrape path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// IsEnabled reports the effective enabled value.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// HealthConfig configures the health endpoints.
type HealthConfig struct {
	// Enabled exposes liveness and readiness endpoints.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// LivenessPath defaults to "/health".
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath defaults to "/ready".
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout bounds each readiness check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// IsEnabled reports the effective enabled value.
func (c HealthConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// WatchConfig configures hot reload of the configuration file.
type WatchConfig struct {
	// Enabled reloads limiters when the file changes.
	Enabled bool `yaml:"enabled"`

	// Debounce is the quiet period before a reload.
	// Default: 250ms
	Debounce time.Duration `yaml:"debounce"`
}

// RateLimitConfig converts the YAML form into a validated ratelimit.Config.
func (c LimiterConfig) RateLimitConfig() (ratelimit.Config, error) {
	var (
		cfg ratelimit.Config
		err error
	)

	switch c.Per {
	case "", "second":
		cfg, err = ratelimit.PerSecond(c.Rate)
	case "minute":
		cfg, err = ratelimit.PerMinute(c.Rate)
	case "hour":
		cfg, err = ratelimit.PerHour(c.Rate)
	default:
		return ratelimit.Config{}, fmt.Errorf("unknown period %q (expected second, minute or hour)", c.Per)
	}
	if err != nil {
		return ratelimit.Config{}, err
	}

	if c.Burst > 0 {
		cfg.Burst = c.Burst
	}
	if c.Window > 0 {
		cfg.Window = c.Window
	}

	return ratelimit.NewConfig(cfg.Rate, cfg.Burst, cfg.Window)
}

// Definition builds the limits.Definition for the named limiter.
func (c LimiterConfig) Definition(name string) (limits.Definition, error) {
	strategy, err := ratelimit.ParseStrategy(c.Strategy)
	if err != nil {
		return limits.Definition{}, err
	}

	rlCfg, err := c.RateLimitConfig()
	if err != nil {
		return limits.Definition{}, err
	}

	return limits.Definition{
		Name:          name,
		Strategy:      strategy,
		Config:        rlCfg,
		ResetSchedule: c.ResetSchedule,
	}, nil
}

// LimiterDefinitions converts every configured limiter, sorted by name.
func (c *Config) LimiterDefinitions() ([]limits.Definition, error) {
	names := make([]string, 0, len(c.Limiters))
	for name := range c.Limiters {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]limits.Definition, 0, len(names))
	for _, name := range names {
		def, err := c.Limiters[name].Definition(name)
		if err != nil {
			return nil, fmt.Errorf("limiter %q: %w", name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
