package config

import (
	"time"

	"mercator-hq/throttle/pkg/limits/ratelimit"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	MinAdminKeyLength      = 16

	// Limiter defaults
	DefaultStrategy = string(ratelimit.StrategyTokenBucket)

	// Middleware defaults
	DefaultMiddlewareMode        = "reject"
	DefaultMiddlewareWaitTimeout = 5 * time.Second
	DefaultClientKeyHeader       = "X-Client-Key"

	// Audit defaults
	DefaultAuditBackend           = "sqlite"
	DefaultAuditAsyncBuffer       = 1000
	DefaultAuditWriteTimeout      = 5 * time.Second
	DefaultAuditSQLiteDriver      = "sqlite"
	DefaultAuditSQLitePath        = "data/audit.db"
	DefaultAuditSQLiteBusyTimeout = 5 * time.Second
	DefaultAuditSQLiteMaxOpen     = 1
	DefaultAuditRetentionDays     = 30
	DefaultAuditPruneSchedule     = "0 3 * * *"

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultHealthCheckTimeout = 5 * time.Second

	// Watch defaults
	DefaultWatchDebounce = 250 * time.Millisecond
)

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)

	for name, l := range cfg.Limiters {
		if l.Strategy == "" {
			l.Strategy = DefaultStrategy
		}
		cfg.Limiters[name] = l
	}

	applyMiddlewareDefaults(&cfg.Middleware)
	applyAuditDefaults(&cfg.Audit)
	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyMiddlewareDefaults(m *MiddlewareConfig) {
	if m.Mode == "" {
		m.Mode = DefaultMiddlewareMode
	}
	if m.WaitTimeout == 0 {
		m.WaitTimeout = DefaultMiddlewareWaitTimeout
	}
	if m.ClientKeyHeader == "" {
		m.ClientKeyHeader = DefaultClientKeyHeader
	}
}

func applyAuditDefaults(a *AuditConfig) {
	if a.Backend == "" {
		a.Backend = DefaultAuditBackend
	}
	if a.AsyncBuffer == 0 {
		a.AsyncBuffer = DefaultAuditAsyncBuffer
	}
	if a.WriteTimeout == 0 {
		a.WriteTimeout = DefaultAuditWriteTimeout
	}
	if a.SQLite.Driver == "" {
		a.SQLite.Driver = DefaultAuditSQLiteDriver
	}
	if a.SQLite.Path == "" {
		a.SQLite.Path = DefaultAuditSQLitePath
	}
	if a.SQLite.BusyTimeout == 0 {
		a.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if a.SQLite.MaxOpenConns == 0 {
		a.SQLite.MaxOpenConns = DefaultAuditSQLiteMaxOpen
	}
	if a.Retention.Days == 0 {
		a.Retention.Days = DefaultAuditRetentionDays
	}
	if a.Retention.PruneSchedule == "" {
		a.Retention.PruneSchedule = DefaultAuditPruneSchedule
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLogLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLogFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
