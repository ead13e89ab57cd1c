package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mercator-hq/throttle/pkg/audit"
	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/telemetry/logging"
)

// loadConfig reads the --config file with THROTTLE_* overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so that command
// output on stdout stays machine readable.
func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	level := cfg.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{
		Level:          level,
		Format:         cfg.Format,
		AddSource:      cfg.AddSource,
		MaskClientKeys: cfg.MaskClientKeys,
		Writer:         os.Stderr,
	})
}

// openAuditStorage opens the configured audit backend.
func openAuditStorage(cfg config.AuditConfig) (audit.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return audit.NewMemoryStorage(), nil
	case "sqlite":
		if !isMemoryDSN(cfg.SQLite.Path) {
			if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create audit directory: %w", err)
				}
			}
		}
		return audit.NewSQLiteStorage(&audit.SQLiteConfig{
			Driver:       cfg.SQLite.Driver,
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			WALMode:      cfg.SQLite.UseWAL(),
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported audit backend %q", cfg.Backend)
	}
}

func isMemoryDSN(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory") || strings.HasPrefix(path, "file::memory:")
}
