package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/audit"
	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/limits"
	"mercator-hq/throttle/pkg/schedule"
	"mercator-hq/throttle/pkg/server"
	"mercator-hq/throttle/pkg/telemetry/health"
	"mercator-hq/throttle/pkg/telemetry/logging"
	"mercator-hq/throttle/pkg/telemetry/metrics"
)

const pruneJobName = "audit:prune"

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Throttle server",
	Long: `Start the Throttle server with the specified configuration.

The server hosts every configured limiter and serves the limiter API, the
admission endpoint (when middleware is enabled), metrics and health probes.

Limiter definitions are reloaded on SIGHUP, and on file change when
watch.enabled is set. Server, audit and telemetry settings require a restart.

Examples:
  # Start with default config
  throttle run

  # Start with custom config
  throttle run --config /etc/throttle/throttle.yaml

  # Override listen address
  throttle run --listen 0.0.0.0:8080

  # Validate config without starting server
  throttle run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := newLogger(cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	slog.SetDefault(logger.Slog())

	defs, err := cfg.LimiterDefinitions()
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		fmt.Fprintf(out, "✓ %d limiter(s): %s\n", len(defs), strings.Join(limiterNames(defs), ", "))
		return nil
	}

	fmt.Fprintf(out, "Throttle v%s\n", Version)
	fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	fmt.Fprintln(out, "✓ Configuration loaded")

	ctx := cli.SetupSignalHandler()

	collector := metrics.NewCollector(0)
	scheduler := schedule.New()

	opts := []limits.ManagerOption{
		limits.WithMetrics(limits.NewMetrics(collector.Registry())),
		limits.WithScheduler(scheduler),
		limits.WithLogger(logger.Slog()),
	}

	var store audit.Storage
	if cfg.Audit.Enabled {
		store, err = openAuditStorage(cfg.Audit)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to open audit storage: %w", err))
		}
		defer store.Close()

		recorder := audit.NewRecorder(store, &audit.RecorderConfig{
			Enabled:      true,
			AsyncBuffer:  cfg.Audit.AsyncBuffer,
			WriteTimeout: cfg.Audit.WriteTimeout,
		})
		defer recorder.Close()

		if err := collector.RegisterAuditStats(recorder); err != nil {
			logger.Warn("audit metrics unavailable", "error", err)
		}
		opts = append(opts,
			limits.WithAuditor(recorder),
			limits.WithDenialAuditing(cfg.Audit.ShouldRecordDenials()),
		)

		if cfg.Audit.Retention.Days > 0 {
			pruner := audit.NewPruner(store, cfg.Audit.Retention.Days)
			if err := scheduler.Schedule(pruneJobName, cfg.Audit.Retention.PruneSchedule, pruner.Run); err != nil {
				return cli.NewCommandError("run", fmt.Errorf("failed to schedule audit pruning: %w", err))
			}
		}
		fmt.Fprintf(out, "✓ Audit journal: %s\n", cfg.Audit.Backend)
	}

	manager, err := limits.NewManager(defs, opts...)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to create limiters: %w", err))
	}
	defer manager.Close()
	fmt.Fprintf(out, "✓ %d limiter(s) loaded\n", len(defs))

	scheduler.Start(ctx)
	defer scheduler.Stop()

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("limiters", health.LimitersCheck(manager))
	checker.RegisterOptionalCheck("scheduler", health.RunningCheck("scheduler", scheduler.IsRunning))
	if store != nil {
		checker.RegisterOptionalCheck("audit", health.PingCheck("audit", store))
	}

	reload := func() error {
		next, err := config.ReloadConfig(cfgFile)
		if err != nil {
			return err
		}
		defs, err := next.LimiterDefinitions()
		if err != nil {
			return err
		}
		_, err = manager.Reload(ctx, defs)
		return err
	}
	startReloaders(ctx, cfg.Watch, logger, reload)

	srv, err := server.New(cfg, server.Dependencies{
		Limiters:  manager,
		Audit:     store,
		Collector: collector,
		Health:    checker,
		Logger:    logger,
		Version:   health.NewVersionInfo(Version, GitCommit, BuildDate),
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	logger.Info("server stopped")
	return nil
}

// startReloaders reloads limiter definitions on SIGHUP and, when enabled, on
// changes to the config file. Both stop when ctx is done.
func startReloaders(ctx context.Context, watch config.WatchConfig, logger *logging.Logger, reload func() error) {
	sighup, stop := cli.ReloadSignals()
	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sighup:
				logger.Info("SIGHUP received, reloading limiters", "path", cfgFile)
				if err := reload(); err != nil {
					logger.Error("reload failed, keeping current limiters", "error", err)
				}
			}
		}
	}()

	if !watch.Enabled {
		return
	}

	watcher, err := config.NewFileWatcher(cfgFile, watch.Debounce, logger.Slog())
	if err != nil {
		logger.Warn("config watch disabled", "error", err)
		return
	}
	go func() {
		defer watcher.Stop()
		if err := watcher.Watch(ctx, reload); err != nil {
			logger.Error("config watcher stopped", "error", err)
		}
	}()
}

func limiterNames(defs []limits.Definition) []string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}
