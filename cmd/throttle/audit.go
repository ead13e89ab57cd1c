package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/audit"
	"mercator-hq/throttle/pkg/cli"
)

var auditFlags struct {
	limiter string
	kind    string
	since   string
	until   string
	limit   int
	format  string
	days    int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit journal",
	Long: `Query and prune the audit journal of denials, resets and reloads.

The journal location is read from the audit section of the config file. Only
the sqlite backend persists across processes.

Subcommands:
  query  - List events matching filters
  prune  - Delete events older than a retention period`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit events",
	Long: `List audit events, newest first.

Time bounds use RFC3339 timestamps or a duration relative to now.

Examples:
  # Denials on the api limiter in the last hour
  throttle audit query --limiter api --kind denied --since 1h

  # Every reload as JSON
  throttle audit query --kind reload --format json`,
	RunE: queryAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old audit events",
	Long: `Delete audit events older than --days. Defaults to the configured
retention.

Examples:
  throttle audit prune --days 7`,
	RunE: pruneAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditPruneCmd)

	auditQueryCmd.Flags().StringVar(&auditFlags.limiter, "limiter", "", "filter by limiter name")
	auditQueryCmd.Flags().StringVar(&auditFlags.kind, "kind", "", "filter by kind: denied, reset, reload")
	auditQueryCmd.Flags().StringVar(&auditFlags.since, "since", "", "only events at or after (RFC3339 or duration)")
	auditQueryCmd.Flags().StringVar(&auditFlags.until, "until", "", "only events before (RFC3339 or duration)")
	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", 100, "max results (0 for all)")
	auditQueryCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json, csv")

	auditPruneCmd.Flags().IntVar(&auditFlags.days, "days", 0, "retention in days (default from config)")
}

func queryAudit(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(auditFlags.format)
	if err != nil {
		return err
	}
	filter, err := auditFilter(time.Now())
	if err != nil {
		return err
	}

	store, err := openConfiguredAudit()
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.Query(context.Background(), filter)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), eventTable(events))
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	days := auditFlags.days
	if days == 0 {
		days = cfg.Audit.Retention.Days
	}
	if days <= 0 {
		return fmt.Errorf("--days must be greater than 0")
	}

	store, err := openAuditStorage(cfg.Audit)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	defer store.Close()

	deleted, err := audit.NewPruner(store, days).Prune(context.Background())
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d event(s) older than %d day(s)\n", deleted, days)
	return nil
}

func openConfiguredAudit() (audit.Storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openAuditStorage(cfg.Audit)
	if err != nil {
		return nil, cli.NewCommandError("audit", err)
	}
	return store, nil
}

func auditFilter(now time.Time) (audit.Filter, error) {
	filter := audit.Filter{
		Limiter: auditFlags.limiter,
		Kind:    audit.Kind(auditFlags.kind),
		Limit:   auditFlags.limit,
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return audit.Filter{}, fmt.Errorf("invalid --kind %q (expected denied, reset or reload)", auditFlags.kind)
	}
	if filter.Limit < 0 {
		return audit.Filter{}, fmt.Errorf("--limit must not be negative")
	}

	var err error
	if filter.Since, err = parseTimeBound(auditFlags.since, now); err != nil {
		return audit.Filter{}, fmt.Errorf("invalid --since: %w", err)
	}
	if filter.Until, err = parseTimeBound(auditFlags.until, now); err != nil {
		return audit.Filter{}, fmt.Errorf("invalid --until: %w", err)
	}
	return filter, nil
}

// parseTimeBound accepts an RFC3339 timestamp or a duration back from now.
func parseTimeBound(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor a duration", s)
	}
	return now.Add(-d), nil
}

type eventTable []*audit.Event

func (t eventTable) Header() []string {
	return []string{"TIME", "KIND", "LIMITER", "WAIT_MS", "REQUEST_ID", "DETAIL"}
}

func (t eventTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		wait := "-"
		if e.Kind == audit.KindDenied {
			wait = strconv.FormatUint(e.WaitMs, 10)
		}
		rows = append(rows, []string{
			e.Time.Format(time.RFC3339),
			string(e.Kind),
			orDash(e.Limiter),
			wait,
			orDash(e.RequestID),
			orDash(e.Detail),
		})
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
