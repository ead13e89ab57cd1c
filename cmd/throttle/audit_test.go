package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"mercator-hq/throttle/pkg/audit"
	"mercator-hq/throttle/pkg/config"
)

func TestParseTimeBound(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "empty", input: "", want: time.Time{}},
		{name: "rfc3339", input: "2026-03-01T08:00:00Z", want: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		{name: "duration", input: "90m", want: now.Add(-90 * time.Minute)},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimeBound(tt.input, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTimeBound(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseTimeBound(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAuditFilterRejectsUnknownKind(t *testing.T) {
	orig := auditFlags
	defer func() { auditFlags = orig }()

	auditFlags.kind = "allowed"
	if _, err := auditFilter(time.Now()); err == nil {
		t.Error("auditFilter() with unknown kind should return error")
	}

	auditFlags.kind = "denied"
	auditFlags.limit = -1
	if _, err := auditFilter(time.Now()); err == nil {
		t.Error("auditFilter() with negative limit should return error")
	}
}

func TestAuditQueryAndPrune(t *testing.T) {
	_, dbPath := useConfig(t)

	orig := auditFlags
	defer func() { auditFlags = orig }()

	// Seed the journal the same way the server would.
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	store, err := openAuditStorage(cfg.Audit)
	if err != nil {
		t.Fatalf("openAuditStorage(%s) error = %v", dbPath, err)
	}

	ctx := context.Background()
	old := audit.NewEvent(audit.KindDenied, "api")
	old.Time = time.Now().Add(-72 * time.Hour)
	old.WaitMs = 600
	recent := audit.NewEvent(audit.KindReset, "uploads")
	recent.Detail = "manual"
	for _, e := range []*audit.Event{old, recent} {
		if err := store.Store(ctx, e); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	auditFlags = struct {
		limiter string
		kind    string
		since   string
		until   string
		limit   int
		format  string
		days    int
	}{limit: 100, format: "csv"}

	var buf bytes.Buffer
	auditQueryCmd.SetOut(&buf)
	defer auditQueryCmd.SetOut(nil)

	if err := queryAudit(auditQueryCmd, nil); err != nil {
		t.Fatalf("queryAudit() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d csv lines, want header plus 2 events:\n%s", len(lines), buf.String())
	}

	auditFlags.days = 1
	buf.Reset()
	auditPruneCmd.SetOut(&buf)
	defer auditPruneCmd.SetOut(nil)

	if err := pruneAudit(auditPruneCmd, nil); err != nil {
		t.Fatalf("pruneAudit() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Deleted 1 event(s)") {
		t.Errorf("prune output = %q, want one deletion", buf.String())
	}

	buf.Reset()
	auditFlags.kind = "denied"
	if err := queryAudit(auditQueryCmd, nil); err != nil {
		t.Fatalf("queryAudit() error = %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(buf.String()), "\n"); len(lines) != 1 {
		t.Errorf("denied events after prune = %d, want 0", len(lines)-1)
	}
}

func TestEventTableRows(t *testing.T) {
	denied := audit.NewEvent(audit.KindDenied, "api")
	denied.WaitMs = 250
	reload := audit.NewEvent(audit.KindReload, "")

	rows := eventTable{denied, reload}.Rows()
	if rows[0][3] != "250" {
		t.Errorf("denied wait column = %q, want 250", rows[0][3])
	}
	if rows[1][2] != "-" || rows[1][3] != "-" {
		t.Errorf("reload row = %v, want dashes for limiter and wait", rows[1])
	}
}
