package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pruner enforces the audit retention period.
type Pruner struct {
	storage       Storage
	retentionDays int
	now           func() time.Time
	logger        *slog.Logger
}

// NewPruner creates a pruner. retentionDays <= 0 keeps events forever.
func NewPruner(storage Storage, retentionDays int) *Pruner {
	return &Pruner{
		storage:       storage,
		retentionDays: retentionDays,
		now:           time.Now,
		logger:        slog.Default().With("component", "audit.retention"),
	}
}

// Prune deletes events older than the retention period.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.retentionDays <= 0 {
		return 0, nil
	}

	cutoff := p.now().Add(-time.Duration(p.retentionDays) * 24 * time.Hour)
	deleted, err := p.storage.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}

	p.logger.Info("audit retention applied",
		"retention_days", p.retentionDays,
		"cutoff", cutoff,
		"deleted", deleted,
	)
	return deleted, nil
}

// Run prunes with a background context and logs failures. Its signature
// suits a scheduled job.
func (p *Pruner) Run() {
	if _, err := p.Prune(context.Background()); err != nil {
		p.logger.Error("scheduled audit pruning failed", "error", err)
	}
}
