package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver (cgo)
	_ "modernc.org/sqlite"          // "sqlite" driver (pure Go)
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// SchemaVersion is the current audit schema version.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          TEXT PRIMARY KEY,
	occurred_at INTEGER NOT NULL,
	limiter     TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	wait_ms     INTEGER NOT NULL DEFAULT 0,
	request_id  TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_events_occurred_at ON audit_events(occurred_at);
CREATE INDEX IF NOT EXISTS idx_audit_events_limiter ON audit_events(limiter, occurred_at);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Driver selects the database/sql driver: "sqlite" or "sqlite3".
	// Default: "sqlite"
	Driver string

	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 1 (SQLite only supports a single writer)
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Driver:       DriverModernc,
		Path:         "data/audit.db",
		MaxOpenConns: 1,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db         *sql.DB
	config     *SQLiteConfig
	insertStmt *sql.Stmt
	closeOnce  sync.Once
	logger     *slog.Logger
}

// NewSQLiteStorage opens the database, enables WAL mode if configured and
// creates the schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}
	if config.Driver != DriverModernc && config.Driver != DriverMattn {
		return nil, NewStorageError("sqlite", "open", fmt.Errorf("unsupported driver %q", config.Driver))
	}
	if config.Path == "" {
		return nil, NewStorageError("sqlite", "open", fmt.Errorf("path cannot be empty"))
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 1
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxOpenConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit storage initialized",
		"driver", config.Driver,
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets pragmas, creates the schema and prepares statements.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	stmt, err := s.db.Prepare(`
		INSERT INTO audit_events (id, occurred_at, limiter, kind, wait_ms, request_id, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return NewStorageError("sqlite", "prepare", err)
	}
	s.insertStmt = stmt

	return nil
}

// Store persists an audit event.
func (s *SQLiteStorage) Store(ctx context.Context, event *Event) error {
	_, err := s.insertStmt.ExecContext(ctx,
		event.ID,
		event.Time.UnixNano(),
		event.Limiter,
		string(event.Kind),
		int64(event.WaitMs),
		event.RequestID,
		event.Detail,
	)
	if err != nil {
		return NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, filter Filter) ([]*Event, error) {
	where, args := buildWhere(filter)

	query := "SELECT id, occurred_at, limiter, kind, wait_ms, request_id, detail FROM audit_events" +
		where + " ORDER BY occurred_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			e      Event
			nanos  int64
			kind   string
			waitMs int64
		)
		if err := rows.Scan(&e.ID, &nanos, &e.Limiter, &kind, &waitMs, &e.RequestID, &e.Detail); err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		e.Time = time.Unix(0, nanos).UTC()
		e.Kind = Kind(kind)
		e.WaitMs = uint64(waitMs)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}

	return events, nil
}

// Count returns the number of matching events.
func (s *SQLiteStorage) Count(ctx context.Context, filter Filter) (int64, error) {
	where, args := buildWhere(filter)

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events"+where, args...).Scan(&n); err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Prune deletes events older than before.
func (s *SQLiteStorage) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_events WHERE occurred_at < ?", before.UnixNano())
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}

	s.logger.Debug("pruned audit events", "deleted", n, "before", before)
	return n, nil
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close releases the prepared statement and the database handle.
func (s *SQLiteStorage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.insertStmt != nil {
			s.insertStmt.Close()
		}
		if cerr := s.db.Close(); cerr != nil {
			err = NewStorageError("sqlite", "close", cerr)
			return
		}
		s.logger.Info("SQLite audit storage closed")
	})
	return err
}

// buildWhere renders the filter as a WHERE clause with positional args.
func buildWhere(filter Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if filter.Limiter != "" {
		clauses = append(clauses, "limiter = ?")
		args = append(args, filter.Limiter)
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		clauses = append(clauses, "occurred_at < ?")
		args = append(args, filter.Until.UnixNano())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
