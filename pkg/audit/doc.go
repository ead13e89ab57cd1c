// Package audit keeps a journal of notable admission events.
//
// The journal records denials, administrative resets and configuration
// reloads. It never stores limiter state: limiters always start fresh
// after a restart.
//
// # Components
//
//   - Storage: persistence interface with memory and SQLite backends
//   - Recorder: asynchronous, non-blocking writer in front of a Storage
//   - Pruner: deletes events older than the retention period
//
// # SQLite Drivers
//
// SQLiteStorage accepts either registered driver name:
//
//   - "sqlite": modernc.org/sqlite, pure Go (default)
//   - "sqlite3": github.com/mattn/go-sqlite3, requires cgo
//
// # Usage
//
//	store, err := audit.NewSQLiteStorage(audit.DefaultSQLiteConfig())
//	recorder := audit.NewRecorder(store, audit.DefaultRecorderConfig())
//	defer recorder.Close()
//
//	recorder.Record(ctx, audit.NewEvent(audit.KindDenied, "api"))
package audit
