// Package store owns all persistent state: the contact whitelist, the audit
// log, the quarantine, and canary telemetry, backed by a single SQLite file.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the handle to the embedded database. All mutating calls run as
// their own transaction; all queries are parameterized.
type Store struct {
	db   *sql.DB
	path string
}

// DBFileName is the database file inside the data directory.
const DBFileName = "wasp.db"

// Open opens (creating if needed) the database under dataDir and ensures the
// schema. Re-opening after Close is permitted.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	path := filepath.Join(dataDir, DBFileName)
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	// A single writer connection keeps transactions from interleaving on the
	// same handle; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, &StorageError{Op: "ensure schema", Err: err}
	}
	// Best-effort migrations for existing dbs (no-op when current).
	_, _ = db.Exec(`ALTER TABLE audit_log ADD COLUMN trace_id TEXT DEFAULT ''`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_quarantine_reviewed ON quarantine(reviewed)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_canary_created ON canary_events(created_at)`)

	return &Store{db: db, path: path}, nil
}

// Exists reports whether a database file is already present under dataDir.
// `wasp serve` refuses to start against an uninitialized store.
func Exists(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, DBFileName))
	return err == nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return &StorageError{Op: "close", Err: err}
	}
	return nil
}

// Ping verifies the handle is live. Used by the health endpoint.
func (s *Store) Ping() error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if err := s.db.Ping(); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) conn() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

// now returns the current time in UTC; fmtTime stores it at second precision.
func now() time.Time {
	return time.Now().UTC()
}

// fmtTime renders a timestamp the way every table stores it.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Tolerate rows written by older builds using SQLite's default format.
		t, _ = time.Parse("2006-01-02 15:04:05", s)
	}
	return t
}

func cutoff(days int) string {
	return fmtTime(now().Add(-time.Duration(days) * 24 * time.Hour))
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
