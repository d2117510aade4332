// Package db provides the local SQLite store for envlog.
//
// The database lives under .envlog/ in the project root. It holds the
// key/value table the change history is persisted in and a cache of the
// last record listing fetched from the endpoint.
// Use Open() to connect and Init() to create the schema.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// MaxRetries is the maximum number of retries for transient database errors.
const MaxRetries = 5

// RetryBaseDelay is the base delay for exponential backoff.
const RetryBaseDelay = 50 * time.Millisecond

// sqlTime formats a time.Time as a SQLite-compatible UTC string.
func sqlTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// SchemaVersion is the current schema version.
// Increment this when adding new migrations.
const SchemaVersion = 2

// baseSchema is the version 1 schema.
// New tables should be added via migrations, not here.
const baseSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY,
	fecha TEXT NOT NULL,
	hora TEXT NOT NULL,
	jornada TEXT NOT NULL,
	dia INTEGER NOT NULL,
	temperatura REAL NOT NULL,
	humedad REAL NOT NULL,
	persona TEXT NOT NULL,
	observaciones TEXT,
	fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_fecha ON records(fecha, hora);
`

// migrations defines incremental schema changes.
// Index 0 is the migration to version 2, index 1 to version 3, etc.
var migrations = []string{
	// Version 2: remember when each listing snapshot was taken
	`
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY,
	taken_at DATETIME NOT NULL,
	record_count INTEGER NOT NULL
);
`,
}

// DB wraps a SQL database connection with envlog-specific operations.
type DB struct {
	*sql.DB
	path string
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// ExecRetry executes a statement with retry logic for transient errors.
func (db *DB) ExecRetry(query string, args ...any) (sql.Result, error) {
	return withRetry(func() (sql.Result, error) {
		return db.Exec(query, args...)
	})
}

// QueryRetry executes a query with retry logic for transient errors.
func (db *DB) QueryRetry(query string, args ...any) (*sql.Rows, error) {
	return withRetry(func() (*sql.Rows, error) {
		return db.Query(query, args...)
	})
}

// Open opens or creates the database at the given path
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var sqlDB *sql.DB
	var err error

	err = withRetryNoResult(func() error {
		sqlDB, err = sql.Open("sqlite", path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}

		// Busy timeout first so the remaining PRAGMAs wait on locks.
		if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("failed to set busy timeout: %w", err)
		}

		// WAL lets the TUI read while a CLI invocation writes.
		if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return &DB{DB: sqlDB, path: path}, nil
}

// isRetryableError checks if an error is a transient SQLite error that can be retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLITE_BUSY (5), SQLITE_LOCKED (6)
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "SQLITE_LOCKED")
}

// withRetry executes a function with exponential backoff retry on transient errors.
func withRetry[T any](fn func() (T, error)) (T, error) {
	var result T
	var err error
	delay := RetryBaseDelay

	for attempt := 0; attempt < MaxRetries; attempt++ {
		result, err = fn()
		if err == nil || !isRetryableError(err) {
			return result, err
		}

		time.Sleep(delay)
		delay *= 2
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}
	}

	return result, fmt.Errorf("failed after %d retries: %w", MaxRetries, err)
}

// withRetryNoResult executes a function with retry that returns only an error.
func withRetryNoResult(fn func() error) error {
	_, err := withRetry(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Init creates the schema for a fresh database and runs pending migrations.
// It is safe to call on an existing database.
func (db *DB) Init() error {
	if _, err := db.Exec(baseSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Migrate runs any pending schema migrations.
// A database that already has data is backed up before anything runs.
func (db *DB) Migrate() error {
	currentVersion, err := db.getSchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Tables exist but no version stamp: the base schema was just created
	// or predates versioning.
	if currentVersion == 0 {
		exists, err := db.tableExists("kv")
		if err != nil {
			return fmt.Errorf("failed to check tables: %w", err)
		}
		if exists {
			currentVersion = 1
			if err := db.setSchemaVersion(1); err != nil {
				return fmt.Errorf("failed to set base version: %w", err)
			}
		}
	}

	if currentVersion >= SchemaVersion {
		return nil
	}

	hasData, err := db.hasData()
	if err != nil {
		return err
	}
	if hasData {
		backupPath, err := db.Backup()
		if err != nil {
			return fmt.Errorf("failed to create pre-migration backup: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Created pre-migration backup: %s\n", backupPath)
	}

	for i, migration := range migrations {
		targetVersion := i + 2 // migrations[0] upgrades to v2
		if currentVersion >= targetVersion {
			continue
		}
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration to v%d failed: %w", targetVersion, err)
		}
		if err := db.setSchemaVersion(targetVersion); err != nil {
			return fmt.Errorf("failed to update version to %d: %w", targetVersion, err)
		}
		currentVersion = targetVersion
	}

	return nil
}

// Version reports the schema version stamped on the open database.
func (db *DB) Version() (int, error) {
	return db.getSchemaVersion()
}

// CheckIntegrity runs PRAGMA integrity_check on the database.
func (db *DB) CheckIntegrity() error {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database integrity check failed: %s", result)
	}
	return nil
}

// getSchemaVersion returns the current schema version using PRAGMA user_version.
func (db *DB) getSchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("PRAGMA user_version").Scan(&version)
	return version, err
}

// setSchemaVersion sets the schema version using PRAGMA user_version.
func (db *DB) setSchemaVersion(version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
	return err
}

// tableExists checks if a table exists in the database.
func (db *DB) tableExists(name string) (bool, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
		name,
	).Scan(&count)
	return count > 0, err
}

func (db *DB) hasData() (bool, error) {
	var count int
	err := db.QueryRow("SELECT (SELECT COUNT(*) FROM kv) + (SELECT COUNT(*) FROM records)").Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to inspect database: %w", err)
	}
	return count > 0, nil
}
