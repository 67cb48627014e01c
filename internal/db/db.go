package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/cipherbox/internal/config"
	_ "modernc.org/sqlite"
)

// migrations holds the schema steps in order. Step i moves user_version
// from i to i+1. Append only.
var migrations = []string{
	// 1: stored modules and extra dictionary words
	`
	CREATE TABLE IF NOT EXISTS modules (
	  id          TEXT PRIMARY KEY,
	  name_raw    TEXT NOT NULL,
	  name_norm   TEXT NOT NULL,
	  description TEXT,
	  definition  TEXT NOT NULL,
	  created_at  INTEGER NOT NULL,
	  updated_at  INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_modules_name_norm
	ON modules(name_norm);

	CREATE INDEX IF NOT EXISTS idx_modules_updated
	ON modules(updated_at DESC);

	CREATE TABLE IF NOT EXISTS dictionary_words (
	  word       TEXT PRIMARY KEY,
	  created_at INTEGER NOT NULL
	);
	`,
}

// CurrentSchemaVersion is the latest schema version.
var CurrentSchemaVersion = len(migrations)

// FileName is the database file created inside the base directory.
const FileName = "cipherbox.db"

// Init initializes the SQLite database at baseDir/cipherbox.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cipherbox.
func Init(baseDir string) (*sql.DB, error) {
	// The exports directory is the default target of module export.
	for _, dir := range []string{baseDir, filepath.Join(baseDir, "exports")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		_ = os.Chmod(dir, 0700)
	}

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies every pending step, each in its own transaction together
// with the user_version bump.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
