// Package db provides the database connection and schema for the run history.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema.
// Missing parent directories are created.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Reconcile ledger - one row per resource per run
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reconcile_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			kind TEXT NOT NULL,
			symm_id TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			desired_state TEXT NOT NULL,
			action TEXT NOT NULL,
			error TEXT,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_reconcile_ledger_ts ON reconcile_ledger(timestamp);
		CREATE INDEX IF NOT EXISTS idx_reconcile_ledger_run ON reconcile_ledger(run_id);
		CREATE INDEX IF NOT EXISTS idx_reconcile_ledger_resource ON reconcile_ledger(kind, symm_id, resource_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create reconcile_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
