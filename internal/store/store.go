// Package store keeps the history of gircheck runs in SQLite. It is only
// written when a database path is configured; checked folders are never
// touched.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is recorded in the metadata table by Migrate.
const SchemaVersion = "1"

// Store is the SQLite data access layer for run history.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes and records SchemaVersion.
// Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := s.SetMetadata("schema_version", SchemaVersion); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
  id              INTEGER PRIMARY KEY,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP,
  args            TEXT NOT NULL DEFAULT '[]',
  passed          BOOLEAN
);

CREATE TABLE IF NOT EXISTS folder_results (
  id              INTEGER PRIMARY KEY,
  run_id          INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  folder          TEXT NOT NULL,
  gir_file        TEXT NOT NULL,
  passed          BOOLEAN NOT NULL,
  error           TEXT,
  findings        TEXT NOT NULL DEFAULT '[]',
  candidates      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS violations (
  id              INTEGER PRIMARY KEY,
  folder_result_id INTEGER NOT NULL REFERENCES folder_results(id) ON DELETE CASCADE,
  trait           TEXT NOT NULL,
  object          TEXT NOT NULL,
  file            TEXT,
  line            INTEGER
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_folder_results_run ON folder_results(run_id);
CREATE INDEX IF NOT EXISTS idx_folder_results_folder ON folder_results(folder);
CREATE INDEX IF NOT EXISTS idx_violations_folder_result ON violations(folder_result_id);
CREATE INDEX IF NOT EXISTS idx_violations_trait ON violations(trait);
`

// PruneRuns deletes all but the newest keep runs together with their
// folder results and violations.
func (s *Store) PruneRuns(keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("prune runs: keep must not be negative, got %d", keep)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("prune runs: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM runs ORDER BY id DESC LIMIT -1 OFFSET ?", keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: query: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("prune runs: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("prune runs: rows: %w", err)
	}
	rows.Close()
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := placeholderList(len(ids))
	args := int64sToArgs(ids)
	// Deleted child-first so the result does not depend on foreign key
	// enforcement being on.
	for _, q := range []string{
		"DELETE FROM violations WHERE folder_result_id IN (SELECT id FROM folder_results WHERE run_id IN (" + placeholders + "))",
		"DELETE FROM folder_results WHERE run_id IN (" + placeholders + ")",
	} {
		if _, err := tx.Exec(q, args...); err != nil {
			return 0, fmt.Errorf("prune runs: %w", err)
		}
	}
	res, err := tx.Exec("DELETE FROM runs WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: rows affected: %w", err)
	}
	return n, tx.Commit()
}
