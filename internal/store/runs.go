package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// --- Run operations ---

// BeginRun inserts an unfinished run and returns its ID.
func (s *Store) BeginRun(startedAt time.Time, args []string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO runs (started_at, args) VALUES (?, ?)",
		startedAt.UTC(), marshalStrings(args),
	)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// FinishRun records the overall verdict of a run.
func (s *Store) FinishRun(runID int64, finishedAt time.Time, passed bool) error {
	res, err := s.db.Exec(
		"UPDATE runs SET finished_at = ?, passed = ? WHERE id = ?",
		finishedAt.UTC(), passed, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %d: %w", runID, sql.ErrNoRows)
	}
	return nil
}

const runColumns = "id, started_at, finished_at, args, passed"

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		r        Run
		finished sql.NullTime
		passed   sql.NullBool
		args     string
	)
	if err := row.Scan(&r.ID, &r.StartedAt, &finished, &args, &passed); err != nil {
		return nil, err
	}
	r.Args = unmarshalStrings(args)
	if finished.Valid {
		r.Finished = true
		r.FinishedAt = finished.Time
	}
	r.Passed = passed.Valid && passed.Bool
	return &r, nil
}

// RunByID returns the run, or nil when it does not exist.
func (s *Store) RunByID(id int64) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run by id: %w", err)
	}
	return r, nil
}

// RecentRuns returns up to limit runs, newest first. A limit of 0 or less
// returns every run.
func (s *Store) RecentRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query("SELECT "+runColumns+" FROM runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Folder result operations ---

// RecordFolder inserts a folder result and its violations in one
// transaction. fr.ID and the violations' IDs are set on success.
func (s *Store) RecordFolder(fr *FolderResult, violations []*Violation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("record folder: begin: %w", err)
	}
	defer tx.Rollback()

	var errText any
	if fr.Error != "" {
		errText = fr.Error
	}
	res, err := tx.Exec(
		`INSERT INTO folder_results (run_id, folder, gir_file, passed, error, findings, candidates)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fr.RunID, fr.Folder, fr.GirFile, fr.Passed, errText, marshalStrings(fr.Findings), fr.Candidates,
	)
	if err != nil {
		return fmt.Errorf("record folder %s: %w", fr.Folder, err)
	}
	frID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO violations (folder_result_id, trait, object, file, line) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("record folder: prepare: %w", err)
	}
	defer stmt.Close()
	for _, v := range violations {
		res, err := stmt.Exec(frID, v.Trait, v.Object, v.File, v.Line)
		if err != nil {
			return fmt.Errorf("record folder: violation %q: %w", v.Trait, err)
		}
		if v.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		v.FolderResultID = frID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record folder: commit: %w", err)
	}
	fr.ID = frID
	return nil
}

// FolderResults returns the folder results of a run in insertion order.
func (s *Store) FolderResults(runID int64) ([]*FolderResult, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, folder, gir_file, passed, error, findings, candidates
		 FROM folder_results WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("folder results: %w", err)
	}
	defer rows.Close()
	var out []*FolderResult
	for rows.Next() {
		fr := &FolderResult{}
		var errText sql.NullString
		var findings string
		if err := rows.Scan(&fr.ID, &fr.RunID, &fr.Folder, &fr.GirFile, &fr.Passed, &errText, &findings, &fr.Candidates); err != nil {
			return nil, fmt.Errorf("scan folder result: %w", err)
		}
		fr.Error = errText.String
		fr.Findings = unmarshalStrings(findings)
		out = append(out, fr)
	}
	return out, rows.Err()
}

// Violations returns the violations of a folder result in scan order.
func (s *Store) Violations(folderResultID int64) ([]*Violation, error) {
	rows, err := s.db.Query(
		`SELECT id, folder_result_id, trait, object, file, line
		 FROM violations WHERE folder_result_id = ? ORDER BY id`, folderResultID,
	)
	if err != nil {
		return nil, fmt.Errorf("violations: %w", err)
	}
	defer rows.Close()
	var out []*Violation
	for rows.Next() {
		v := &Violation{}
		var file sql.NullString
		var line sql.NullInt64
		if err := rows.Scan(&v.ID, &v.FolderResultID, &v.Trait, &v.Object, &file, &line); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		v.File = file.String
		v.Line = int(line.Int64)
		out = append(out, v)
	}
	return out, rows.Err()
}

// ViolationCountsByTrait counts how often each trait was reported across
// all recorded runs.
func (s *Store) ViolationCountsByTrait() (map[string]int, error) {
	rows, err := s.db.Query("SELECT trait, COUNT(*) FROM violations GROUP BY trait")
	if err != nil {
		return nil, fmt.Errorf("violation counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var trait string
		var n int
		if err := rows.Scan(&trait, &n); err != nil {
			return nil, fmt.Errorf("scan violation count: %w", err)
		}
		out[trait] = n
	}
	return out, rows.Err()
}

// --- Metadata ---

// GetMetadata returns the value for key and whether it was set.
func (s *Store) GetMetadata(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get metadata %q: %w", key, err)
	}
	return v, true, nil
}

// SetMetadata upserts key.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}
