package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

// RunStore keeps check-run history in SQLite.
type RunStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .medic) if it does not exist.
func Open(path string) (*RunStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &RunStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *RunStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		// Fresh database.
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		v = currentSchemaVersion
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// SaveRun records one completed run and returns its row ID.
// If rec.StartedAt is empty it is set to the current time.
func (s *RunStore) SaveRun(rec *RunRecord) (int64, error) {
	if rec.StartedAt == "" {
		rec.StartedAt = nowUTC()
	}
	probes, err := json.Marshal(rec.Probes)
	if err != nil {
		return 0, fmt.Errorf("encode probe list: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO runs(started_at, duration_ms, probes, passed, failed, unresolved, not_applicable, report)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StartedAt, rec.DurationMS, string(probes),
		rec.Passed, rec.Failed, rec.Unresolved, rec.NotApplicable,
		sql.NullString{String: rec.Report, Valid: rec.Report != ""},
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// GetRun returns a single run by ID, report included.
func (s *RunStore) GetRun(id int64) (*RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, duration_ms, probes, passed, failed, unresolved, not_applicable, report
		 FROM runs WHERE id = ?`, id,
	)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first. The report column
// is omitted; fetch a run by ID to see its full report.
func (s *RunStore) ListRuns(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, duration_ms, probes, passed, failed, unresolved, not_applicable, NULL
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var recs []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var probes string
	var report sql.NullString
	err := row.Scan(
		&rec.ID, &rec.StartedAt, &rec.DurationMS, &probes,
		&rec.Passed, &rec.Failed, &rec.Unresolved, &rec.NotApplicable, &report,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(probes), &rec.Probes); err != nil {
		return nil, fmt.Errorf("decode probe list: %w", err)
	}
	rec.Report = nullStr(report)
	return &rec, nil
}
