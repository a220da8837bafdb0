// Package store persists run history in SQLite so past validation
// outcomes can be listed and inspected after the fact.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"secretvet/internal/run"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	org_repo     TEXT NOT NULL,
	alert_id     TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL,
	winner_index INTEGER NOT NULL,
	verdict      TEXT,
	analyses     INTEGER NOT NULL,
	outcome_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_alert ON runs(org_repo, alert_id);
`

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// RunRecord is one persisted validation run. Outcome is populated only
// by GetRun; listings carry metadata alone.
type RunRecord struct {
	ID          int64
	OrgRepo     string
	AlertID     string
	StartedAt   string
	FinishedAt  string
	WinnerIndex int
	Verdict     string
	Analyses    int
	Outcome     *run.Outcome
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history DB at path and applies the schema.
// The parent directory is created if missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
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
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun persists one outcome and returns its row id.
func (s *Store) SaveRun(outcome *run.Outcome, startedAt time.Time) (int64, error) {
	blob, err := json.Marshal(outcome)
	if err != nil {
		return 0, fmt.Errorf("encode outcome: %w", err)
	}
	res, err := s.db.Exec(`
		INSERT INTO runs(org_repo, alert_id, started_at, finished_at, winner_index, verdict, analyses, outcome_json)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		outcome.OrgRepo, outcome.AlertID,
		startedAt.UTC().Format(time.RFC3339), nowUTC(),
		outcome.JudgeResult.WinnerIndex, outcome.JudgeResult.Verdict,
		len(outcome.AnalysisResults), string(blob))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetRun loads one run with its full outcome. Returns nil when the id
// does not exist.
func (s *Store) GetRun(id int64) (*RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, org_repo, alert_id, started_at, finished_at, winner_index, verdict, analyses, outcome_json
		FROM runs WHERE id = ?`, id)
	rec, blob, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	rec.Outcome = &run.Outcome{}
	if err := json.Unmarshal([]byte(blob), rec.Outcome); err != nil {
		return nil, fmt.Errorf("decode outcome for run %d: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns run metadata newest first, without outcome payloads.
// A non-empty orgRepo filters to that repository.
func (s *Store) ListRuns(orgRepo string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, org_repo, alert_id, started_at, finished_at, winner_index, verdict, analyses, ''
		FROM runs`
	args := []any{}
	if orgRepo != "" {
		query += " WHERE org_repo = ?"
		args = append(args, orgRepo)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		rec, _, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func scanRun(scan func(...any) error) (*RunRecord, string, error) {
	var rec RunRecord
	var verdict sql.NullString
	var blob string
	err := scan(&rec.ID, &rec.OrgRepo, &rec.AlertID, &rec.StartedAt, &rec.FinishedAt,
		&rec.WinnerIndex, &verdict, &rec.Analyses, &blob)
	if err != nil {
		return nil, "", err
	}
	if verdict.Valid {
		rec.Verdict = verdict.String
	}
	return &rec, blob, nil
}
