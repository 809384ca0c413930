package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maastricht-university/meeting-conflicts/align"
	"github.com/maastricht-university/meeting-conflicts/conflict"
)

var ErrNotFound = errors.New("run not found")

// Run is the metadata row of one pipeline run.
type Run struct {
	ID          string            `json:"id"`
	Fingerprint string            `json:"fingerprint"`
	CreatedAt   time.Time         `json:"created_at"`
	Status      string            `json:"status"`
	Utterances  int               `json:"utterances"`
	Candidates  int               `json:"candidates"`
	Conflicts   int               `json:"conflicts"`
	SessionDir  string            `json:"session_dir,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Metrics     *conflict.Metrics `json:"metrics,omitempty"`
}

type Store struct {
	db *sql.DB
}

// Pragmas go in the DSN so every pooled connection gets them.
const pragmas = "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	created_at INTEGER NOT NULL, -- unix nanoseconds
	status TEXT NOT NULL,
	utterances INTEGER NOT NULL,
	candidates INTEGER NOT NULL,
	conflicts INTEGER NOT NULL,
	session_dir TEXT,
	warnings TEXT,
	metrics TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

CREATE TABLE IF NOT EXISTS utterances (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	start_time REAL NOT NULL,
	end_time REAL NOT NULL,
	speaker_id TEXT NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS conflicts (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	text1 TEXT NOT NULL,
	text2 TEXT NOT NULL,
	conflict_prob REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

// Open opens (creating when missing) the run database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveRun writes the run row with its utterances and conflicts in one transaction.
func (s *Store) SaveRun(ctx context.Context, r Run, utts []align.AttributedUtterance, pairs []conflict.ConflictPair) error {
	warnings, err := json.Marshal(r.Warnings)
	if err != nil {
		return fmt.Errorf("save run: encoding warnings: %w", err)
	}
	var metrics []byte
	if r.Metrics != nil {
		if metrics, err = json.Marshal(r.Metrics); err != nil {
			return fmt.Errorf("save run: encoding metrics: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin trx: %w", err)
	}
	if err := saveRun(ctx, tx, r, warnings, metrics, utts, pairs); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("save run: rollback: %w", errors.Join(err, rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: commiting: %w", err)
	}
	return nil
}

func saveRun(ctx context.Context, tx *sql.Tx, r Run, warnings, metrics []byte, utts []align.AttributedUtterance, pairs []conflict.ConflictPair) error {
	var metricsArg any
	if metrics != nil {
		metricsArg = string(metrics)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, fingerprint, created_at, status, utterances, candidates, conflicts, session_dir, warnings, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Fingerprint, r.CreatedAt.UnixNano(), r.Status,
		r.Utterances, r.Candidates, r.Conflicts, r.SessionDir, string(warnings), metricsArg)
	if err != nil {
		return fmt.Errorf("save run: inserting run: %w", err)
	}

	uStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO utterances (run_id, seq, start_time, end_time, speaker_id, text) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save run: preparing utterances: %w", err)
	}
	defer uStmt.Close()
	for i, u := range utts {
		if _, err := uStmt.ExecContext(ctx, r.ID, i, u.Start, u.End, u.SpeakerID, u.Text); err != nil {
			return fmt.Errorf("save run: inserting utterance %d: %w", i, err)
		}
	}

	cStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conflicts (run_id, seq, text1, text2, conflict_prob) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save run: preparing conflicts: %w", err)
	}
	defer cStmt.Close()
	for i, p := range pairs {
		if _, err := cStmt.ExecContext(ctx, r.ID, i, p.Text1, p.Text2, p.Probability); err != nil {
			return fmt.Errorf("save run: inserting conflict %d: %w", i, err)
		}
	}
	return nil
}

const runColumns = `id, fingerprint, created_at, status, utterances, candidates, conflicts, session_dir, warnings, metrics`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                    Run
		created              int64
		sessionDir, warnings sql.NullString
		metrics              sql.NullString
	)
	err := sc.Scan(&r.ID, &r.Fingerprint, &created, &r.Status, &r.Utterances, &r.Candidates, &r.Conflicts,
		&sessionDir, &warnings, &metrics)
	if err != nil {
		return r, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.SessionDir = sessionDir.String
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &r.Warnings); err != nil {
			return r, fmt.Errorf("decoding warnings: %w", err)
		}
	}
	if metrics.Valid && metrics.String != "" {
		r.Metrics = &conflict.Metrics{}
		if err := json.Unmarshal([]byte(metrics.String), r.Metrics); err != nil {
			return r, fmt.Errorf("decoding metrics: %w", err)
		}
	}
	return r, nil
}

// ListRuns returns the newest runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// LatestByFingerprint returns the newest run over the same input.
func (s *Store) LatestByFingerprint(ctx context.Context, fingerprint string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE fingerprint = ? ORDER BY created_at DESC, id LIMIT 1`, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("run by fingerprint: %w", ErrNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("run by fingerprint: %w", err)
	}
	return r, nil
}

func (s *Store) Conflicts(ctx context.Context, runID string) ([]conflict.ConflictPair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text1, text2, conflict_prob FROM conflicts WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	out := []conflict.ConflictPair{}
	for rows.Next() {
		var p conflict.ConflictPair
		if err := rows.Scan(&p.Text1, &p.Text2, &p.Probability); err != nil {
			return nil, fmt.Errorf("list conflicts: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Utterances(ctx context.Context, runID string) ([]align.AttributedUtterance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT start_time, end_time, speaker_id, text FROM utterances WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list utterances: %w", err)
	}
	defer rows.Close()

	out := []align.AttributedUtterance{}
	for rows.Next() {
		var u align.AttributedUtterance
		if err := rows.Scan(&u.Start, &u.End, &u.SpeakerID, &u.Text); err != nil {
			return nil, fmt.Errorf("list utterances: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
