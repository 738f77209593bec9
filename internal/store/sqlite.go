package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode, creating the parent directory when needed.
func NewSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: create dir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	params       TEXT,
	cells        INTEGER NOT NULL DEFAULT 0,
	tasks        INTEGER NOT NULL DEFAULT 0,
	tasks_failed INTEGER NOT NULL DEFAULT 0,
	records      INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_crawl_runs_started_at ON crawl_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_crawl_runs_status ON crawl_runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, params any) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal run params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO crawl_runs (id, status, params, started_at) VALUES (?, ?, ?, ?)`,
		id, StatusRunning, string(paramsJSON), now,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert run")
	}
	return id, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, stats Stats) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE crawl_runs
		 SET status = ?, cells = ?, tasks = ?, tasks_failed = ?, records = ?, completed_at = ?
		 WHERE id = ?`,
		StatusCompleted, stats.Cells, stats.Tasks, stats.TasksFailed, stats.Records, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", id)
	}
	return requireRowAffected(res, id)
}

func (s *SQLiteStore) FailRun(ctx context.Context, id, msg string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE crawl_runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		StatusFailed, msg, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", id)
	}
	return requireRowAffected(res, id)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, params, cells, tasks, tasks_failed, records, error, started_at, completed_at
		 FROM crawl_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var (
			r           Run
			params, msg sql.NullString
			completedAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Status, &params, &r.Cells, &r.Tasks,
			&r.TasksFailed, &r.Records, &msg, &r.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Params = params.String
		r.Error = msg.String
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}
	return runs, nil
}

func requireRowAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", id)
	}
	return nil
}
