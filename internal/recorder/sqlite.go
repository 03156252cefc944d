package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder keeps the run history in a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create recorder directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the history be inspected while a scheduled run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("Run recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			mode        TEXT NOT NULL,
			path        TEXT NOT NULL,
			range_start INTEGER NOT NULL,
			range_end   INTEGER NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER,
			status      TEXT NOT NULL,
			row_count   INTEGER DEFAULT 0,
			window_cnt  INTEGER DEFAULT 0,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS windows (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL REFERENCES runs(id),
			window_start INTEGER NOT NULL,
			window_end   INTEGER NOT NULL,
			row_count    INTEGER,
			error        TEXT,
			recorded_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_windows_run ON windows(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:30], err)
		}
	}
	return nil
}

func errorText(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}

func (r *SQLiteRecorder) StartRun(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO runs
		(id, mode, path, range_start, range_end, started_at, status)
		VALUES (?,?,?,?,?,?,?)`,
		run.ID, run.Mode, run.Path,
		run.RangeStart.Unix(), run.RangeEnd.Unix(), startedAt.Unix(),
		StatusRunning,
	)
	return err
}

func (r *SQLiteRecorder) RecordWindow(evt *WindowEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO windows
		(run_id, window_start, window_end, row_count, error, recorded_at)
		VALUES (?,?,?,?,?,?)`,
		evt.RunID, evt.Start.Unix(), evt.End.Unix(), evt.Rows,
		errorText(evt.Err), time.Now().Unix(),
	)
	return err
}

func (r *SQLiteRecorder) FinishRun(id string, result *RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`UPDATE runs
		SET finished_at = ?, status = ?, row_count = ?, window_cnt = ?, error = ?
		WHERE id = ?`,
		time.Now().Unix(), result.Status, result.Rows, result.Windows,
		errorText(result.Err), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s was never started", id)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, mode, path, range_start, range_end,
		started_at, finished_at, status, row_count, window_cnt, error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			s                               RunSummary
			rangeStart, rangeEnd, startedAt int64
			finishedAt                      sql.NullInt64
			errText                         sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Mode, &s.Path, &rangeStart, &rangeEnd,
			&startedAt, &finishedAt, &s.Status, &s.Rows, &s.Windows, &errText); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.RangeStart = time.Unix(rangeStart, 0)
		s.RangeEnd = time.Unix(rangeEnd, 0)
		s.StartedAt = time.Unix(startedAt, 0)
		if finishedAt.Valid {
			s.FinishedAt = time.Unix(finishedAt.Int64, 0)
		}
		s.Error = errText.String
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("Closing run recorder")
	return r.db.Close()
}
