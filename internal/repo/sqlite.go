package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shaiso/Acquire/internal/domain"
)

// sqliteSchema — схема локального хранилища.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		uid         TEXT PRIMARY KEY,
		scan_id     INTEGER NOT NULL DEFAULT 0,
		plan_name   TEXT NOT NULL,
		status      TEXT NOT NULL,
		metadata    TEXT,
		exit_status TEXT,
		reason      TEXT,
		num_events  TEXT,
		started_at  TEXT NOT NULL,
		finished_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_uid    TEXT NOT NULL,
		name       TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (run_uid) REFERENCES runs(uid) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_uid, id)`,
}

// SQLiteStore — локальное хранилище документов (один файл).
//
// Используется, когда Postgres не настроен.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite открывает (и при необходимости создаёт) SQLite хранилище.
// path=":memory:" — хранилище в памяти.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite сериализует запись; одно соединение нужно и для :memory:
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, stmt := range append(pragmas, sqliteSchema...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// SaveRun сохраняет новый run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (uid, scan_id, plan_name, status, metadata, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (uid) DO NOTHING`,
		run.UID, run.ScanID, run.PlanName, string(run.Status), string(cols.metadata), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.UID, ErrAlreadyExists)
	}
	return nil
}

// FinishRun закрывает run.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *domain.Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return err
	}

	var finished *string
	if run.FinishedAt != nil {
		f := formatTime(*run.FinishedAt)
		finished = &f
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, exit_status = ?, reason = ?, num_events = ?, finished_at = ?
		WHERE uid = ? AND finished_at IS NULL`,
		string(run.Status), nullString(string(run.ExitStatus)), nullString(run.Reason),
		nullString(string(cols.numEvents)), finished, run.UID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		if _, err := s.GetRun(ctx, run.UID); err != nil {
			return err
		}
		return fmt.Errorf("run %s already finished: %w", run.UID, ErrInvalidState)
	}
	return nil
}

// AppendDocument добавляет документ к run.
func (s *SQLiteStore) AppendDocument(ctx context.Context, runUID string, doc domain.LifecycleDocument) error {
	body, err := encodeBody(doc)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (run_uid, name, body, created_at) VALUES (?, ?, ?, ?)`,
		runUID, string(doc.Name), string(body), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert %s document: %w", doc.Name, err)
	}
	return nil
}

// GetRun возвращает run по uid.
func (s *SQLiteStore) GetRun(ctx context.Context, uid string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uid, scan_id, plan_name, status, metadata, exit_status, reason,
		       num_events, started_at, finished_at
		FROM runs WHERE uid = ?`, uid)
	return scanSQLiteRun(row)
}

// ListRuns возвращает runs с фильтрацией.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, scan_id, plan_name, status, metadata, exit_status, reason,
		       num_events, started_at, finished_at
		FROM runs
		WHERE (? IS NULL OR plan_name = ?)
		  AND (? IS NULL OR status = ?)
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`,
		nullString(filter.Plan), filter.Plan,
		nullString(string(filter.Status)), string(filter.Status),
		filter.limit(), filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListDocuments возвращает документы run в порядке поступления.
func (s *SQLiteStore) ListDocuments(ctx context.Context, runUID string) ([]domain.LifecycleDocument, error) {
	if _, err := s.GetRun(ctx, runUID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, body FROM documents WHERE run_uid = ? ORDER BY id`, runUID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.LifecycleDocument
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeDocument(name, []byte(body))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Close закрывает базу.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner — общий интерфейс *sql.Row и *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var status, startedAt string
	var metadata, exitStatus, reason, numEvents, finishedAt sql.NullString

	err := row.Scan(
		&run.UID, &run.ScanID, &run.PlanName, &status, &metadata,
		&exitStatus, &reason, &numEvents, &startedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	run.ExitStatus = domain.ExitStatus(exitStatus.String)
	run.Reason = reason.String
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = &t
	}
	if err := decodeRun(&run, []byte(metadata.String), []byte(numEvents.String)); err != nil {
		return nil, err
	}
	return &run, nil
}

// timeLayout — фиксированная ширина, чтобы сортировка строк совпадала с хронологией.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
