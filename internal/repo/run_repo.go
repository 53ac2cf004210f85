package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Acquire/internal/domain"
)

// PostgresStore — хранилище документов в Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore создаёт новый PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// SaveRun сохраняет новый run.
func (s *PostgresStore) SaveRun(ctx context.Context, run *domain.Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (uid, scan_id, plan_name, status, metadata, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uid) DO NOTHING
	`
	result, err := s.pool.Exec(ctx, query,
		run.UID,
		run.ScanID,
		run.PlanName,
		run.Status,
		cols.metadata,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", run.UID, ErrAlreadyExists)
	}
	return nil
}

// FinishRun закрывает run.
func (s *PostgresStore) FinishRun(ctx context.Context, run *domain.Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs
		SET status = $2, exit_status = $3, reason = $4, num_events = $5, finished_at = $6
		WHERE uid = $1 AND finished_at IS NULL
	`
	result, err := s.pool.Exec(ctx, query,
		run.UID,
		run.Status,
		nullString(string(run.ExitStatus)),
		nullString(run.Reason),
		cols.numEvents,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := s.GetRun(ctx, run.UID); err != nil {
			return err
		}
		return fmt.Errorf("run %s already finished: %w", run.UID, ErrInvalidState)
	}
	return nil
}

// GetRun возвращает run по uid.
func (s *PostgresStore) GetRun(ctx context.Context, uid string) (*domain.Run, error) {
	query := `
		SELECT uid, scan_id, plan_name, status, metadata, exit_status, reason,
		       num_events, started_at, finished_at
		FROM runs
		WHERE uid = $1
	`
	return scanRun(s.pool.QueryRow(ctx, query, uid))
}

// ListRuns возвращает runs с фильтрацией.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	query := `
		SELECT uid, scan_id, plan_name, status, metadata, exit_status, reason,
		       num_events, started_at, finished_at
		FROM runs
		WHERE ($1::text IS NULL OR plan_name = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := s.pool.Query(ctx, query,
		nullString(filter.Plan),
		nullString(string(filter.Status)),
		filter.limit(),
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Close закрывает пул соединений.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// scanRun сканирует одну строку в Run. pgx.Rows тоже реализует pgx.Row.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var metadata, numEvents []byte
	var exitStatus, reason *string

	err := row.Scan(
		&run.UID,
		&run.ScanID,
		&run.PlanName,
		&run.Status,
		&metadata,
		&exitStatus,
		&reason,
		&numEvents,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if exitStatus != nil {
		run.ExitStatus = domain.ExitStatus(*exitStatus)
	}
	if reason != nil {
		run.Reason = *reason
	}
	if err := decodeRun(&run, metadata, numEvents); err != nil {
		return nil, err
	}
	return &run, nil
}
