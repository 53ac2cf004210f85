package repo

import (
	"context"
	"fmt"

	"github.com/shaiso/Acquire/internal/domain"
)

// AppendDocument добавляет документ к run.
func (s *PostgresStore) AppendDocument(ctx context.Context, runUID string, doc domain.LifecycleDocument) error {
	body, err := encodeBody(doc)
	if err != nil {
		return err
	}

	query := `INSERT INTO documents (run_uid, name, body) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, query, runUID, string(doc.Name), body); err != nil {
		return fmt.Errorf("insert %s document: %w", doc.Name, err)
	}
	return nil
}

// ListDocuments возвращает документы run в порядке поступления.
func (s *PostgresStore) ListDocuments(ctx context.Context, runUID string) ([]domain.LifecycleDocument, error) {
	if _, err := s.GetRun(ctx, runUID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT name, body FROM documents WHERE run_uid = $1 ORDER BY id`, runUID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.LifecycleDocument
	for rows.Next() {
		var name string
		var body []byte
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeDocument(name, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
