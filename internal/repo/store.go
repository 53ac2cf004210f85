package repo

import (
	"context"

	"github.com/shaiso/Acquire/internal/domain"
)

// defaultListLimit — лимит ListRuns по умолчанию.
const defaultListLimit = 50

// Store — хранилище runs и lifecycle документов ("databroker").
type Store interface {
	// SaveRun сохраняет новый run (по start документу).
	SaveRun(ctx context.Context, run *domain.Run) error

	// FinishRun закрывает run (по stop документу).
	FinishRun(ctx context.Context, run *domain.Run) error

	// AppendDocument добавляет документ к run.
	AppendDocument(ctx context.Context, runUID string, doc domain.LifecycleDocument) error

	// GetRun возвращает run по uid.
	GetRun(ctx context.Context, uid string) (*domain.Run, error)

	// ListRuns возвращает runs (новые первыми).
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.Run, error)

	// ListDocuments возвращает документы run в порядке поступления.
	ListDocuments(ctx context.Context, runUID string) ([]domain.LifecycleDocument, error)

	// Close закрывает хранилище.
	Close() error
}

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Plan   string
	Status domain.RunStatus
	Limit  int
	Offset int
}

// limit возвращает лимит с учётом значения по умолчанию.
func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
