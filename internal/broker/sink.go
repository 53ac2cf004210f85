package broker

import (
	"context"

	"github.com/shaiso/Acquire/internal/domain"
)

// Sink — получатель lifecycle документов.
type Sink interface {
	// Name возвращает имя sink для логов и метрик.
	Name() string

	// Consume обрабатывает документ. Документы приходят в порядке испускания.
	Consume(ctx context.Context, doc domain.LifecycleDocument) error
}

// SinkFunc — адаптер функции к Sink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, doc domain.LifecycleDocument) error
}

// Name возвращает имя sink.
func (s SinkFunc) Name() string { return s.SinkName }

// Consume вызывает Fn.
func (s SinkFunc) Consume(ctx context.Context, doc domain.LifecycleDocument) error {
	return s.Fn(ctx, doc)
}
