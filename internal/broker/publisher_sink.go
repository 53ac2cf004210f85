package broker

import (
	"context"

	"github.com/shaiso/Acquire/internal/domain"
)

// DocumentPublisher публикует документы (mq.Publisher).
type DocumentPublisher interface {
	PublishDocument(ctx context.Context, name string, body map[string]any) error
}

// PublisherSink публикует документы в RabbitMQ
// (exchange acquire.documents, routing key = имя документа).
type PublisherSink struct {
	pub DocumentPublisher
}

var _ Sink = (*PublisherSink)(nil)

// NewPublisherSink создаёт новый PublisherSink.
func NewPublisherSink(pub DocumentPublisher) *PublisherSink {
	return &PublisherSink{pub: pub}
}

// Name возвращает имя sink.
func (s *PublisherSink) Name() string {
	return "mq"
}

// Consume публикует документ.
func (s *PublisherSink) Consume(ctx context.Context, doc domain.LifecycleDocument) error {
	return s.pub.PublishDocument(ctx, string(doc.Name), doc.Body)
}
