package broker

import (
	"context"
	"log/slog"

	"github.com/shaiso/Acquire/internal/events"
)

// NotificationPublisher публикует уведомления (mq.Publisher).
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, kind string, data map[string]any) error
}

// EventRelay пересылает уведомления координатора в exchange acquire.events.
// Документы не пересылаются: их публикует PublisherSink.
type EventRelay struct {
	pub         NotificationPublisher
	logger      *slog.Logger
	unsubscribe func()
}

// NewEventRelay подписывает relay на шину.
func NewEventRelay(bus *events.Bus, pub NotificationPublisher, logger *slog.Logger) *EventRelay {
	if logger == nil {
		logger = slog.Default()
	}
	r := &EventRelay{pub: pub, logger: logger}
	r.unsubscribe = bus.Subscribe(r.forward, events.Only(
		events.KindStarted, events.KindFinished, events.KindPaused, events.KindResumed,
		events.KindAborted, events.KindReady, events.KindException, events.KindNotice,
	))
	return r
}

// Close отписывает relay от шины.
func (r *EventRelay) Close() {
	r.unsubscribe()
}

func (r *EventRelay) forward(ev events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSinkTimeout)
	defer cancel()

	if err := r.pub.PublishNotification(ctx, string(ev.Kind()), events.Data(ev)); err != nil {
		// Уведомление в шину здесь вызвало бы цикл
		r.logger.Warn("failed to relay notification", "kind", ev.Kind(), "error", err)
	}
}
