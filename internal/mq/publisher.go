package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeDocument     MessageType = "document"
	MessageTypeNotification MessageType = "notification"
	MessageTypePlanSubmit   MessageType = "plan.submit"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// DocumentPayload — lifecycle документ.
type DocumentPayload struct {
	Name string         `json:"name"`
	Body map[string]any `json:"body"`
}

// NotificationPayload — уведомление координатора.
type NotificationPayload struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
}

// SubmitPayload — удалённая постановка плана в очередь.
type SubmitPayload struct {
	Plan       string         `json:"plan"`
	Priority   *int           `json:"priority,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishDocument публикует lifecycle документ.
// Routing key — имя документа.
func (p *Publisher) PublishDocument(ctx context.Context, name string, body map[string]any) error {
	msg := NewMessage(MessageTypeDocument, DocumentPayload{Name: name, Body: body})
	return p.Publish(ctx, ExchangeDocuments, RoutingKey(name), msg)
}

// PublishNotification публикует уведомление координатора.
func (p *Publisher) PublishNotification(ctx context.Context, kind string, data map[string]any) error {
	msg := NewMessage(MessageTypeNotification, NotificationPayload{Kind: kind, Data: data})
	return p.Publish(ctx, ExchangeEvents, "", msg)
}

// PublishSubmit ставит план в очередь удалённого координатора.
func (p *Publisher) PublishSubmit(ctx context.Context, payload SubmitPayload) error {
	msg := NewMessage(MessageTypePlanSubmit, payload)
	return p.Publish(ctx, ExchangePlans, RoutingKeySubmit, msg)
}
