package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPermanent — сообщение нельзя обработать повторно (уходит в DLQ).
var ErrPermanent = errors.New("permanent failure")

// ErrUnexpectedType — тип сообщения не ожидается в этой очереди.
var ErrUnexpectedType = errors.New("unexpected message type")

// Permanent помечает ошибку как постоянную.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Handler обрабатывает одно сообщение. Ack/nack делает Consumer:
//
//   - nil: ack;
//   - ошибка с ErrPermanent: сразу в DLQ;
//   - прочие ошибки: одна повторная доставка, затем DLQ.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	Message     Message
	RoutingKey  string
	Redelivered bool
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Accept — допустимые типы сообщений. Пустой список пропускает все.
	// Остальные типы уходят в DLQ без вызова Handler.
	Accept []MessageType

	// Prefetch (default: 1).
	Prefetch int
}

// Consumer читает очередь RabbitMQ и переживает переподключения.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	return &Consumer{
		conn:   conn,
		logger: logger.With("queue", cfg.Queue),
		cfg:    cfg,
	}
}

// Start читает очередь до отмены ctx. Блокирует.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to setup consume", "error", err)
			if err := c.waitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started")
		if err := c.drain(ctx, deliveries); err != nil {
			return err
		}

		c.logger.Warn("deliveries channel closed, waiting for reconnect")
		if err := c.waitReconnect(ctx); err != nil {
			return err
		}
	}
}

func (c *Consumer) waitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, restarting consumer")
		return nil
	}
}

// subscribe открывает поток доставки с ручным ack.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNotConnected
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

// drain обрабатывает поток, пока он открыт.
// Возвращает ошибку только при отмене ctx.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение и подтверждает его.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "error", err, "body", string(raw.Body))
		_ = raw.Nack(false, false)
		return
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)

	if len(c.cfg.Accept) > 0 && !slices.Contains(c.cfg.Accept, msg.Type) {
		logger.Warn("message rejected", "error", ErrUnexpectedType)
		_ = raw.Nack(false, false)
		return
	}

	logger.Debug("received message")

	err := c.cfg.Handler(ctx, &Delivery{
		Message:     msg,
		RoutingKey:  raw.RoutingKey,
		Redelivered: raw.Redelivered,
	})
	if err != nil {
		requeue := !errors.Is(err, ErrPermanent) && !raw.Redelivered
		logger.Error("handler failed", "requeue", requeue, "error", err)
		_ = raw.Nack(false, requeue)
		return
	}

	_ = raw.Ack(false)
}

// Decode разбирает payload сообщения в T.
// После JSON-доставки payload приходит как map[string]any.
func Decode[T any](msg *Message) (T, error) {
	var result T

	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return result, nil
}
