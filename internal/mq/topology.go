package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeDocuments Exchange = "acquire.documents"
	ExchangeEvents    Exchange = "acquire.events"
	ExchangePlans     Exchange = "acquire.plans"
	ExchangeDLQ       Exchange = "acquire.dlq"
)

// Queues — имена очередей.
const (
	QueuePlansSubmit Queue = "plans.submit"
	QueueDLQPlans    Queue = "dlq.plans"
)

// Routing keys.
const (
	RoutingKeySubmit   RoutingKey = "submit"
	RoutingKeyDLQPlans RoutingKey = "plans"
)

// SetupTopology объявляет exchanges, queues и bindings.
//
// Документы публикуются в topic exchange с routing key = имя документа
// (start, descriptor, event, ...). Наблюдатели создают свои очереди сами.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeDocuments, amqp.ExchangeTopic},
		{ExchangeEvents, amqp.ExchangeFanout},
		{ExchangePlans, amqp.ExchangeDirect},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// plans.submit — отклонённые submissions уходят в DLQ
		{QueuePlansSubmit, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQPlans),
		}},
		{QueueDLQPlans, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueuePlansSubmit, RoutingKeySubmit, ExchangePlans},
		{QueueDLQPlans, RoutingKeyDLQPlans, ExchangeDLQ},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Acquire RabbitMQ Topology:

    acquire.documents (topic)
    └── <observer queues> [routing: start | descriptor | event | resource | datum | stop]

    acquire.events (fanout)
    └── <observer queues>   coordinator notifications

    acquire.plans (direct)
    └── plans.submit [routing: submit]
            Consumer: Coordinator
            DLQ: dlq.plans

    acquire.dlq (direct)
    └── dlq.plans [routing: plans]
            Manual processing
  `
}
