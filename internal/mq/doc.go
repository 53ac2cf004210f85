// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация документов, уведомлений и submissions
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - document      — lifecycle документ run (start, event, stop, ...)
//   - notification  — уведомление координатора (started, finished, ready, ...)
//   - plan.submit   — удалённая постановка плана в очередь
//
// Exchanges:
//   - acquire.documents — документы (topic, routing key = имя документа)
//   - acquire.events    — уведомления (fanout)
//   - acquire.plans     — submissions
//   - acquire.dlq       — dead letter queue
package mq
