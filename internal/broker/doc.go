// Package broker подключает получателей документов (sinks) к координатору.
//
// # Обзор
//
// Dispatcher подписывается на DocumentYielded и передаёт каждый документ
// всем sinks по порядку. Отказ sink не влияет на выполнение плана:
//
//   - Ошибка пишется в лог (Warn) и показывается оператору (Notice)
//   - Sink отключается до конца текущего run
//   - На следующем start документе sink снова включается
//
// Реализации:
//
//   - StoreSink — сохраняет runs и документы в repo.Store
//   - PublisherSink — публикует документы в RabbitMQ (exchange acquire.documents)
//   - WebhookSink — отправляет документы POST-запросом на внешний URL
//
// EventRelay пересылает уведомления координатора в exchange acquire.events.
package broker
