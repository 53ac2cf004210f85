// Package coordinator реализует координатор выполнения планов.
//
// # Обзор
//
// Coordinator стоит между интерактивной постановкой планов и их
// последовательным выполнением:
//
//	Submit → диалог параметров → форма метаданных (metadata.Gate)
//	       → queue.Queue → worker → engine.Engine → документы → events.Bus
//
// Единственная горутина worker вызывает движок; все остальные пути
// (UI, HTTP API, RabbitMQ, расписания) только ставят submissions в очередь.
//
// # Уведомления
//
// Подписчики получают уведомления через events.Bus:
//   - Started, Finished — пара на каждую submission, в любом исходе
//   - ExceptionRaised — план завершился ошибкой
//   - Paused, Resumed, Aborted — запросы управления; Paused публикуется
//     один раз на паузу, в том числе на паузу, запрошенную самим планом
//   - Ready — движок свободен и очередь пуста
//   - DocumentYielded — lifecycle документ движка
//   - Notice — сообщение для оператора ("Run aborted", ошибки)
//
// # Управление
//
// Abort на свободном движке ничего не делает. Abort на паузе прерывает
// run. Resume продолжает план в горутине worker и публикует Resumed
// сразу, не дожидаясь движка.
package coordinator
