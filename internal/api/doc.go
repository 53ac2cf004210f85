// Package api содержит HTTP API станции.
//
// Структура:
//   - handler.go          — Handler с DI (координатор, библиотека, хранилище, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - plan_handler.go     — обработчики для /plans
//   - engine_handler.go   — обработчики для /engine (pause, resume, abort, stop)
//   - run_handler.go      — обработчики для /runs (хранилище документов)
//   - schedule_handler.go — обработчики для /schedules
//   - events_handler.go   — поток уведомлений (Server-Sent Events)
//
// Постановка плана в очередь возвращает 202: план выполнится позже,
// результат виден в /runs и в потоке /events.
package api
