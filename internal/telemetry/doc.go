// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики координатора и sinks
//   - tracing.go — OpenTelemetry TracerProvider (консольный экспорт)
//
// Все бинарники используют единый формат логирования,
// сервер экспортирует метрики на /metrics endpoint.
package telemetry
