// Package cli реализует инструмент командной строки Acquire.
//
// # Обзор
//
// CLI — клиентская утилита для сервера Acquire. Работает через HTTP API,
// не импортирует внутренние пакеты системы. Позволяет ставить планы в
// очередь, управлять движком и просматривать записанные runs.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Acquire API. Инкапсулирует HTTP-запросы, разбор
// ответов (data, list, error) и чтение потока уведомлений (SSE).
//
//	client := cli.NewClient("http://localhost:8080")
//	plans, err := client.ListPlans()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr:
//
//	acquire run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - plan: list, show, submit
//   - engine: status, pause, resume, abort, stop
//   - run: list, show, documents
//   - schedule: list, show, enable, disable
//   - events: поток уведомлений до Ctrl+C
//
// Каждая группа создаётся фабричной функцией (NewPlanCmd и т.д.),
// принимающей clientFn и outputFn для ленивого создания Client и Output
// после разбора PersistentFlags.
package cli
