// Package steps содержит исполнители команд плана.
//
// # Обзор
//
// План — последовательность domain.Command. Движок берёт очередную команду,
// находит её исполнителя в Registry и вызывает Execute. Каждый шаг:
//   - Получает аргументы команды (Request.Config)
//   - Работает с оборудованием через Runtime
//   - Возвращает outputs (позиция, прочитанные значения)
//
// # Интерфейс Step
//
//	type Step interface {
//	    Type() domain.CommandType
//	    Execute(ctx context.Context, req *Request) (*Response, error)
//	}
//
// # Runtime
//
// Шаги не создают lifecycle документы сами. Runtime реализуется движком:
// OpenRun испускает start, Emit испускает descriptor/resource/datum/event,
// CloseRun испускает stop. Так шаги остаются независимыми от формата
// документов.
//
// # Типы команд
//
//   - open_run   {"md": {...}}
//   - close_run  {"exit_status": "success", "reason": ""}
//   - move       device + {"position": 1.5}
//   - trigger    device или {"devices": [...]}
//   - read       device или {"devices": [...], "stream": "primary"}
//   - checkpoint точка срабатывания отложенной паузы
//   - sleep      {"duration_sec": 0.5} или {"duration_ms": 500}
//   - pause      {"defer": true}
//   - raise      {"message": "..."} — завершает план ошибкой ErrPlanRaised
//
// # Файлы пакета
//
//   - step.go     — Step, Runtime, Request, Response, ошибки, GetConfig*
//   - registry.go — Registry для получения Step по типу команды
//   - hardware.go — команды работы с run и оборудованием
//   - delay.go    — SleepStep
package steps
