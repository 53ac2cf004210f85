// Package scheduler ставит планы в очередь по расписанию.
//
// Scheduler периодически проверяет расписания с истекшим next_due_at
// и отправляет план координатору без диалогов: параметры и метаданные
// берутся из расписания.
//
// Структура:
//   - scheduler.go — Scheduler (Tick, Run, управление расписаниями)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Coordinator: coord,
//	    Plans:       lib,
//	    Schedules:   cfg.Schedules,
//	    Logger:      logger,
//	})
//
//	go sched.Run(ctx) // тик раз в секунду
package scheduler
