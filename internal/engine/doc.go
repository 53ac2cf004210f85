// Package engine содержит движок планов и всё, что нужно для описания планов.
//
// Включает:
//   - engine.go    — интерфейс Engine (адаптер движка для координатора)
//   - runengine.go — RunEngine, встроенная реализация Engine
//   - plan.go      — ParamPlan и встроенные планы count, scan, list_scan
//   - parser.go    — разбор и валидация PlanSpec, развёртывание в команды
//   - template.go  — рендеринг Go templates ({{ .Params.num }}, {{ .Item }})
//
// # RunEngine
//
// RunEngine выполняет один план за раз: Run блокируется до конца плана
// и возвращает ErrEngineBusy при повторном вызове. Команды исполняются
// через steps.Registry, документы (start, descriptor, event, resource,
// datum, stop) рассылаются подписчикам синхронно в горутине Run.
//
// Пауза:
//   - RequestPause(false) — пауза на границе следующей команды
//   - RequestPause(true)  — пауза на ближайшем checkpoint
//
// Во время паузы Run остаётся заблокированным. Resume продолжает план,
// Abort завершает его с exit_status=abort и ErrRunAborted, Stop — с
// exit_status=success и nil. Отмена ctx эквивалентна Abort.
package engine
