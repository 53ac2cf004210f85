package coordinator

import "errors"

// Ошибки координатора.
var (
	// ErrCancelled — оператор отменил диалог параметров.
	// Пользователю не показывается.
	ErrCancelled = errors.New("submission cancelled")

	// ErrNoPlan — Submit вызван без плана.
	ErrNoPlan = errors.New("no plan to submit")

	// ErrUnknownPlan — план с таким именем не найден.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrStopped — координатор остановлен.
	ErrStopped = errors.New("coordinator stopped")

	// ErrPlanPanic — план (или движок) вызвал panic.
	ErrPlanPanic = errors.New("plan panicked")
)
