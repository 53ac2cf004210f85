package engine

import (
	"errors"
	"fmt"
)

// Ошибки валидации PlanSpec.
var (
	// ErrEmptySteps — план (или тело loop) не содержит шагов.
	ErrEmptySteps = errors.New("plan spec has no steps")

	// ErrEmptyName — план не имеет имени.
	ErrEmptyName = errors.New("plan spec has empty name")

	// ErrUnknownStepType — неизвестный тип шага.
	ErrUnknownStepType = errors.New("unknown step type")

	// ErrMissingDevice — команда требует устройство.
	ErrMissingDevice = errors.New("step requires a device")

	// ErrUnbalancedRun — open_run/close_run не образуют пары.
	ErrUnbalancedRun = errors.New("open_run and close_run are not balanced")

	// ErrInvalidLoop — loop без each/count или с обоими сразу.
	ErrInvalidLoop = errors.New("loop requires exactly one of each or count")

	// ErrInvalidParameter — некорректное описание параметра.
	ErrInvalidParameter = errors.New("invalid parameter definition")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// Ошибки движка.
var (
	// ErrEngineBusy — движок уже выполняет план (движок не реентерабелен).
	ErrEngineBusy = errors.New("engine is busy")

	// ErrRunAborted — выполнение плана прервано (abort или отмена контекста).
	// Это штатное завершение плана, а не отказ движка.
	ErrRunAborted = errors.New("run aborted")

	// ErrInvalidState — команда управления не имеет смысла в текущем состоянии.
	ErrInvalidState = errors.New("invalid engine state")

	// ErrRunNotOpen — close_run или read без открытого run.
	ErrRunNotOpen = errors.New("no open run")

	// ErrRunAlreadyOpen — повторный open_run.
	ErrRunAlreadyOpen = errors.New("run already open")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Step    string // путь шага, например steps[2].steps[0]
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Step != "" {
		return e.Step + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(step, field, message string, err error) *ValidationError {
	return &ValidationError{
		Step:    step,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// stepPath формирует путь шага для сообщений об ошибках.
func stepPath(parent string, i int) string {
	if parent == "" {
		return fmt.Sprintf("steps[%d]", i)
	}
	return fmt.Sprintf("%s.steps[%d]", parent, i)
}
