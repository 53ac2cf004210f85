package metadata

import (
	"github.com/google/uuid"

	"github.com/shaiso/Acquire/internal/domain"
)

// Candidate — submission, ожидающая метаданных.
type Candidate struct {
	// ID — идентификатор будущей submission.
	ID uuid.UUID

	// Plan — план (параметры уже связаны).
	Plan domain.Plan

	// Priority — приоритет.
	Priority int

	// Kwargs — keyword-аргументы submission.
	Kwargs domain.RunMetadata

	// Subscribers — получатели документов этого run.
	Subscribers []domain.DocumentCallback
}

// Request — то, что форма показывает оператору.
type Request struct {
	// Plan — имя плана.
	Plan string

	// Reserved — ключи, которые нельзя использовать.
	Reserved []string

	// Fields — поля шаблона с последними значениями.
	Fields []Field
}

// Result — ответ формы.
type Result struct {
	// Metadata — собранные значения.
	Metadata domain.RunMetadata

	// Cancelled — оператор закрыл форму без подтверждения.
	Cancelled bool
}

// Form — немодальная форма сбора метаданных.
//
// Open не должен блокироваться надолго: форма вызывает done один раз,
// когда оператор подтвердил или отменил ввод.
type Form interface {
	Open(req Request, done func(Result))
}

// FormFunc — адаптер функции к Form.
type FormFunc func(req Request, done func(Result))

// Open вызывает f(req, done).
func (f FormFunc) Open(req Request, done func(Result)) {
	f(req, done)
}

// PresetForm возвращает форму, которая сразу подтверждает md.
//
// Используется там, где оператора нет: API, очередь сообщений, расписания.
func PresetForm(md domain.RunMetadata) Form {
	return FormFunc(func(_ Request, done func(Result)) {
		done(Result{Metadata: md.Clone()})
	})
}

// CancelForm возвращает форму, которая всегда отменяет ввод.
func CancelForm() Form {
	return FormFunc(func(_ Request, done func(Result)) {
		done(Result{Cancelled: true})
	})
}
