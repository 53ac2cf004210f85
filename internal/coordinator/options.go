package coordinator

import (
	"context"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/metadata"
)

// ParameterPrompter — диалог сбора параметров плана.
//
// Prompt блокирует вызывающего до ответа оператора. При отмене
// возвращает ErrCancelled.
type ParameterPrompter interface {
	Prompt(ctx context.Context, plan string, schema domain.ParameterSchema) (map[string]any, error)
}

// PrompterFunc — адаптер функции к ParameterPrompter.
type PrompterFunc func(ctx context.Context, plan string, schema domain.ParameterSchema) (map[string]any, error)

// Prompt вызывает f.
func (f PrompterFunc) Prompt(ctx context.Context, plan string, schema domain.ParameterSchema) (map[string]any, error) {
	return f(ctx, plan, schema)
}

// SubmitOption — опция Submit.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	priority    int
	kwargs      domain.RunMetadata
	subscribers []domain.DocumentCallback

	parameters    map[string]any
	hasParameters bool
	prompter      ParameterPrompter

	form             metadata.Form
	suppressMetadata bool
	preset           domain.RunMetadata
	hasPreset        bool
}

// WithPriority задаёт приоритет (меньше — раньше).
func WithPriority(priority int) SubmitOption {
	return func(o *submitOptions) {
		o.priority = priority
	}
}

// SuppressMetadataPrompt ставит план в очередь без формы метаданных.
func SuppressMetadataPrompt() SubmitOption {
	return func(o *submitOptions) {
		o.suppressMetadata = true
	}
}

// WithKwargs задаёт keyword-аргументы submission.
// Их ключи тоже становятся зарезервированными для формы.
func WithKwargs(kwargs map[string]any) SubmitOption {
	return func(o *submitOptions) {
		o.kwargs = domain.RunMetadata(kwargs).Clone()
	}
}

// WithParameters связывает параметры плана без диалога.
func WithParameters(values map[string]any) SubmitOption {
	return func(o *submitOptions) {
		o.parameters = values
		o.hasParameters = true
	}
}

// WithMetadata подставляет метаданные вместо формы. Проверка
// выполняется синхронно, ошибка возвращается из Submit.
func WithMetadata(md map[string]any) SubmitOption {
	return func(o *submitOptions) {
		o.preset = domain.RunMetadata(md).Clone()
		o.hasPreset = true
	}
}

// WithSubscribers добавляет получателей документов только этого run.
func WithSubscribers(cbs ...domain.DocumentCallback) SubmitOption {
	return func(o *submitOptions) {
		o.subscribers = append(o.subscribers, cbs...)
	}
}

// WithForm задаёт форму метаданных для этой submission.
func WithForm(form metadata.Form) SubmitOption {
	return func(o *submitOptions) {
		o.form = form
	}
}

// WithPrompter задаёт диалог параметров для этой submission.
func WithPrompter(p ParameterPrompter) SubmitOption {
	return func(o *submitOptions) {
		o.prompter = p
	}
}
