package steps

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Acquire/internal/domain"
)

// Registry — реестр исполнителей команд.
//
// Позволяет регистрировать и получать реализации Step по типу команды.
// Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	steps map[domain.CommandType]Step
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[domain.CommandType]Step),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными командами.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewOpenRunStep())
	r.Register(NewCloseRunStep())
	r.Register(NewMoveStep())
	r.Register(NewTriggerStep())
	r.Register(NewReadStep())
	r.Register(NewCheckpointStep())
	r.Register(NewSleepStep())
	r.Register(NewPauseStep())
	r.Register(NewRaiseStep())

	return r
}

// Register регистрирует шаг в реестре.
// Если шаг с таким типом уже существует, он будет перезаписан.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.Type()] = step
}

// Get возвращает шаг по типу.
// Возвращает ErrStepNotFound, если шаг не найден.
func (r *Registry) Get(stepType domain.CommandType) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[stepType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepType)
	}

	return step, nil
}

// Has проверяет, зарегистрирован ли шаг.
func (r *Registry) Has(stepType domain.CommandType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.steps[stepType]
	return exists
}

// Types возвращает список всех зарегистрированных типов.
func (r *Registry) Types() []domain.CommandType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.CommandType, 0, len(r.steps))
	for t := range r.steps {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Count возвращает количество зарегистрированных шагов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// Unregister удаляет шаг из реестра.
func (r *Registry) Unregister(stepType domain.CommandType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.steps, stepType)
}
