package events

import (
	"context"
	"sync"
)

// Loop — очередь задач, выполняемых в одном потоке (потоке UI).
//
// Любая горутина может поставить задачу через Invoke. Задачи выполняются
// по порядку в горутине, которая вызывает Run или Drain.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	wakeCh chan struct{}
}

// NewLoop создаёт новый Loop.
func NewLoop() *Loop {
	return &Loop{
		wakeCh: make(chan struct{}, 1),
	}
}

// Invoke ставит задачу в очередь. Не блокируется.
func (l *Loop) Invoke(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

// Wake возвращает канал, который получает сигнал при появлении задач.
func (l *Loop) Wake() <-chan struct{} {
	return l.wakeCh
}

// Pending возвращает количество невыполненных задач.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Drain выполняет все накопленные задачи в текущей горутине.
// Задачи, поставленные во время выполнения, тоже выполняются.
// Возвращает количество выполненных задач.
func (l *Loop) Drain() int {
	var n int
	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
			n++
		}
	}
}

// Run выполняет задачи до отмены контекста.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wakeCh:
		}
	}
}
