package queue

import (
	"cmp"
	"container/heap"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/shaiso/Acquire/internal/domain"
)

// Ошибки очереди.
var (
	// ErrEmpty — очередь пуста (или истёк таймаут ожидания).
	ErrEmpty = errors.New("queue is empty")

	// ErrTaskDoneUnderflow — TaskDone вызван больше раз, чем Put.
	ErrTaskDoneUnderflow = errors.New("task_done called too many times")
)

// Queue — очередь submissions с приоритетом.
//
// UnfinishedTasks считает элементы, которые ещё ожидают в очереди,
// плюс извлечённые, для которых не был вызван TaskDone.
type Queue struct {
	mu         sync.Mutex
	items      submissionHeap
	unfinished int

	// wake закрывается и пересоздаётся при каждом Put.
	wake chan struct{}
}

// New создаёт пустую очередь.
func New() *Queue {
	return &Queue{
		wake: make(chan struct{}),
	}
}

// Put добавляет submission в очередь. Никогда не блокируется.
func (q *Queue) Put(item domain.PrioritizedSubmission) {
	q.mu.Lock()
	defer q.mu.Unlock()

	heap.Push(&q.items, item)
	q.unfinished++

	close(q.wake)
	q.wake = make(chan struct{})
}

// Get извлекает submission с наименьшим приоритетом.
//
// Если block=false, при пустой очереди сразу возвращает ErrEmpty.
// Если block=true, ждёт появления элемента не дольше timeout
// (timeout <= 0 — ждать без ограничения) и по истечении возвращает ErrEmpty.
func (q *Queue) Get(block bool, timeout time.Duration) (domain.PrioritizedSubmission, error) {
	var deadline <-chan time.Time
	if block && timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			item := heap.Pop(&q.items).(domain.PrioritizedSubmission)
			q.mu.Unlock()
			return item, nil
		}
		wake := q.wake
		q.mu.Unlock()

		if !block {
			return domain.PrioritizedSubmission{}, ErrEmpty
		}

		select {
		case <-wake:
		case <-deadline:
			return domain.PrioritizedSubmission{}, ErrEmpty
		}
	}
}

// TaskDone отмечает, что обработка извлечённой submission завершена.
func (q *Queue) TaskDone() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		return ErrTaskDoneUnderflow
	}
	q.unfinished--
	return nil
}

// UnfinishedTasks возвращает количество ожидающих и выполняющихся submissions.
func (q *Queue) UnfinishedTasks() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// Len возвращает количество submissions, ожидающих в очереди.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Pending возвращает копию ожидающих submissions, отсортированную по приоритету.
func (q *Queue) Pending() []domain.PrioritizedSubmission {
	q.mu.Lock()
	out := slices.Clone(q.items)
	q.mu.Unlock()

	slices.SortStableFunc(out, func(a, b domain.PrioritizedSubmission) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return out
}

// submissionHeap — min-heap по Priority для container/heap.
type submissionHeap []domain.PrioritizedSubmission

func (h submissionHeap) Len() int           { return len(h) }
func (h submissionHeap) Less(i, j int) bool { return h[i].Priority < h[j].Priority }
func (h submissionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *submissionHeap) Push(x any) {
	*h = append(*h, x.(domain.PrioritizedSubmission))
}

func (h *submissionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = domain.PrioritizedSubmission{}
	*h = old[:n-1]
	return item
}
