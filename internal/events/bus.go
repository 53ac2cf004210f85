package events

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Handler — обработчик уведомлений.
type Handler func(ev Event)

// Invoker выполняет функцию в потоке получателя (например, в потоке UI).
type Invoker interface {
	Invoke(fn func())
}

// InvokerFunc — адаптер функции к Invoker.
type InvokerFunc func(fn func())

// Invoke вызывает f(fn).
func (f InvokerFunc) Invoke(fn func()) {
	f(fn)
}

// SubscribeOption — опция подписки.
type SubscribeOption func(*subscriber)

// Synchronous — обработчик вызывается прямо в Publish, в горутине издателя.
func Synchronous() SubscribeOption {
	return func(s *subscriber) {
		s.sync = true
	}
}

// Via — обработчик вызывается через invoker (перенос в поток UI).
func Via(invoker Invoker) SubscribeOption {
	return func(s *subscriber) {
		s.invoker = invoker
	}
}

// Only — подписка только на указанные типы уведомлений.
func Only(kinds ...Kind) SubscribeOption {
	return func(s *subscriber) {
		if s.kinds == nil {
			s.kinds = make(map[Kind]bool, len(kinds))
		}
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}
}

// Bus — шина уведомлений с независимыми почтовыми ящиками подписчиков.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

// NewBus создаёт новую шину.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[uint64]*subscriber),
	}
}

// Subscribe регистрирует обработчик и возвращает функцию отписки.
//
// После отписки недоставленные уведомления отбрасываются.
func (b *Bus) Subscribe(h Handler, opts ...SubscribeOption) (unsubscribe func()) {
	s := &subscriber{
		handler: h,
		logger:  b.logger,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.done)
		return func() {}
	}
	b.nextID++
	s.id = b.nextID
	b.subs[s.id] = s
	b.mu.Unlock()

	if !s.sync {
		go s.run()
	} else {
		close(s.done)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s.id)
			b.mu.Unlock()
			s.close(false)
		})
	}
}

// On подписывает типизированный обработчик на уведомления типа T.
func On[T Event](b *Bus, fn func(T), opts ...SubscribeOption) (unsubscribe func()) {
	return b.Subscribe(func(ev Event) {
		if t, ok := ev.(T); ok {
			fn(t)
		}
	}, opts...)
}

// Publish рассылает уведомление всем подписчикам.
//
// Асинхронные подписчики получают уведомление в своей горутине,
// Publish не ждёт их обработки.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.accepts(ev) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if s.sync {
			s.deliver(ev)
			continue
		}
		s.push(ev)
	}
}

// SubscriberCount возвращает количество подписчиков.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close закрывает шину: подписчики дорабатывают уже принятые
// уведомления, новые уведомления игнорируются. Close ждёт доставки.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[uint64]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.close(true)
	}
	for _, s := range subs {
		<-s.done
	}
}

// subscriber — почтовый ящик одного подписчика.
type subscriber struct {
	id      uint64
	handler Handler
	invoker Invoker
	sync    bool
	kinds   map[Kind]bool
	logger  *slog.Logger

	mu     sync.Mutex
	queue  []Event
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func (s *subscriber) accepts(ev Event) bool {
	return s.kinds == nil || s.kinds[ev.Kind()]
}

// push добавляет уведомление в ящик. Ящик не ограничен: уведомления не теряются.
func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// close останавливает ящик. drain=true — доставить то, что уже в ящике.
func (s *subscriber) close(drain bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if !drain {
		s.queue = nil
	}
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// run — цикл доставки уведомлений подписчику.
func (s *subscriber) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			<-s.signal
			continue
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			s.deliver(ev)
		}
	}
}

// deliver вызывает обработчик (через invoker, если задан).
func (s *subscriber) deliver(ev Event) {
	if s.invoker != nil {
		s.invoker.Invoke(func() { s.call(ev) })
		return
	}
	s.call(ev)
}

// call вызывает обработчик, не давая панике обработчика уронить доставку.
func (s *subscriber) call(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panicked",
				"kind", ev.Kind(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.handler(ev)
}
