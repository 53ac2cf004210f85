package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/events"
)

const defaultSinkTimeout = 5 * time.Second

// Notifier показывает сообщение оператору (coordinator.Coordinator).
type Notifier interface {
	Notify(level events.NoticeLevel, text string)
}

// Metrics — счётчик отказов sinks.
type Metrics interface {
	SinkFailed(sink string)
}

// Dispatcher передаёт документы из Bus в sinks.
type Dispatcher struct {
	bus      *events.Bus
	sinks    []Sink
	notifier Notifier
	metrics  Metrics
	timeout  time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	degraded map[string]bool

	unsubscribe func()
}

// Config — конфигурация Dispatcher.
type Config struct {
	// Bus — шина координатора. Обязательна.
	Bus *events.Bus

	// Sinks — получатели документов, вызываются по порядку.
	Sinks []Sink

	// Notifier — куда отправлять сообщения об отказах (опционально).
	Notifier Notifier

	// Metrics — счётчик отказов (опционально).
	Metrics Metrics

	// Timeout — таймаут одного Consume (default: 5s).
	Timeout time.Duration

	Logger *slog.Logger
}

// Attach создаёт Dispatcher и подписывает его на документы координатора.
func Attach(cfg Config) (*Dispatcher, error) {
	if len(cfg.Sinks) == 0 {
		return nil, ErrNoSinks
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSinkTimeout
	}

	d := &Dispatcher{
		bus:      cfg.Bus,
		sinks:    cfg.Sinks,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		timeout:  timeout,
		logger:   logger,
		degraded: make(map[string]bool),
	}

	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	logger.Info("attaching document sinks", "sinks", names)

	// Асинхронная подписка: медленный sink не задерживает движок
	d.unsubscribe = events.On(cfg.Bus, d.handle, events.Only(events.KindDocument))
	return d, nil
}

// Detach отписывает Dispatcher от шины.
// Документы, ещё не переданные в sinks, отбрасываются.
func (d *Dispatcher) Detach() {
	d.unsubscribe()
	d.logger.Info("document sinks detached")
}

// Degraded возвращает имена sinks, отключённых в текущем run.
func (d *Dispatcher) Degraded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []string
	for _, s := range d.sinks {
		if d.degraded[s.Name()] {
			out = append(out, s.Name())
		}
	}
	return out
}

func (d *Dispatcher) handle(ev events.DocumentYielded) {
	doc := ev.Document()

	if doc.Name == domain.DocumentStart {
		d.mu.Lock()
		clear(d.degraded)
		d.mu.Unlock()
	}

	for _, sink := range d.sinks {
		if d.isDegraded(sink.Name()) {
			continue
		}
		if err := d.consume(sink, doc); err != nil {
			d.degrade(sink, doc, err)
		}
	}
}

func (d *Dispatcher) consume(sink Sink, doc domain.LifecycleDocument) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()

	return sink.Consume(ctx, doc)
}

func (d *Dispatcher) isDegraded(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.degraded[name]
}

func (d *Dispatcher) degrade(sink Sink, doc domain.LifecycleDocument, err error) {
	d.mu.Lock()
	d.degraded[sink.Name()] = true
	d.mu.Unlock()

	d.logger.Warn("document sink failed, disabled until next run",
		"sink", sink.Name(),
		"document", doc.Name,
		"error", err,
	)
	if d.metrics != nil {
		d.metrics.SinkFailed(sink.Name())
	}
	if d.notifier != nil {
		d.notifier.Notify(events.NoticeWarning,
			fmt.Sprintf("Document sink %s failed: %v. Data from the current run will not reach it.", sink.Name(), err))
	}
}
