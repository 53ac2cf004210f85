package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/engine"
	"github.com/shaiso/Acquire/internal/events"
	"github.com/shaiso/Acquire/internal/metadata"
	"github.com/shaiso/Acquire/internal/mq"
	"github.com/shaiso/Acquire/internal/queue"
)

// Default configuration values.
const (
	defaultPollInterval = 100 * time.Millisecond
	defaultPriority     = 1
	tracerName          = "github.com/shaiso/Acquire/internal/coordinator"
)

// PlanSource — источник планов по имени (библиотека планов).
type PlanSource interface {
	Get(name string) (domain.Plan, error)
}

// Coordinator — координатор выполнения планов.
//
// Coordinator:
//   - Принимает submissions (Submit) и пропускает их через форму метаданных
//   - Держит очередь с приоритетом
//   - В единственной горутине worker извлекает submissions и вызывает движок
//   - Публикует уведомления (Started, Finished, Ready, ...) в Bus
//   - Предоставляет управление: Pause, Resume, Abort, StopRun
type Coordinator struct {
	engine engine.Engine
	queue  *queue.Queue
	bus    *events.Bus
	gate   *metadata.Gate

	form     metadata.Form
	prompter ParameterPrompter
	plans    PlanSource

	// MQ
	conn     *mq.Connection
	consumer *mq.Consumer

	// Configuration
	pollInterval    time.Duration
	defaultPriority int
	ownsBus         bool

	metrics Metrics
	tracer  trace.Tracer

	// pauseAnnounced — Paused уже опубликован для текущей паузы
	// (или ожидающей отложенной). Сбрасывается при выходе из паузы.
	pauseMu        sync.Mutex
	pauseAnnounced bool

	// Lifecycle
	logger          *slog.Logger
	unsubscribeDocs func()
	unwatchState    func()
	cancelFunc      context.CancelFunc
	wg              sync.WaitGroup
	stopped         bool
	stoppedMu       sync.RWMutex
}

// Config — конфигурация Coordinator.
type Config struct {
	// Engine — движок планов. Обязателен.
	Engine engine.Engine

	// Queue — очередь submissions (default: новая).
	Queue *queue.Queue

	// Bus — шина уведомлений (default: новая, закрывается в Stop).
	Bus *events.Bus

	// Form — форма метаданных по умолчанию.
	// Nil — submissions ставятся в очередь без формы.
	Form metadata.Form

	// Prompter — диалог параметров по умолчанию.
	// Nil — несвязанные планы связываются значениями по умолчанию.
	Prompter ParameterPrompter

	// Invoker — поток UI, в котором открываются формы.
	Invoker events.Invoker

	// Templates — шаблон формы метаданных.
	Templates *metadata.Templates

	// Plans — библиотека планов для удалённых submissions.
	Plans PlanSource

	// Conn — соединение RabbitMQ. Nil — удалённые submissions отключены.
	Conn *mq.Connection

	PollInterval    time.Duration // интервал опроса очереди (default: 100ms)
	DefaultPriority int           // приоритет по умолчанию (default: 1)

	Metrics Metrics
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// New создаёт новый Coordinator.
func New(cfg Config) *Coordinator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	priority := cfg.DefaultPriority
	if priority == 0 {
		priority = defaultPriority
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	q := cfg.Queue
	if q == nil {
		q = queue.New()
	}

	bus, ownsBus := cfg.Bus, false
	if bus == nil {
		bus, ownsBus = events.NewBus(logger), true
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	c := &Coordinator{
		engine:          cfg.Engine,
		queue:           q,
		bus:             bus,
		form:            cfg.Form,
		prompter:        cfg.Prompter,
		plans:           cfg.Plans,
		conn:            cfg.Conn,
		pollInterval:    pollInterval,
		defaultPriority: priority,
		ownsBus:         ownsBus,
		metrics:         metrics,
		tracer:          tracer,
		logger:          logger,
	}

	c.gate = metadata.NewGate(metadata.Config{
		Queue:     q,
		Invoker:   cfg.Invoker,
		Templates: cfg.Templates,
		OnEnqueue: c.onEnqueue,
		OnReject:  c.onReject,
		OnCancel:  c.onCancel,
		Logger:    logger,
	})

	return c
}

// Start запускает Coordinator.
//
// Запускает:
//   - Пересылку документов движка в Bus
//   - Worker, выполняющий submissions по одной
//   - Consumer удалённых submissions (если задан Conn)
func (c *Coordinator) Start(ctx context.Context) error {
	if c.engine == nil {
		return errors.New("coordinator: engine is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	c.logger.Info("starting coordinator",
		"poll_interval", c.pollInterval,
		"default_priority", c.defaultPriority,
	)

	c.unsubscribeDocs = c.engine.Subscribe(c.forwardDocument)
	c.unwatchState = c.engine.WatchState(c.onEngineState)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.workerLoop(ctx)
	}()

	if c.conn != nil {
		c.consumer = mq.NewConsumer(c.conn, c.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueuePlansSubmit),
			Handler:  c.handleSubmission,
			Accept:   []mq.MessageType{mq.MessageTypePlanSubmit},
			Prefetch: 1,
		})

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("submission consumer error", "error", err)
			}
		}()
	}

	c.logger.Info("coordinator started")
	return nil
}

// Stop останавливает Coordinator.
// Выполняемый план прерывается (отмена контекста).
func (c *Coordinator) Stop() {
	c.stoppedMu.Lock()
	if c.stopped {
		c.stoppedMu.Unlock()
		return
	}
	c.stopped = true
	c.stoppedMu.Unlock()

	c.logger.Info("stopping coordinator...")

	if c.cancelFunc != nil {
		c.cancelFunc()
	}

	c.wg.Wait()

	if c.unsubscribeDocs != nil {
		c.unsubscribeDocs()
	}
	if c.unwatchState != nil {
		c.unwatchState()
	}
	if c.ownsBus {
		c.bus.Close()
	}

	c.logger.Info("coordinator stopped", "pending", c.queue.Len())
}

// IsStopped проверяет, остановлен ли Coordinator.
func (c *Coordinator) IsStopped() bool {
	c.stoppedMu.RLock()
	defer c.stoppedMu.RUnlock()
	return c.stopped
}

// Events возвращает шину уведомлений.
func (c *Coordinator) Events() *events.Bus {
	return c.bus
}

// Templates возвращает шаблон формы метаданных.
func (c *Coordinator) Templates() *metadata.Templates {
	return c.gate.Templates()
}

// Submit ставит план в очередь.
//
// Если план объявляет параметры, сначала (синхронно) вызывается диалог
// параметров. Затем открывается форма метаданных; Submit её не ждёт.
// Возвращает ID будущей submission.
//
// Ошибки: ErrCancelled (диалог отменён), ошибка параметров,
// *metadata.ReservedKeyError (при WithMetadata или без формы).
func (c *Coordinator) Submit(ctx context.Context, plan domain.Plan, opts ...SubmitOption) (uuid.UUID, error) {
	if plan == nil {
		return uuid.Nil, ErrNoPlan
	}
	if c.IsStopped() {
		return uuid.Nil, ErrStopped
	}

	o := submitOptions{
		priority: c.defaultPriority,
		form:     c.form,
		prompter: c.prompter,
	}
	for _, opt := range opts {
		opt(&o)
	}

	bound, err := c.bindParameters(ctx, plan, &o)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			c.logger.Debug("parameter dialog cancelled", "plan", plan.Name())
			c.metrics.SubmissionRecorded(SubmissionCancelled)
			return uuid.Nil, err
		}
		c.metrics.SubmissionRecorded(SubmissionRejected)
		c.Notify(events.NoticeWarning, err.Error())
		return uuid.Nil, err
	}

	candidate := metadata.Candidate{
		ID:          uuid.New(),
		Plan:        bound,
		Priority:    o.priority,
		Kwargs:      o.kwargs,
		Subscribers: o.subscribers,
	}

	if o.hasPreset || o.suppressMetadata || o.form == nil {
		if _, err := c.gate.Admit(candidate, o.preset); err != nil {
			return uuid.Nil, err
		}
		return candidate.ID, nil
	}

	c.gate.Begin(candidate, o.form)
	return candidate.ID, nil
}

// bindParameters связывает параметры плана (если он их объявляет).
func (c *Coordinator) bindParameters(ctx context.Context, plan domain.Plan, o *submitOptions) (domain.Plan, error) {
	pp, ok := domain.IsParameterized(plan)
	if !ok {
		return plan, nil
	}

	// Уже связанный план без новых значений ставится как есть
	if b, ok := plan.(interface{ Bound() bool }); ok && b.Bound() && !o.hasParameters {
		return plan, nil
	}

	values := o.parameters
	if !o.hasParameters && o.prompter != nil {
		var err error
		values, err = o.prompter.Prompt(ctx, pp.Name(), pp.Parameters())
		if err != nil {
			return nil, err
		}
	}

	return pp.Bind(values)
}

// Abort прерывает выполняемый план.
//
// Если движок свободен, ничего не делает. Прерывание на паузе разрешено.
func (c *Coordinator) Abort(reason string) error {
	if c.engine.State() == domain.EngineIdle {
		c.logger.Debug("abort ignored: engine is idle")
		return nil
	}

	if err := c.engine.Abort(reason); err != nil {
		// План успел завершиться
		if errors.Is(err, engine.ErrInvalidState) {
			return nil
		}
		return fmt.Errorf("abort: %w", err)
	}

	c.logger.Info("abort requested", "reason", reason)
	c.bus.Publish(events.Aborted{Reason: reason})
	return nil
}

// Pause запрашивает паузу. deferred=true — пауза на ближайшем checkpoint.
//
// На паузе ничего не делает. Если движок свободен, оператор получает
// предупреждение и возвращается engine.ErrInvalidState.
func (c *Coordinator) Pause(deferred bool) error {
	if c.engine.State() == domain.EnginePaused {
		return nil
	}

	if err := c.engine.RequestPause(deferred); err != nil {
		c.Notify(events.NoticeWarning, "Nothing to pause: no plan is running")
		return fmt.Errorf("pause: %w", err)
	}

	c.logger.Info("pause requested", "deferred", deferred)
	c.announcePause(deferred)
	return nil
}

// announcePause публикует Paused один раз на паузу: повторный запрос
// и срабатывание уже объявленной отложенной паузы ничего не публикуют.
func (c *Coordinator) announcePause(deferred bool) {
	c.pauseMu.Lock()
	if c.pauseAnnounced {
		c.pauseMu.Unlock()
		return
	}
	c.pauseAnnounced = true
	c.pauseMu.Unlock()

	c.bus.Publish(events.Paused{Deferred: deferred})
}

// onEngineState получает смену состояния от движка. Пауза, которую
// запросил сам план, объявляется здесь.
func (c *Coordinator) onEngineState(state domain.EngineState) {
	if state == domain.EnginePaused {
		c.logger.Info("engine paused")
		c.announcePause(false)
		return
	}

	c.pauseMu.Lock()
	c.pauseAnnounced = false
	c.pauseMu.Unlock()
}

// Resume продолжает выполнение после паузы.
//
// План продолжается в горутине worker; Resume не ждёт его и публикует
// Resumed сразу.
func (c *Coordinator) Resume() error {
	if c.engine.State() != domain.EnginePaused {
		return nil
	}

	if err := c.engine.Resume(); err != nil {
		// План успел завершиться или продолжен другим запросом
		if errors.Is(err, engine.ErrInvalidState) {
			return nil
		}
		return fmt.Errorf("resume: %w", err)
	}

	c.logger.Info("resume requested")
	c.bus.Publish(events.Resumed{})
	return nil
}

// StopRun завершает выполняемый план штатно (exit_status=success).
func (c *Coordinator) StopRun(reason string) error {
	if c.engine.State() == domain.EngineIdle {
		return nil
	}

	if err := c.engine.Stop(reason); err != nil {
		if errors.Is(err, engine.ErrInvalidState) {
			return nil
		}
		return fmt.Errorf("stop run: %w", err)
	}

	c.logger.Info("stop requested", "reason", reason)
	c.Notify(events.NoticeInfo, "Run stopped")
	return nil
}

// State возвращает состояние движка.
func (c *Coordinator) State() domain.EngineState {
	return c.engine.State()
}

// IsIdle возвращает true, если движок свободен и очередь пуста.
func (c *Coordinator) IsIdle() bool {
	return c.engine.State() == domain.EngineIdle && c.queue.UnfinishedTasks() == 0
}

// Pending возвращает ожидающие submissions в порядке выполнения.
func (c *Coordinator) Pending() []domain.PrioritizedSubmission {
	return c.queue.Pending()
}

// Status — снимок состояния координатора.
type Status struct {
	State      domain.EngineState `json:"state"`
	Pending    int                `json:"pending"`
	Unfinished int                `json:"unfinished"`
	Idle       bool               `json:"idle"`
}

// Status возвращает снимок состояния.
func (c *Coordinator) Status() Status {
	state := c.engine.State()
	unfinished := c.queue.UnfinishedTasks()
	return Status{
		State:      state,
		Pending:    c.queue.Len(),
		Unfinished: unfinished,
		Idle:       state == domain.EngineIdle && unfinished == 0,
	}
}

// Notify публикует сообщение для оператора и пишет его в лог.
func (c *Coordinator) Notify(level events.NoticeLevel, text string) {
	switch level {
	case events.NoticeError:
		c.logger.Error(text)
	case events.NoticeWarning:
		c.logger.Warn(text)
	default:
		c.logger.Info(text)
	}
	c.bus.Publish(events.Notice{Level: level, Text: text})
}

// forwardDocument пересылает документ движка в Bus.
func (c *Coordinator) forwardDocument(doc domain.LifecycleDocument) {
	c.logger.Debug("document", "name", doc.Name, "uid", doc.UID())
	c.metrics.DocumentEmitted(doc.Name)
	c.bus.Publish(events.DocumentYielded{Name: doc.Name, Body: doc.Body})
}

// Обработчики Gate.

func (c *Coordinator) onEnqueue(domain.PrioritizedSubmission) {
	c.metrics.SubmissionRecorded(SubmissionAccepted)
	c.metrics.QueueDepth(c.queue.Len())
}

func (c *Coordinator) onReject(_ metadata.Candidate, err error) {
	c.metrics.SubmissionRecorded(SubmissionRejected)
	c.Notify(events.NoticeWarning, err.Error())
}

func (c *Coordinator) onCancel(metadata.Candidate) {
	c.metrics.SubmissionRecorded(SubmissionCancelled)
}
