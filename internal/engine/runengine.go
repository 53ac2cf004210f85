package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Acquire/internal/devices"
	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/steps"
)

// Config — конфигурация RunEngine.
type Config struct {
	// Devices — устройства стенда.
	Devices *devices.Registry

	// Steps — исполнители команд.
	Steps *steps.Registry

	// DefaultMetadata — метаданные, добавляемые в каждый start документ
	// (ниже метаданных плана и вызова).
	DefaultMetadata domain.RunMetadata

	// StepTimeout — таймаут одной команды. 0 — без ограничения.
	StepTimeout time.Duration

	// Logger — логгер.
	Logger *slog.Logger
}

// interruptKind — причина прерывания плана.
type interruptKind int

const (
	interruptAbort interruptKind = iota + 1
	interruptStop
)

type interruption struct {
	kind   interruptKind
	reason string
}

// RunEngine — встроенный движок планов.
//
// Выполняет команды плана по одной через steps.Registry и испускает
// lifecycle документы. Реализует Engine.
type RunEngine struct {
	devices     *devices.Registry
	steps       *steps.Registry
	defaultMD   domain.RunMetadata
	stepTimeout time.Duration
	logger      *slog.Logger

	mu            sync.Mutex
	state         domain.EngineState
	scanID        int
	pauseDeferred bool
	resumeCh      chan struct{}
	interrupt     *interruption
	cancelRun     context.CancelFunc

	subsMu   sync.RWMutex
	subs     map[uint64]domain.DocumentCallback
	watchers map[uint64]func(domain.EngineState)
	nextSub  uint64
}

// New создаёт новый RunEngine.
func New(cfg Config) *RunEngine {
	if cfg.Devices == nil {
		cfg.Devices = devices.DefaultRegistry()
	}
	if cfg.Steps == nil {
		cfg.Steps = steps.DefaultRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RunEngine{
		devices:     cfg.Devices,
		steps:       cfg.Steps,
		defaultMD:   cfg.DefaultMetadata.Clone(),
		stepTimeout: cfg.StepTimeout,
		logger:      cfg.Logger,
		state:       domain.EngineIdle,
		subs:        make(map[uint64]domain.DocumentCallback),
		watchers:    make(map[uint64]func(domain.EngineState)),
	}
}

// Devices возвращает реестр устройств движка.
func (e *RunEngine) Devices() *devices.Registry {
	return e.devices
}

// State возвращает текущее состояние движка.
func (e *RunEngine) State() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Subscribe подписывает получателя на документы всех run.
func (e *RunEngine) Subscribe(cb domain.DocumentCallback) func() {
	e.subsMu.Lock()
	e.nextSub++
	id := e.nextSub
	e.subs[id] = cb
	e.subsMu.Unlock()

	return func() {
		e.subsMu.Lock()
		delete(e.subs, id)
		e.subsMu.Unlock()
	}
}

// WatchState подписывает fn на смену состояния движка.
func (e *RunEngine) WatchState(fn func(domain.EngineState)) func() {
	e.subsMu.Lock()
	e.nextSub++
	id := e.nextSub
	e.watchers[id] = fn
	e.subsMu.Unlock()

	return func() {
		e.subsMu.Lock()
		delete(e.watchers, id)
		e.subsMu.Unlock()
	}
}

// notifyState вызывается без e.mu.
func (e *RunEngine) notifyState(state domain.EngineState) {
	e.subsMu.RLock()
	targets := make([]func(domain.EngineState), 0, len(e.watchers))
	for _, fn := range e.watchers {
		targets = append(targets, fn)
	}
	e.subsMu.RUnlock()

	for _, fn := range targets {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("state watcher panicked", "state", state, "panic", r)
				}
			}()
			fn(state)
		}()
	}
}

// Run выполняет план до конца.
func (e *RunEngine) Run(ctx context.Context, plan domain.Plan, md domain.RunMetadata, subs ...domain.DocumentCallback) error {
	e.mu.Lock()
	if e.state != domain.EngineIdle {
		e.mu.Unlock()
		return ErrEngineBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.state = domain.EngineRunning
	e.pauseDeferred = false
	e.resumeCh = nil
	e.interrupt = nil
	e.cancelRun = cancel
	e.mu.Unlock()
	e.notifyState(domain.EngineRunning)

	defer func() {
		cancel()
		e.mu.Lock()
		e.state = domain.EngineIdle
		e.pauseDeferred = false
		e.resumeCh = nil
		e.cancelRun = nil
		e.mu.Unlock()
		e.notifyState(domain.EngineIdle)
	}()

	run := &runState{
		engine:  e,
		plan:    plan,
		md:      md.Clone(),
		subs:    subs,
		streams: make(map[string]string),
		seq:     make(map[string]int),
	}

	e.logger.Info("plan started", "plan", plan.Name())

	err := e.execute(runCtx, run)

	e.mu.Lock()
	intr := e.interrupt
	e.mu.Unlock()

	exit, reason, result := classify(ctx, intr, err)

	if run.open {
		if closeErr := run.CloseRun(context.WithoutCancel(ctx), exit, reason); closeErr != nil {
			e.logger.Error("failed to close run", "plan", plan.Name(), "error", closeErr)
		}
	}

	e.logger.Info("plan finished",
		"plan", plan.Name(),
		"exit_status", exit,
		"reason", reason,
	)

	return result
}

// classify определяет итог плана: exit_status, причину и ошибку для вызывающего.
func classify(ctx context.Context, intr *interruption, err error) (domain.ExitStatus, string, error) {
	switch {
	case intr != nil && intr.kind == interruptStop:
		return domain.ExitSuccess, intr.reason, nil
	case intr != nil:
		return domain.ExitAbort, intr.reason, abortError(intr.reason)
	case ctx.Err() != nil:
		return domain.ExitAbort, ctx.Err().Error(), abortError(ctx.Err().Error())
	case err != nil:
		return domain.ExitFail, err.Error(), err
	default:
		return domain.ExitSuccess, "", nil
	}
}

func abortError(reason string) error {
	if reason == "" {
		return ErrRunAborted
	}
	return fmt.Errorf("%w: %s", ErrRunAborted, reason)
}

// execute выполняет команды плана.
func (e *RunEngine) execute(ctx context.Context, run *runState) error {
	for cmd := range run.plan.Commands() {
		if err := e.boundary(ctx, false); err != nil {
			return err
		}

		step, err := e.steps.Get(cmd.Type)
		if err != nil {
			return err
		}

		stepCtx := ctx
		var cancel context.CancelFunc
		if e.stepTimeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		}

		e.logger.Debug("executing command", "plan", run.plan.Name(), "type", cmd.Type, "device", cmd.Device)
		_, err = step.Execute(stepCtx, steps.NewRequest(cmd, run, e.stepTimeout))
		if cancel != nil {
			cancel()
		}

		if err != nil {
			if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("%w: %s: %v", steps.ErrStepTimeout, cmd.Type, err)
			}
			return err
		}
	}

	return e.boundary(ctx, false)
}

// boundary — точка между командами (или checkpoint). Здесь срабатывает
// пауза: выполнение ждёт Resume, Abort, Stop или отмены контекста.
func (e *RunEngine) boundary(ctx context.Context, checkpoint bool) error {
	e.mu.Lock()
	if checkpoint && e.pauseDeferred {
		e.pauseDeferred = false
		e.enterPauseLocked()
		e.mu.Unlock()
		e.notifyState(domain.EnginePaused)
		e.mu.Lock()
	}

	logged := false
	for e.state == domain.EnginePaused && e.interrupt == nil && ctx.Err() == nil {
		resume := e.resumeCh
		e.mu.Unlock()

		if !logged {
			e.logger.Info("plan paused")
			logged = true
		}

		select {
		case <-resume:
		case <-ctx.Done():
		}
		e.mu.Lock()
	}
	intr := e.interrupt
	e.mu.Unlock()

	if intr != nil {
		return abortError(intr.reason)
	}
	return ctx.Err()
}

// enterPauseLocked переводит движок в паузу. Вызывается под e.mu.
func (e *RunEngine) enterPauseLocked() {
	e.state = domain.EnginePaused
	e.resumeCh = make(chan struct{})
}

// RequestPause запрашивает паузу.
func (e *RunEngine) RequestPause(deferred bool) error {
	e.mu.Lock()
	switch e.state {
	case domain.EngineIdle:
		e.mu.Unlock()
		return fmt.Errorf("%w: cannot pause idle engine", ErrInvalidState)
	case domain.EnginePaused:
		e.mu.Unlock()
		return nil
	}

	if deferred {
		e.pauseDeferred = true
		e.mu.Unlock()
		e.logger.Info("deferred pause requested")
		return nil
	}
	e.enterPauseLocked()
	e.mu.Unlock()

	e.logger.Info("pause requested")
	e.notifyState(domain.EnginePaused)
	return nil
}

// Resume продолжает выполнение после паузы.
func (e *RunEngine) Resume() error {
	e.mu.Lock()
	if e.state != domain.EnginePaused {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: engine is %s, not paused", ErrInvalidState, state)
	}
	e.state = domain.EngineRunning
	close(e.resumeCh)
	e.resumeCh = nil
	e.mu.Unlock()

	e.logger.Info("plan resumed")
	e.notifyState(domain.EngineRunning)
	return nil
}

// Abort прерывает план.
func (e *RunEngine) Abort(reason string) error {
	return e.interruptRun(interruptAbort, reason)
}

// Stop завершает план штатно.
func (e *RunEngine) Stop(reason string) error {
	return e.interruptRun(interruptStop, reason)
}

func (e *RunEngine) interruptRun(kind interruptKind, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == domain.EngineIdle {
		return fmt.Errorf("%w: no plan is running", ErrInvalidState)
	}
	if e.interrupt == nil {
		e.interrupt = &interruption{kind: kind, reason: reason}
	}
	if e.cancelRun != nil {
		e.cancelRun()
	}
	return nil
}

// emit рассылает документ подписчикам движка и подписчикам run.
// Паника подписчика не прерывает план.
func (e *RunEngine) emit(run *runState, doc domain.LifecycleDocument) {
	e.subsMu.RLock()
	targets := make([]domain.DocumentCallback, 0, len(e.subs)+len(run.subs))
	for _, cb := range e.subs {
		targets = append(targets, cb)
	}
	e.subsMu.RUnlock()
	targets = append(targets, run.subs...)

	e.logger.Debug("document emitted", "name", doc.Name, "uid", doc.UID())

	for _, cb := range targets {
		e.deliver(cb, doc)
	}
}

func (e *RunEngine) deliver(cb domain.DocumentCallback, doc domain.LifecycleDocument) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("document subscriber panicked",
				"document", doc.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(doc)
}

// runState — состояние одного run. Реализует steps.Runtime.
type runState struct {
	engine *RunEngine
	plan   domain.Plan
	md     domain.RunMetadata
	subs   []domain.DocumentCallback

	open    bool
	uid     string
	streams map[string]string // stream -> descriptor uid
	seq     map[string]int    // stream -> последний seq_num
}

// OpenRun испускает start документ.
//
// Метаданные сливаются в порядке: метаданные движка, метаданные плана
// (open_run), метаданные вызова. Зарезервированные ключи заполняет движок.
func (r *runState) OpenRun(_ context.Context, md map[string]any) (string, error) {
	if r.open {
		return "", ErrRunAlreadyOpen
	}

	r.engine.mu.Lock()
	r.engine.scanID++
	scanID := r.engine.scanID
	r.engine.mu.Unlock()

	r.open = true
	r.uid = uuid.NewString()
	clear(r.streams)
	clear(r.seq)

	body := r.engine.defaultMD.Merge(md).Merge(r.md)
	body["uid"] = r.uid
	body["time"] = domain.UnixTime(time.Now())
	body["scan_id"] = scanID
	body["plan_type"] = r.plan.Name()
	if args := domain.PlanArgs(r.plan); args != nil {
		body["plan_args"] = args
	}

	r.engine.emit(r, domain.NewDocument(domain.DocumentStart, body))
	return r.uid, nil
}

// CloseRun испускает stop документ.
func (r *runState) CloseRun(_ context.Context, exit domain.ExitStatus, reason string) error {
	if !r.open {
		return ErrRunNotOpen
	}
	r.open = false

	numEvents := make(map[string]int, len(r.seq))
	maps.Copy(numEvents, r.seq)

	r.engine.emit(r, domain.NewDocument(domain.DocumentStop, map[string]any{
		"uid":         uuid.NewString(),
		"run_start":   r.uid,
		"time":        domain.UnixTime(time.Now()),
		"exit_status": string(exit),
		"reason":      reason,
		"num_events":  numEvents,
	}))
	return nil
}

// Device возвращает устройство стенда.
func (r *runState) Device(name string) (devices.Device, error) {
	return r.engine.devices.Get(name)
}

// Emit испускает descriptor (первое чтение потока), resource/datum и event.
func (r *runState) Emit(_ context.Context, stream string, readings map[string]devices.Reading,
	keys map[string]devices.DataKey, assets []devices.Asset) error {
	if !r.open {
		return ErrRunNotOpen
	}

	now := domain.UnixTime(time.Now())

	descriptor, ok := r.streams[stream]
	if !ok {
		descriptor = uuid.NewString()
		r.streams[stream] = descriptor

		dataKeys := make(map[string]any, len(keys))
		for key, dk := range keys {
			dataKeys[key] = dk
		}
		r.engine.emit(r, domain.NewDocument(domain.DocumentDescriptor, map[string]any{
			"uid":       descriptor,
			"run_start": r.uid,
			"time":      now,
			"name":      stream,
			"data_keys": dataKeys,
		}))
	}

	for _, asset := range assets {
		name := domain.DocumentName(asset.Kind)
		body := maps.Clone(asset.Body)
		if name == domain.DocumentResource {
			body["run_start"] = r.uid
		}
		r.engine.emit(r, domain.NewDocument(name, body))
	}

	r.seq[stream]++

	data := make(map[string]any, len(readings))
	timestamps := make(map[string]any, len(readings))
	for key, reading := range readings {
		data[key] = reading.Value
		timestamps[key] = domain.UnixTime(reading.Timestamp)
	}

	r.engine.emit(r, domain.NewDocument(domain.DocumentEvent, map[string]any{
		"uid":        uuid.NewString(),
		"descriptor": descriptor,
		"time":       now,
		"seq_num":    r.seq[stream],
		"data":       data,
		"timestamps": timestamps,
	}))
	return nil
}

// Checkpoint — точка срабатывания отложенной паузы.
func (r *runState) Checkpoint(ctx context.Context) error {
	return r.engine.boundary(ctx, true)
}

// RequestPause — пауза, запрошенная самим планом.
func (r *runState) RequestPause(deferred bool) error {
	return r.engine.RequestPause(deferred)
}
