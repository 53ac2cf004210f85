// Package enginetest содержит управляемую реализацию engine.Engine для тестов.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/engine"
	"github.com/shaiso/Acquire/internal/steps"
)

// CommandBlock — команда, которая ждёт Release (или abort/stop).
const CommandBlock domain.CommandType = "block"

// Call — один вызов Run.
type Call struct {
	Plan     string
	Metadata domain.RunMetadata
}

// Engine — фейковый движок.
//
// Интерпретирует команды минимально: open_run/close_run испускают
// start/stop документы, raise возвращает ошибку, checkpoint учитывает
// отложенную паузу, block ждёт Release. Остальные команды пропускаются.
type Engine struct {
	mu            sync.Mutex
	state         domain.EngineState
	calls         []Call
	active        int
	maxActive     int
	pauseDeferred bool
	resumeCh      chan struct{}
	release       chan struct{}
	interrupt     string // "", "abort", "stop"
	reason        string
	cancel        context.CancelFunc
	started       chan string

	subsMu   sync.Mutex
	subs     []domain.DocumentCallback
	watchers []func(domain.EngineState)
}

var _ engine.Engine = (*Engine)(nil)

// New создаёт фейковый движок.
func New() *Engine {
	return &Engine{
		state:   domain.EngineIdle,
		release: make(chan struct{}),
		started: make(chan string, 100),
	}
}

// Started возвращает канал имён планов, которые начали выполняться.
func (e *Engine) Started() <-chan string {
	return e.started
}

// Release отпускает все команды block (текущие и будущие).
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.release:
	default:
		close(e.release)
	}
}

// Calls возвращает вызовы Run.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// MaxConcurrent возвращает максимальное число одновременных Run.
func (e *Engine) MaxConcurrent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxActive
}

// SetState задаёт состояние движка (для проверки управляющих команд).
func (e *Engine) SetState(state domain.EngineState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	if state == domain.EnginePaused && e.resumeCh == nil {
		e.resumeCh = make(chan struct{})
	}
}

// Run выполняет план.
func (e *Engine) Run(ctx context.Context, plan domain.Plan, md domain.RunMetadata, subs ...domain.DocumentCallback) error {
	e.mu.Lock()
	e.active++
	if e.active > e.maxActive {
		e.maxActive = e.active
	}
	if e.state != domain.EngineIdle {
		e.active--
		e.mu.Unlock()
		return engine.ErrEngineBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.state = domain.EngineRunning
	e.interrupt = ""
	e.reason = ""
	e.pauseDeferred = false
	e.cancel = cancel
	e.calls = append(e.calls, Call{Plan: plan.Name(), Metadata: md.Clone()})
	release := e.release
	e.mu.Unlock()

	e.notifyState(domain.EngineRunning)
	e.started <- plan.Name()

	defer func() {
		cancel()
		e.mu.Lock()
		e.active--
		e.state = domain.EngineIdle
		e.resumeCh = nil
		e.cancel = nil
		e.mu.Unlock()
		e.notifyState(domain.EngineIdle)
	}()

	var runUID string
	err := func() error {
		for cmd := range plan.Commands() {
			if err := e.boundary(runCtx, false); err != nil {
				return err
			}
			switch cmd.Type {
			case domain.CommandOpenRun:
				runUID = uuid.NewString()
				body := map[string]any(md.Clone())
				body["uid"] = runUID
				body["plan_type"] = plan.Name()
				e.emit(domain.NewDocument(domain.DocumentStart, body), subs)
			case domain.CommandCloseRun:
				e.emit(e.stopDoc(runUID, domain.ExitSuccess, ""), subs)
				runUID = ""
			case domain.CommandRaise:
				return fmt.Errorf("%w: %s", steps.ErrPlanRaised, steps.GetConfigString(cmd.Args, "message"))
			case domain.CommandCheckpoint:
				if err := e.boundary(runCtx, true); err != nil {
					return err
				}
			case domain.CommandPause:
				_ = e.RequestPause(steps.GetConfigBool(cmd.Args, "defer", true))
			case CommandBlock:
				select {
				case <-release:
				case <-runCtx.Done():
					return runCtx.Err()
				}
			}
		}
		return nil
	}()

	e.mu.Lock()
	interrupt, reason := e.interrupt, e.reason
	e.mu.Unlock()

	exit := domain.ExitSuccess
	switch {
	case interrupt == "stop":
		err = nil
	case interrupt == "abort" || ctx.Err() != nil:
		exit = domain.ExitAbort
		err = fmt.Errorf("%w: %s", engine.ErrRunAborted, reason)
	case err != nil:
		exit = domain.ExitFail
		reason = err.Error()
	}

	if runUID != "" {
		e.emit(e.stopDoc(runUID, exit, reason), subs)
	}
	return err
}

func (e *Engine) stopDoc(runUID string, exit domain.ExitStatus, reason string) domain.LifecycleDocument {
	return domain.NewDocument(domain.DocumentStop, map[string]any{
		"uid":         uuid.NewString(),
		"run_start":   runUID,
		"exit_status": string(exit),
		"reason":      reason,
	})
}

func (e *Engine) boundary(ctx context.Context, checkpoint bool) error {
	e.mu.Lock()
	if checkpoint && e.pauseDeferred {
		e.pauseDeferred = false
		e.state = domain.EnginePaused
		e.resumeCh = make(chan struct{})
		e.mu.Unlock()
		e.notifyState(domain.EnginePaused)
		e.mu.Lock()
	}
	for e.state == domain.EnginePaused && e.interrupt == "" && ctx.Err() == nil {
		ch := e.resumeCh
		e.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
		}
		e.mu.Lock()
	}
	interrupted := e.interrupt != ""
	e.mu.Unlock()

	if interrupted {
		return errors.New("interrupted")
	}
	return ctx.Err()
}

func (e *Engine) emit(doc domain.LifecycleDocument, subs []domain.DocumentCallback) {
	e.subsMu.Lock()
	targets := append([]domain.DocumentCallback(nil), e.subs...)
	e.subsMu.Unlock()

	for _, cb := range append(targets, subs...) {
		cb(doc)
	}
}

// State возвращает состояние движка.
func (e *Engine) State() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Abort прерывает план.
func (e *Engine) Abort(reason string) error {
	return e.stopRun("abort", reason)
}

// Stop завершает план штатно.
func (e *Engine) Stop(reason string) error {
	return e.stopRun("stop", reason)
}

func (e *Engine) stopRun(kind, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == domain.EngineIdle {
		return engine.ErrInvalidState
	}
	if e.interrupt == "" {
		e.interrupt = kind
		e.reason = reason
	}
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

// RequestPause запрашивает паузу.
func (e *Engine) RequestPause(deferred bool) error {
	e.mu.Lock()
	switch e.state {
	case domain.EngineIdle:
		e.mu.Unlock()
		return engine.ErrInvalidState
	case domain.EnginePaused:
		e.mu.Unlock()
		return nil
	}
	if deferred {
		e.pauseDeferred = true
		e.mu.Unlock()
		return nil
	}
	e.state = domain.EnginePaused
	e.resumeCh = make(chan struct{})
	e.mu.Unlock()

	e.notifyState(domain.EnginePaused)
	return nil
}

// Resume продолжает выполнение.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.state != domain.EnginePaused {
		e.mu.Unlock()
		return engine.ErrInvalidState
	}
	e.state = domain.EngineRunning
	if e.resumeCh != nil {
		close(e.resumeCh)
		e.resumeCh = nil
	}
	e.mu.Unlock()

	e.notifyState(domain.EngineRunning)
	return nil
}

// Subscribe подписывает получателя на документы всех run.
func (e *Engine) Subscribe(cb domain.DocumentCallback) func() {
	e.subsMu.Lock()
	e.subs = append(e.subs, cb)
	idx := len(e.subs) - 1
	e.subsMu.Unlock()

	return func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		if idx < len(e.subs) {
			e.subs[idx] = func(domain.LifecycleDocument) {}
		}
	}
}

// WatchState подписывает fn на смену состояния.
func (e *Engine) WatchState(fn func(domain.EngineState)) func() {
	e.subsMu.Lock()
	e.watchers = append(e.watchers, fn)
	idx := len(e.watchers) - 1
	e.subsMu.Unlock()

	return func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		e.watchers[idx] = func(domain.EngineState) {}
	}
}

func (e *Engine) notifyState(state domain.EngineState) {
	e.subsMu.Lock()
	targets := append(([]func(domain.EngineState))(nil), e.watchers...)
	e.subsMu.Unlock()

	for _, fn := range targets {
		fn(state)
	}
}

// Plan — план из команд для фейкового движка.
func Plan(name string, cmds ...domain.CommandType) *domain.StaticPlan {
	commands := make([]domain.Command, len(cmds))
	for i, t := range cmds {
		commands[i] = domain.Command{Type: t}
	}
	return domain.NewPlan(name, commands...)
}

// RaisePlan — план, который открывает run и падает с сообщением.
func RaisePlan(name, message string) *domain.StaticPlan {
	return domain.NewPlan(name,
		domain.Command{Type: domain.CommandOpenRun},
		domain.Command{Type: domain.CommandRaise, Args: map[string]any{"message": message}},
	)
}
