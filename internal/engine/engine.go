package engine

import (
	"context"

	"github.com/shaiso/Acquire/internal/domain"
)

// Engine — адаптер движка планов.
//
// Движок выполняет один план за раз. Run блокируется до завершения плана;
// остальные методы можно вызывать из любой горутины.
type Engine interface {
	// Run выполняет план до конца. Документы получают подписчики движка
	// и subs (только для этого run).
	//
	// Возвращает nil при успехе и при Stop, ErrRunAborted при Abort
	// или отмене ctx, ErrEngineBusy при повторном вызове во время
	// выполнения, иначе ошибку плана.
	Run(ctx context.Context, plan domain.Plan, md domain.RunMetadata, subs ...domain.DocumentCallback) error

	// State возвращает текущее состояние движка.
	State() domain.EngineState

	// Abort прерывает план: stop документ с exit_status=abort.
	Abort(reason string) error

	// Stop завершает план штатно: stop документ с exit_status=success.
	Stop(reason string) error

	// RequestPause запрашивает паузу. deferred=true — пауза на ближайшем
	// checkpoint, иначе на границе следующей команды.
	RequestPause(deferred bool) error

	// Resume продолжает выполнение после паузы.
	Resume() error

	// Subscribe подписывает получателя на документы всех run.
	Subscribe(cb domain.DocumentCallback) (unsubscribe func())

	// WatchState подписывает fn на смену состояния движка, включая паузу,
	// запрошенную самим планом. fn вызывается синхронно из горутины,
	// сменившей состояние, и не должна блокироваться.
	WatchState(fn func(domain.EngineState)) (unwatch func())
}
