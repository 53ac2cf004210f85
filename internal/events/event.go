package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Acquire/internal/domain"
)

// Kind — тип уведомления.
type Kind string

// Типы уведомлений.
const (
	KindStarted   Kind = "started"
	KindFinished  Kind = "finished"
	KindPaused    Kind = "paused"
	KindResumed   Kind = "resumed"
	KindAborted   Kind = "aborted"
	KindReady     Kind = "ready"
	KindDocument  Kind = "document"
	KindException Kind = "exception"
	KindNotice    Kind = "notice"
)

// Event — уведомление координатора.
type Event interface {
	Kind() Kind
}

// Outcome — результат выполнения submission.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeAborted   Outcome = "aborted"
	OutcomeFailed    Outcome = "failed"
)

// Started — worker извлёк submission и передаёт план движку.
type Started struct {
	SubmissionID uuid.UUID
	Plan         string
	Priority     int
	At           time.Time
}

// Finished — выполнение submission завершено (в любом исходе).
type Finished struct {
	SubmissionID uuid.UUID
	Plan         string
	Outcome      Outcome
	Duration     time.Duration
}

// Paused — запрошена пауза.
type Paused struct {
	Deferred bool
}

// Resumed — запрошено продолжение.
type Resumed struct{}

// Aborted — запрошено прерывание.
type Aborted struct {
	Reason string
}

// Ready — движок свободен и очередь пуста.
type Ready struct{}

// DocumentYielded — движок испустил lifecycle документ.
type DocumentYielded struct {
	Name domain.DocumentName
	Body map[string]any
}

// Document возвращает документ события.
func (e DocumentYielded) Document() domain.LifecycleDocument {
	return domain.LifecycleDocument{Name: e.Name, Body: e.Body}
}

// ExceptionRaised — план завершился ошибкой.
type ExceptionRaised struct {
	SubmissionID uuid.UUID
	Plan         string
	Err          error
}

// NoticeLevel — уровень сообщения для оператора.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice — сообщение, которое нужно показать оператору.
type Notice struct {
	Level NoticeLevel
	Text  string
}

func (Started) Kind() Kind         { return KindStarted }
func (Finished) Kind() Kind        { return KindFinished }
func (Paused) Kind() Kind          { return KindPaused }
func (Resumed) Kind() Kind         { return KindResumed }
func (Aborted) Kind() Kind         { return KindAborted }
func (Ready) Kind() Kind           { return KindReady }
func (DocumentYielded) Kind() Kind { return KindDocument }
func (ExceptionRaised) Kind() Kind { return KindException }
func (Notice) Kind() Kind          { return KindNotice }
