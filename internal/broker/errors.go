package broker

import "errors"

var (
	// ErrNoOpenRun — документ пришёл вне run (нет start документа).
	ErrNoOpenRun = errors.New("no open run")

	// ErrNoSinks — Dispatcher создан без sinks.
	ErrNoSinks = errors.New("no sinks configured")
)
