package repo

import "errors"

// Общие ошибки хранилища документов.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем состоянии
	// (например, повторное закрытие run).
	ErrInvalidState = errors.New("invalid state")
)
