package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrReservedKey — метаданные содержат зарезервированный ключ.
var ErrReservedKey = errors.New("reserved metadata key")

// ReservedKeyError — метаданные пересекаются с зарезервированными ключами.
//
// Текст ошибки предназначен для оператора.
type ReservedKeyError struct {
	Keys []string
}

// Error реализует интерфейс error.
func (e *ReservedKeyError) Error() string {
	if len(e.Keys) == 1 {
		return fmt.Sprintf("The field name %q is reserved and cannot be used.", e.Keys[0])
	}
	quoted := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		quoted[i] = fmt.Sprintf("%q", k)
	}
	return fmt.Sprintf("The field names %s are reserved and cannot be used.", strings.Join(quoted, ", "))
}

// Unwrap возвращает ErrReservedKey.
func (e *ReservedKeyError) Unwrap() error {
	return ErrReservedKey
}
