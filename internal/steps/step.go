package steps

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shaiso/Acquire/internal/devices"
	"github.com/shaiso/Acquire/internal/domain"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — тип команды не найден в реестре.
	ErrStepNotFound = errors.New("step type not found")

	// ErrInvalidConfig — невалидные аргументы команды.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepTimeout — шаг превысил таймаут.
	ErrStepTimeout = errors.New("step execution timeout")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")

	// ErrPlanRaised — план сам сообщил об ошибке (команда raise).
	ErrPlanRaised = errors.New("plan raised")
)

// Runtime — состояние текущего run, которое движок отдаёт шагам.
//
// Реализуется движком. Шаги не создают документы сами, они вызывают
// Runtime, а движок испускает start/descriptor/event/stop.
type Runtime interface {
	// OpenRun открывает run и испускает start документ. Возвращает uid.
	OpenRun(ctx context.Context, md map[string]any) (string, error)

	// CloseRun закрывает run и испускает stop документ.
	CloseRun(ctx context.Context, exit domain.ExitStatus, reason string) error

	// Device возвращает устройство по имени.
	Device(name string) (devices.Device, error)

	// Emit испускает событие в поток stream: descriptor (при первом
	// обращении к потоку), resource/datum для assets и event.
	Emit(ctx context.Context, stream string, readings map[string]devices.Reading,
		keys map[string]devices.DataKey, assets []devices.Asset) error

	// Checkpoint отмечает точку, в которой может сработать отложенная пауза.
	Checkpoint(ctx context.Context) error

	// RequestPause запрашивает паузу у движка.
	RequestPause(deferred bool) error
}

// Step — исполнитель одного типа команд.
//
// Каждый тип команды (move, trigger, read, sleep, ...) реализует этот интерфейс.
type Step interface {
	// Type возвращает тип команды.
	Type() domain.CommandType

	// Execute выполняет команду и возвращает результат.
	// Шаг должен проверять ctx.Done() для graceful shutdown.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request — входные данные для выполнения шага.
type Request struct {
	// Command — выполняемая команда.
	Command domain.Command

	// Config — аргументы команды.
	Config map[string]any

	// Runtime — состояние run.
	Runtime Runtime

	// Timeout — таймаут выполнения шага.
	// Если 0, таймаут не ограничен.
	Timeout time.Duration
}

// Response — результат выполнения шага.
type Response struct {
	// Outputs — выходные данные шага (позиция, прочитанные значения).
	Outputs map[string]any
}

// NewRequest создаёт новый Request.
func NewRequest(cmd domain.Command, rt Runtime, timeout time.Duration) *Request {
	config := cmd.Args
	if config == nil {
		config = make(map[string]any)
	}
	return &Request{
		Command: cmd,
		Config:  config,
		Runtime: rt,
		Timeout: timeout,
	}
}

// NewResponse создаёт новый Response с outputs.
func NewResponse(outputs map[string]any) *Response {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	return &Response{
		Outputs: outputs,
	}
}

// EmptyResponse возвращает пустой Response.
func EmptyResponse() *Response {
	return &Response{
		Outputs: make(map[string]any),
	}
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из конфига.
func GetConfigInt(config map[string]any, key string) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case string:
			i, _ := strconv.Atoi(n)
			return i
		}
	}
	return 0
}

// GetConfigFloat извлекает число с плавающей точкой из конфига.
// Строки разбираются (значения из шаблонов приходят строками).
func GetConfigFloat(config map[string]any, key string) (float64, error) {
	v, ok := config[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidConfig, key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %s: unexpected type %T", ErrInvalidConfig, key, v)
}

// GetConfigBool извлекает булево значение из конфига.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
	}
	return defaultVal
}

// GetConfigMap извлекает map из конфига.
func GetConfigMap(config map[string]any, key string) map[string]any {
	if v, ok := config[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetConfigStrings извлекает список строк из конфига.
func GetConfigStrings(config map[string]any, key string) []string {
	switch v := config[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}
