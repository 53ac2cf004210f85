package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Acquire/internal/domain"
)

const (
	// Ключи аргументов sleep.
	configDurationSec = "duration_sec"
	configDurationMs  = "duration_ms"
)

// SleepStep — шаг задержки.
//
// Приостанавливает выполнение плана на указанное время.
// Поддерживает graceful shutdown через context cancellation.
//
// Аргументы:
//
//	{"duration_sec": 0.5}   // или
//	{"duration_ms": 500}
type SleepStep struct{}

// NewSleepStep создаёт новый SleepStep.
func NewSleepStep() *SleepStep {
	return &SleepStep{}
}

// Type возвращает тип команды.
func (s *SleepStep) Type() domain.CommandType {
	return domain.CommandSleep
}

// Execute выполняет задержку.
func (s *SleepStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	duration, err := s.parseDuration(req.Config)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	case <-timer.C:
		return NewResponse(map[string]any{
			"duration_ms": duration.Milliseconds(),
		}), nil
	}
}

// parseDuration извлекает длительность из аргументов.
func (s *SleepStep) parseDuration(config map[string]any) (time.Duration, error) {
	if _, ok := config[configDurationSec]; ok {
		sec, err := GetConfigFloat(config, configDurationSec)
		if err != nil {
			return 0, err
		}
		if sec < 0 {
			return 0, fmt.Errorf("%w: %s: negative duration", ErrInvalidConfig, domain.CommandSleep)
		}
		return time.Duration(sec * float64(time.Second)), nil
	}

	if _, ok := config[configDurationMs]; ok {
		ms := GetConfigInt(config, configDurationMs)
		if ms < 0 {
			return 0, fmt.Errorf("%w: %s: negative duration", ErrInvalidConfig, domain.CommandSleep)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	return 0, fmt.Errorf("%w: %s: duration_sec or duration_ms required",
		ErrInvalidConfig, domain.CommandSleep)
}
