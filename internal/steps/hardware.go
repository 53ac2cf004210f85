package steps

import (
	"context"
	"fmt"
	"maps"

	"github.com/shaiso/Acquire/internal/devices"
	"github.com/shaiso/Acquire/internal/domain"
)

// Имя потока событий по умолчанию.
const DefaultStream = "primary"

// OpenRunStep — открывает run.
//
// Аргументы: {"md": {...}} — метаданные плана для start документа.
type OpenRunStep struct{}

// NewOpenRunStep создаёт новый OpenRunStep.
func NewOpenRunStep() *OpenRunStep { return &OpenRunStep{} }

// Type возвращает тип команды.
func (s *OpenRunStep) Type() domain.CommandType { return domain.CommandOpenRun }

// Execute открывает run.
func (s *OpenRunStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	uid, err := req.Runtime.OpenRun(ctx, GetConfigMap(req.Config, "md"))
	if err != nil {
		return nil, err
	}
	return NewResponse(map[string]any{"uid": uid}), nil
}

// CloseRunStep — закрывает run.
//
// Аргументы: {"exit_status": "success", "reason": ""}.
type CloseRunStep struct{}

// NewCloseRunStep создаёт новый CloseRunStep.
func NewCloseRunStep() *CloseRunStep { return &CloseRunStep{} }

// Type возвращает тип команды.
func (s *CloseRunStep) Type() domain.CommandType { return domain.CommandCloseRun }

// Execute закрывает run.
func (s *CloseRunStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	exit := domain.ExitStatus(GetConfigString(req.Config, "exit_status"))
	if exit == "" {
		exit = domain.ExitSuccess
	}
	if err := req.Runtime.CloseRun(ctx, exit, GetConfigString(req.Config, "reason")); err != nil {
		return nil, err
	}
	return EmptyResponse(), nil
}

// MoveStep — перемещает устройство в позицию.
//
// Аргументы: {"position": 1.5}.
type MoveStep struct{}

// NewMoveStep создаёт новый MoveStep.
func NewMoveStep() *MoveStep { return &MoveStep{} }

// Type возвращает тип команды.
func (s *MoveStep) Type() domain.CommandType { return domain.CommandMove }

// Execute перемещает устройство.
func (s *MoveStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	position, err := GetConfigFloat(req.Config, "position")
	if err != nil {
		return nil, err
	}

	dev, err := req.Runtime.Device(req.Command.Device)
	if err != nil {
		return nil, err
	}
	movable, ok := dev.(devices.Movable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", devices.ErrNotMovable, dev.Name())
	}

	if err := movable.Set(ctx, position); err != nil {
		return nil, fmt.Errorf("move %s: %w", dev.Name(), err)
	}
	return NewResponse(map[string]any{"position": movable.Position()}), nil
}

// TriggerStep — запускает измерение на устройствах.
//
// Устройство задаётся в Command.Device или списком в аргументе "devices".
type TriggerStep struct{}

// NewTriggerStep создаёт новый TriggerStep.
func NewTriggerStep() *TriggerStep { return &TriggerStep{} }

// Type возвращает тип команды.
func (s *TriggerStep) Type() domain.CommandType { return domain.CommandTrigger }

// Execute запускает измерение.
func (s *TriggerStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	names := targetDevices(req)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s: device required", ErrInvalidConfig, domain.CommandTrigger)
	}

	for _, name := range names {
		dev, err := req.Runtime.Device(name)
		if err != nil {
			return nil, err
		}
		trig, ok := dev.(devices.Triggerable)
		if !ok {
			return nil, fmt.Errorf("%w: %s", devices.ErrNotTriggerable, name)
		}
		if err := trig.Trigger(ctx); err != nil {
			return nil, fmt.Errorf("trigger %s: %w", name, err)
		}
	}
	return EmptyResponse(), nil
}

// ReadStep — читает устройства и испускает событие.
//
// Аргументы: {"devices": ["det1", "motor1"], "stream": "primary"}.
// Устройства, пишущие во внешние файлы, дополнительно отдают resource/datum.
type ReadStep struct{}

// NewReadStep создаёт новый ReadStep.
func NewReadStep() *ReadStep { return &ReadStep{} }

// Type возвращает тип команды.
func (s *ReadStep) Type() domain.CommandType { return domain.CommandRead }

// Execute читает устройства.
func (s *ReadStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	names := targetDevices(req)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s: device required", ErrInvalidConfig, domain.CommandRead)
	}

	stream := GetConfigString(req.Config, "stream")
	if stream == "" {
		stream = DefaultStream
	}

	readings := make(map[string]devices.Reading)
	keys := make(map[string]devices.DataKey)
	var assets []devices.Asset

	for _, name := range names {
		dev, err := req.Runtime.Device(name)
		if err != nil {
			return nil, err
		}
		readable, ok := dev.(devices.Readable)
		if !ok {
			return nil, fmt.Errorf("%w: %s", devices.ErrNotReadable, name)
		}

		values, err := readable.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		maps.Copy(readings, values)
		maps.Copy(keys, readable.Describe())

		if w, ok := dev.(devices.AssetWriter); ok {
			assets = append(assets, w.CollectAssets()...)
		}
	}

	if err := req.Runtime.Emit(ctx, stream, readings, keys, assets); err != nil {
		return nil, err
	}

	outputs := make(map[string]any, len(readings))
	for key, r := range readings {
		outputs[key] = r.Value
	}
	return NewResponse(outputs), nil
}

// CheckpointStep — точка, в которой срабатывает отложенная пауза.
type CheckpointStep struct{}

// NewCheckpointStep создаёт новый CheckpointStep.
func NewCheckpointStep() *CheckpointStep { return &CheckpointStep{} }

// Type возвращает тип команды.
func (s *CheckpointStep) Type() domain.CommandType { return domain.CommandCheckpoint }

// Execute отмечает checkpoint.
func (s *CheckpointStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Runtime.Checkpoint(ctx); err != nil {
		return nil, err
	}
	return EmptyResponse(), nil
}

// PauseStep — план сам запрашивает паузу (отложенную до checkpoint,
// если аргумент "defer" не равен false).
type PauseStep struct{}

// NewPauseStep создаёт новый PauseStep.
func NewPauseStep() *PauseStep { return &PauseStep{} }

// Type возвращает тип команды.
func (s *PauseStep) Type() domain.CommandType { return domain.CommandPause }

// Execute запрашивает паузу.
func (s *PauseStep) Execute(_ context.Context, req *Request) (*Response, error) {
	if err := req.Runtime.RequestPause(GetConfigBool(req.Config, "defer", true)); err != nil {
		return nil, err
	}
	return EmptyResponse(), nil
}

// RaiseStep — завершает план ошибкой.
//
// Аргументы: {"message": "..."}.
type RaiseStep struct{}

// NewRaiseStep создаёт новый RaiseStep.
func NewRaiseStep() *RaiseStep { return &RaiseStep{} }

// Type возвращает тип команды.
func (s *RaiseStep) Type() domain.CommandType { return domain.CommandRaise }

// Execute всегда возвращает ошибку.
func (s *RaiseStep) Execute(_ context.Context, req *Request) (*Response, error) {
	msg := GetConfigString(req.Config, "message")
	if msg == "" {
		return nil, ErrPlanRaised
	}
	return nil, fmt.Errorf("%w: %s", ErrPlanRaised, msg)
}

// targetDevices возвращает имена устройств команды.
func targetDevices(req *Request) []string {
	names := GetConfigStrings(req.Config, "devices")
	if req.Command.Device != "" {
		names = append([]string{req.Command.Device}, names...)
	}
	return names
}
