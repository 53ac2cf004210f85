package engine

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Acquire/internal/domain"
)

// Допустимые типы шагов PlanSpec.
var validStepTypes = map[string]bool{
	string(domain.CommandOpenRun):    true,
	string(domain.CommandCloseRun):   true,
	string(domain.CommandMove):       true,
	string(domain.CommandTrigger):    true,
	string(domain.CommandRead):       true,
	string(domain.CommandCheckpoint): true,
	string(domain.CommandSleep):      true,
	string(domain.CommandPause):      true,
	string(domain.CommandRaise):      true,
	domain.StepTypeLoop:              true,
}

// ParseSpec разбирает PlanSpec из YAML (JSON тоже допустим) и валидирует его.
func ParseSpec(data []byte) (*domain.PlanSpec, error) {
	var spec domain.PlanSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse plan spec: %w", err)
	}
	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate выполняет полную валидацию PlanSpec.
//
// Проверяет:
// - Наличие имени и шагов
// - Корректность описаний параметров
// - Корректность типов шагов
// - Наличие устройства у move
// - Парность open_run/close_run (в том числе внутри loop)
// - Корректность loop (ровно одно из each/count, непустое тело)
func Validate(spec *domain.PlanSpec) error {
	if spec == nil || len(spec.Steps) == 0 {
		return ErrEmptySteps
	}
	if spec.Name == "" {
		return NewValidationError("", "name", "plan spec has empty name", ErrEmptyName)
	}

	if err := validateParameters(spec.Parameters); err != nil {
		return err
	}

	open, err := validateSteps(spec.Steps, "", false)
	if err != nil {
		return err
	}
	if open {
		return NewValidationError("", "steps", "open_run without close_run", ErrUnbalancedRun)
	}

	return nil
}

// validateParameters проверяет описания параметров.
func validateParameters(params domain.ParameterSchema) error {
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		field := fmt.Sprintf("parameters[%d]", i)
		if p.Name == "" {
			return NewValidationError("", field, "parameter has empty name", ErrInvalidParameter)
		}
		if seen[p.Name] {
			return NewValidationError("", field,
				fmt.Sprintf("duplicate parameter: %s", p.Name), ErrInvalidParameter)
		}
		seen[p.Name] = true

		if p.Type == domain.ParameterChoice && len(p.Choices) == 0 {
			return NewValidationError("", field,
				fmt.Sprintf("choice parameter %s has no choices", p.Name), ErrInvalidParameter)
		}
	}
	return nil
}

// validateSteps валидирует список шагов. open — открыт ли run на входе.
// Возвращает состояние run после списка.
func validateSteps(steps []domain.StepDef, parent string, open bool) (bool, error) {
	for i := range steps {
		step := &steps[i]
		path := stepPath(parent, i)

		if err := validateStepType(path, step.Type); err != nil {
			return open, err
		}

		switch domain.CommandType(step.Type) {
		case domain.CommandOpenRun:
			if open {
				return open, NewValidationError(path, "type", "open_run inside an open run", ErrUnbalancedRun)
			}
			open = true

		case domain.CommandCloseRun:
			if !open {
				return open, NewValidationError(path, "type", "close_run without open_run", ErrUnbalancedRun)
			}
			open = false

		case domain.CommandMove:
			if step.Device == "" {
				return open, NewValidationError(path, "device", "move requires a device", ErrMissingDevice)
			}

		case domain.CommandTrigger, domain.CommandRead:
			if step.Device == "" && step.Args["devices"] == nil {
				return open, NewValidationError(path, "device",
					fmt.Sprintf("%s requires a device or args.devices", step.Type), ErrMissingDevice)
			}
		}

		if step.IsLoop() {
			if err := validateLoop(step, path, open); err != nil {
				return open, err
			}
		}
	}

	return open, nil
}

// validateLoop валидирует loop: тело повторяется, поэтому оно должно
// оставлять run в том же состоянии, в каком его получило.
func validateLoop(step *domain.StepDef, path string, open bool) error {
	if (step.Each == "") == (step.Count == "") {
		return NewValidationError(path, "each", "loop requires exactly one of each or count", ErrInvalidLoop)
	}
	if len(step.Steps) == 0 {
		return NewValidationError(path, "steps", "loop has no steps", ErrEmptySteps)
	}

	after, err := validateSteps(step.Steps, path, open)
	if err != nil {
		return err
	}
	if after != open {
		return NewValidationError(path, "steps", "loop body leaves run state changed", ErrUnbalancedRun)
	}
	return nil
}

// validateStepType проверяет, что тип шага известен.
func validateStepType(path, stepType string) error {
	if stepType == "" {
		return NewValidationError(path, "type", "step has empty type", ErrUnknownStepType)
	}

	if !validStepTypes[stepType] {
		return NewValidationError(path, "type",
			fmt.Sprintf("unknown step type: %s", stepType), ErrUnknownStepType)
	}

	return nil
}

// IsValidStepType проверяет, является ли тип шага допустимым.
func IsValidStepType(stepType string) bool {
	return validStepTypes[stepType]
}

// GetValidStepTypes возвращает отсортированный список допустимых типов шагов.
func GetValidStepTypes() []string {
	types := make([]string, 0, len(validStepTypes))
	for t := range validStepTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Expand разворачивает PlanSpec в команды для связанных параметров:
// рендерит шаблоны, раскрывает loop и отбрасывает шаги с ложным when.
func Expand(spec *domain.PlanSpec, params map[string]any) ([]domain.Command, error) {
	ctx := NewContext(params)
	var out []domain.Command
	if err := expandSteps(spec, spec.Steps, "", ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func expandSteps(spec *domain.PlanSpec, steps []domain.StepDef, parent string, ctx *Context, out *[]domain.Command) error {
	for i := range steps {
		step := &steps[i]
		path := stepPath(parent, i)

		ok, err := RenderCondition(step.When, ctx)
		if err != nil {
			return NewValidationError(path, "when", err.Error(), err)
		}
		if !ok {
			continue
		}

		if step.IsLoop() {
			if err := expandLoop(spec, step, path, ctx, out); err != nil {
				return err
			}
			continue
		}

		cmd, err := renderCommand(spec, step, ctx)
		if err != nil {
			return NewValidationError(path, "args", err.Error(), err)
		}
		*out = append(*out, cmd)
	}
	return nil
}

func expandLoop(spec *domain.PlanSpec, step *domain.StepDef, path string, ctx *Context, out *[]domain.Command) error {
	var items []any
	if step.Each != "" {
		list, err := RenderList(step.Each, ctx)
		if err != nil {
			return NewValidationError(path, "each", err.Error(), err)
		}
		items = list
	} else {
		n, err := RenderInt(step.Count, ctx)
		if err != nil {
			return NewValidationError(path, "count", err.Error(), err)
		}
		for i := range n {
			items = append(items, i)
		}
	}

	for i, item := range items {
		if err := expandSteps(spec, step.Steps, path, ctx.WithItem(item, i), out); err != nil {
			return err
		}
	}
	return nil
}

// renderCommand рендерит один шаг в команду.
func renderCommand(spec *domain.PlanSpec, step *domain.StepDef, ctx *Context) (domain.Command, error) {
	device, err := Render(step.Device, ctx)
	if err != nil {
		return domain.Command{}, err
	}

	args, err := RenderConfig(step.Args, ctx)
	if err != nil {
		return domain.Command{}, err
	}

	// Метаданные плана и его параметры попадают в start документ
	if domain.CommandType(step.Type) == domain.CommandOpenRun {
		md, _ := args["md"].(map[string]any)
		merged := domain.RunMetadata(spec.Metadata).Merge(md)
		if spec.Description != "" {
			if _, ok := merged["plan_description"]; !ok {
				merged["plan_description"] = spec.Description
			}
		}
		args["md"] = map[string]any(merged)
	}

	return domain.Command{
		Type:   domain.CommandType(step.Type),
		Device: device,
		Args:   args,
	}, nil
}
