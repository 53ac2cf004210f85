package engine

import (
	"fmt"
	"iter"
	"maps"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/steps"
)

// BuildFunc строит команды плана по связанным параметрам.
type BuildFunc func(params map[string]any) ([]domain.Command, error)

// ParamPlan — план с параметрами (встроенный или из PlanSpec).
//
// Несвязанный план при выполнении связывается значениями по умолчанию.
// Реализует domain.Parameterized и domain.Arguments.
type ParamPlan struct {
	name        string
	description string
	schema      domain.ParameterSchema
	build       BuildFunc

	bound    bool
	params   map[string]any
	commands []domain.Command
}

// NewParamPlan создаёт план с параметрами.
func NewParamPlan(name, description string, schema domain.ParameterSchema, build BuildFunc) *ParamPlan {
	return &ParamPlan{
		name:        name,
		description: description,
		schema:      schema,
		build:       build,
	}
}

// NewSpecPlan создаёт план из PlanSpec. Спецификация валидируется.
func NewSpecPlan(spec *domain.PlanSpec) (*ParamPlan, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	return NewParamPlan(spec.Name, spec.Description, spec.Parameters, func(params map[string]any) ([]domain.Command, error) {
		return Expand(spec, params)
	}), nil
}

// Name возвращает имя плана.
func (p *ParamPlan) Name() string {
	return p.name
}

// Description возвращает описание плана.
func (p *ParamPlan) Description() string {
	return p.description
}

// Parameters возвращает схему параметров.
func (p *ParamPlan) Parameters() domain.ParameterSchema {
	return p.schema
}

// Args возвращает связанные значения параметров (plan_args).
func (p *ParamPlan) Args() map[string]any {
	return maps.Clone(p.params)
}

// Bound возвращает true, если параметры уже связаны.
func (p *ParamPlan) Bound() bool {
	return p.bound
}

// Bind возвращает новый план с подставленными значениями.
func (p *ParamPlan) Bind(values map[string]any) (domain.Plan, error) {
	params, err := p.schema.Coerce(values)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", p.name, err)
	}

	commands, err := p.build(params)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", p.name, err)
	}

	return &ParamPlan{
		name:        p.name,
		description: p.description,
		schema:      p.schema,
		build:       p.build,
		bound:       true,
		params:      params,
		commands:    commands,
	}, nil
}

// Commands возвращает команды плана.
//
// Если связать параметры по умолчанию не удаётся, план состоит из одной
// команды raise с текстом ошибки.
func (p *ParamPlan) Commands() iter.Seq[domain.Command] {
	return func(yield func(domain.Command) bool) {
		commands := p.commands
		if !p.bound {
			bound, err := p.Bind(nil)
			if err != nil {
				yield(domain.Command{
					Type: domain.CommandRaise,
					Args: map[string]any{"message": err.Error()},
				})
				return
			}
			commands = bound.(*ParamPlan).commands
		}

		for _, cmd := range commands {
			if !yield(cmd) {
				return
			}
		}
	}
}

// Встроенные планы.

// Count — count(detectors, num, delay): num измерений на месте.
func Count() *ParamPlan {
	schema := domain.ParameterSchema{
		{Name: "detectors", Title: "Detectors", Type: domain.ParameterList, Default: []any{"det1"}},
		{Name: "num", Title: "Number of readings", Type: domain.ParameterInt, Default: 1},
		{Name: "delay", Title: "Delay (s)", Type: domain.ParameterFloat, Default: 0.0},
	}

	return NewParamPlan("count", "Take one or more readings from detectors.", schema,
		func(params map[string]any) ([]domain.Command, error) {
			detectors := params["detectors"]
			num := params["num"].(int)
			delay := params["delay"].(float64)

			cmds := []domain.Command{openRun(map[string]any{"detectors": detectors, "num_points": num})}
			for i := range num {
				cmds = append(cmds,
					domain.Command{Type: domain.CommandCheckpoint},
					domain.Command{Type: domain.CommandTrigger, Args: map[string]any{"devices": detectors}},
					domain.Command{Type: domain.CommandRead, Args: map[string]any{"devices": detectors}},
				)
				if delay > 0 && i < num-1 {
					cmds = append(cmds, domain.Command{
						Type: domain.CommandSleep,
						Args: map[string]any{"duration_sec": delay},
					})
				}
			}
			return append(cmds, closeRun()), nil
		})
}

// Scan — scan(detectors, motor, start, stop, num): равномерный шаговый скан.
func Scan() *ParamPlan {
	schema := domain.ParameterSchema{
		{Name: "detectors", Title: "Detectors", Type: domain.ParameterList, Default: []any{"det1"}},
		{Name: "motor", Title: "Motor", Type: domain.ParameterDevice, Default: "motor1"},
		{Name: "start", Title: "Start", Type: domain.ParameterFloat, Default: -1.0},
		{Name: "stop", Title: "Stop", Type: domain.ParameterFloat, Default: 1.0},
		{Name: "num", Title: "Number of points", Type: domain.ParameterInt, Default: 5},
	}

	return NewParamPlan("scan", "Scan a motor over evenly spaced positions.", schema,
		func(params map[string]any) ([]domain.Command, error) {
			positions := Linspace(params["start"].(float64), params["stop"].(float64), params["num"].(int))
			list := make([]any, len(positions))
			for i, p := range positions {
				list[i] = p
			}
			return stepScan(params["detectors"], params["motor"].(string), list), nil
		})
}

// ListScan — list_scan(detectors, motor, positions): скан по списку позиций.
func ListScan() *ParamPlan {
	schema := domain.ParameterSchema{
		{Name: "detectors", Title: "Detectors", Type: domain.ParameterList, Default: []any{"det1"}},
		{Name: "motor", Title: "Motor", Type: domain.ParameterDevice, Default: "motor1"},
		{Name: "positions", Title: "Positions", Type: domain.ParameterList, Required: true},
	}

	return NewParamPlan("list_scan", "Scan a motor over a list of positions.", schema,
		func(params map[string]any) ([]domain.Command, error) {
			positions, _ := params["positions"].([]any)
			if len(positions) == 0 {
				return nil, fmt.Errorf("%w: positions is empty", steps.ErrInvalidConfig)
			}
			return stepScan(params["detectors"], params["motor"].(string), positions), nil
		})
}

// Builtins возвращает все встроенные планы.
func Builtins() []*ParamPlan {
	return []*ParamPlan{Count(), Scan(), ListScan()}
}

// stepScan: для каждой позиции move, trigger, read (детекторы и мотор).
func stepScan(detectors any, motor string, positions []any) []domain.Command {
	readDevices := append(toAnySlice(detectors), motor)

	cmds := []domain.Command{openRun(map[string]any{
		"detectors":  detectors,
		"motors":     []any{motor},
		"num_points": len(positions),
	})}
	for _, pos := range positions {
		cmds = append(cmds,
			domain.Command{Type: domain.CommandCheckpoint},
			domain.Command{Type: domain.CommandMove, Device: motor, Args: map[string]any{"position": pos}},
			domain.Command{Type: domain.CommandTrigger, Args: map[string]any{"devices": detectors}},
			domain.Command{Type: domain.CommandRead, Args: map[string]any{"devices": readDevices}},
		)
	}
	return append(cmds, closeRun())
}

func openRun(md map[string]any) domain.Command {
	return domain.Command{Type: domain.CommandOpenRun, Args: map[string]any{"md": md}}
}

func closeRun() domain.Command {
	return domain.Command{Type: domain.CommandCloseRun}
}

func toAnySlice(v any) []any {
	switch list := v.(type) {
	case []any:
		return append([]any(nil), list...)
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	}
	return nil
}
