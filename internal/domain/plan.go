package domain

import (
	"iter"
	"maps"
)

// CommandType — тип команды плана.
type CommandType string

// Типы команд, которые понимает движок.
const (
	CommandOpenRun    CommandType = "open_run"
	CommandCloseRun   CommandType = "close_run"
	CommandMove       CommandType = "move"
	CommandTrigger    CommandType = "trigger"
	CommandRead       CommandType = "read"
	CommandCheckpoint CommandType = "checkpoint"
	CommandSleep      CommandType = "sleep"
	CommandPause      CommandType = "pause"
	CommandRaise      CommandType = "raise"
)

// Command — одна инструкция плана (аналог bluesky Msg).
//
// Device — имя устройства, к которому относится команда (может быть пустым).
// Args — аргументы команды; их набор зависит от Type.
type Command struct {
	Type   CommandType    `json:"type" yaml:"type"`
	Device string         `json:"device,omitempty" yaml:"device,omitempty"`
	Args   map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// Plan — непрозрачное описание последовательности операций с оборудованием.
//
// Plan интерпретируется внешним движком: координатор никогда не заглядывает
// в команды, он только передаёт план движку.
//
// Commands должен быть повторно используемым: каждый вызов возвращает
// новую последовательность с начала.
type Plan interface {
	// Name возвращает имя плана (попадает в start документ как plan_type).
	Name() string

	// Commands возвращает последовательность команд.
	Commands() iter.Seq[Command]
}

// Parameterized — план с настраиваемыми параметрами.
//
// Если план реализует этот интерфейс, перед постановкой в очередь
// пользователю показывается диалог сбора параметров, а результат
// связывается с планом через Bind.
type Parameterized interface {
	Plan

	// Parameters возвращает схему параметров.
	Parameters() ParameterSchema

	// Bind возвращает новый план с подставленными значениями.
	// Исходный план не изменяется.
	Bind(values map[string]any) (Plan, error)
}

// Arguments — план, который сообщает свои аргументы (plan_args в start документе).
type Arguments interface {
	Args() map[string]any
}

// IsParameterized проверяет, объявляет ли план параметры.
func IsParameterized(p Plan) (Parameterized, bool) {
	pp, ok := p.(Parameterized)
	if !ok || len(pp.Parameters()) == 0 {
		return nil, false
	}
	return pp, true
}

// PlanArgs возвращает аргументы плана или nil.
func PlanArgs(p Plan) map[string]any {
	if a, ok := p.(Arguments); ok {
		return maps.Clone(a.Args())
	}
	return nil
}

// StaticPlan — план из фиксированного списка команд.
//
// Используется для скриптовых планов и в тестах.
type StaticPlan struct {
	name     string
	commands []Command
	args     map[string]any
}

// NewPlan создаёт StaticPlan.
func NewPlan(name string, commands ...Command) *StaticPlan {
	return &StaticPlan{
		name:     name,
		commands: commands,
	}
}

// WithArgs задаёт plan_args и возвращает план.
func (p *StaticPlan) WithArgs(args map[string]any) *StaticPlan {
	p.args = args
	return p
}

// Name возвращает имя плана.
func (p *StaticPlan) Name() string {
	return p.name
}

// Args возвращает аргументы плана.
func (p *StaticPlan) Args() map[string]any {
	return p.args
}

// Commands возвращает команды плана.
func (p *StaticPlan) Commands() iter.Seq[Command] {
	return func(yield func(Command) bool) {
		for _, cmd := range p.commands {
			if !yield(cmd) {
				return
			}
		}
	}
}

// Len возвращает количество команд.
func (p *StaticPlan) Len() int {
	return len(p.commands)
}
