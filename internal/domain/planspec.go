package domain

// PlanSpec — декларативное описание плана (YAML файл библиотеки планов).
//
// Пример:
//
//	name: dscan
//	description: relative step scan
//	parameters:
//	  - name: num
//	    type: int
//	    default: 5
//	steps:
//	  - type: open_run
//	  - type: loop
//	    each: '{{ linspace -1 1 .Params.num }}'
//	    steps:
//	      - type: move
//	        device: motor1
//	        args: {position: '{{ .Item }}'}
//	      - type: trigger
//	        device: det1
//	      - type: read
//	        args: {devices: [det1, motor1]}
//	  - type: close_run
type PlanSpec struct {
	// Name — уникальное имя плана в библиотеке.
	Name string `json:"name" yaml:"name"`

	// Description — описание назначения плана.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Parameters — параметры плана (показываются в диалоге).
	Parameters ParameterSchema `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// Metadata — метаданные, добавляемые в open_run.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Steps — шаги плана.
	Steps []StepDef `json:"steps" yaml:"steps"`
}

// StepDef — определение шага в PlanSpec.
type StepDef struct {
	// Type — тип шага: тип команды или "loop".
	Type string `json:"type" yaml:"type"`

	// Device — устройство, к которому относится шаг.
	Device string `json:"device,omitempty" yaml:"device,omitempty"`

	// Args — аргументы команды. Строки рендерятся как Go templates:
	// {{ .Params.name }}, {{ .Item }}, {{ .Index }}.
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`

	// When — условие выполнения шага (выражение Go template без скобок),
	// например: .Params.shutter
	When string `json:"when,omitempty" yaml:"when,omitempty"`

	// Each — выражение, возвращающее список (только для type="loop").
	Each string `json:"each,omitempty" yaml:"each,omitempty"`

	// Count — число повторений (только для type="loop", альтернатива Each).
	Count string `json:"count,omitempty" yaml:"count,omitempty"`

	// Steps — вложенные шаги (только для type="loop").
	Steps []StepDef `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// StepTypeLoop — структурный шаг, разворачиваемый при связывании плана.
const StepTypeLoop = "loop"

// IsLoop возвращает true для структурного шага loop.
func (s *StepDef) IsLoop() bool {
	return s.Type == StepTypeLoop
}
