package domain

// EngineState — состояние движка планов.
//
// Жизненный цикл:
//
//	idle → running → idle
//	         ↕
//	       paused → idle (abort/stop)
//
// Состоянием владеет движок; координатор только читает его.
type EngineState string

const (
	// EngineIdle — движок свободен.
	EngineIdle EngineState = "idle"

	// EngineRunning — движок выполняет план.
	EngineRunning EngineState = "running"

	// EnginePaused — выполнение плана приостановлено.
	EnginePaused EngineState = "paused"
)

// String возвращает строковое представление EngineState.
func (s EngineState) String() string {
	return string(s)
}

// IsActive возвращает true, если в движке есть незавершённый план.
func (s EngineState) IsActive() bool {
	return s == EngineRunning || s == EnginePaused
}

// RunStatus — статус сохранённого run.
//
// Жизненный цикл:
//
//	RUNNING → SUCCEEDED
//	        ↘ ABORTED
//	        ↘ FAILED
type RunStatus string

const (
	// RunStatusRunning — run открыт, stop документ ещё не получен.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — run завершён с exit_status=success.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusAborted — run прерван пользователем.
	RunStatusAborted RunStatus = "ABORTED"

	// RunStatusFailed — run завершился ошибкой.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusAborted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// ParseRunStatus парсит строку в RunStatus.
func ParseRunStatus(s string) RunStatus {
	switch s {
	case "SUCCEEDED":
		return RunStatusSucceeded
	case "ABORTED":
		return RunStatusAborted
	case "FAILED":
		return RunStatusFailed
	default:
		return RunStatusRunning
	}
}
