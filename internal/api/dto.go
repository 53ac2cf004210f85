package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Acquire/internal/coordinator"
	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/library"
)

// Plan DTOs

// ParameterResponse — описание параметра плана.
type ParameterResponse struct {
	Name     string               `json:"name"`
	Title    string               `json:"title,omitempty"`
	Type     domain.ParameterType `json:"type"`
	Default  any                  `json:"default,omitempty"`
	Required bool                 `json:"required,omitempty"`
	Choices  []string             `json:"choices,omitempty"`
}

// PlanResponse — ответ с планом.
type PlanResponse struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Source      library.Source      `json:"source"`
	Parameters  []ParameterResponse `json:"parameters,omitempty"`
}

// PlanFromInfo конвертирует library.Info в PlanResponse.
func PlanFromInfo(info library.Info) PlanResponse {
	resp := PlanResponse{
		Name:        info.Name,
		Description: info.Description,
		Source:      info.Source,
	}
	for _, p := range info.Parameters {
		resp.Parameters = append(resp.Parameters, ParameterResponse{
			Name:     p.Name,
			Title:    p.Title,
			Type:     p.Type,
			Default:  p.Default,
			Required: p.Required,
			Choices:  p.Choices,
		})
	}
	return resp
}

// SubmitRequest — запрос на постановку плана в очередь.
type SubmitRequest struct {
	Priority   *int           `json:"priority,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SubmitResponse — ответ на постановку в очередь.
type SubmitResponse struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Plan         string    `json:"plan"`
}

// Engine DTOs

// ControlRequest — тело запросов pause/abort/stop (все поля опциональны).
type ControlRequest struct {
	Defer  bool   `json:"defer,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// PendingResponse — submission в очереди.
type PendingResponse struct {
	ID          uuid.UUID      `json:"id"`
	Plan        string         `json:"plan"`
	Priority    int            `json:"priority"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// EngineResponse — состояние движка и очереди.
type EngineResponse struct {
	coordinator.Status
	Queue []PendingResponse `json:"queue"`
}

// EngineFromStatus собирает EngineResponse.
func EngineFromStatus(status coordinator.Status, pending []domain.PrioritizedSubmission) EngineResponse {
	resp := EngineResponse{Status: status, Queue: make([]PendingResponse, len(pending))}
	for i, p := range pending {
		resp.Queue[i] = PendingResponse{
			ID:          p.ID,
			Plan:        p.PlanName(),
			Priority:    p.Priority,
			Metadata:    p.Metadata,
			SubmittedAt: p.SubmittedAt,
		}
	}
	return resp
}

// Run DTOs

// RunResponse — ответ с run.
type RunResponse struct {
	UID         string            `json:"uid"`
	ScanID      int               `json:"scan_id"`
	PlanName    string            `json:"plan_name"`
	Status      domain.RunStatus  `json:"status"`
	ExitStatus  domain.ExitStatus `json:"exit_status,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	NumEvents   map[string]int    `json:"num_events,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	DurationSec float64           `json:"duration_sec,omitempty"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		UID:         r.UID,
		ScanID:      r.ScanID,
		PlanName:    r.PlanName,
		Status:      r.Status,
		ExitStatus:  r.ExitStatus,
		Reason:      r.Reason,
		NumEvents:   r.NumEvents,
		Metadata:    r.Metadata,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		DurationSec: r.Duration().Seconds(),
	}
}

// Schedule DTOs

// SetEnabledRequest — запрос на включение/выключение schedule.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	Name             string         `json:"name"`
	Plan             string         `json:"plan"`
	CronExpr         string         `json:"cron_expr,omitempty"`
	IntervalSec      int            `json:"interval_sec,omitempty"`
	Timezone         string         `json:"timezone,omitempty"`
	Enabled          bool           `json:"enabled"`
	Priority         int            `json:"priority,omitempty"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	NextDueAt        *time.Time     `json:"next_due_at,omitempty"`
	LastRunAt        *time.Time     `json:"last_run_at,omitempty"`
	LastSubmissionID *uuid.UUID     `json:"last_submission_id,omitempty"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		Name:             s.Name,
		Plan:             s.Plan,
		CronExpr:         s.CronExpr,
		IntervalSec:      s.IntervalSec,
		Timezone:         s.Timezone,
		Enabled:          s.Enabled,
		Priority:         s.Priority,
		Parameters:       s.Parameters,
		NextDueAt:        s.NextDueAt,
		LastRunAt:        s.LastRunAt,
		LastSubmissionID: s.LastSubmissionID,
	}
}
