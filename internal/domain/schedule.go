package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматической постановки плана в очередь.
//
// Schedule позволяет запускать план:
// - По cron-выражению: "0 9 * * *" (каждый день в 9:00)
// - По интервалу: каждые N секунд
//
// Submissions по расписанию идут без диалога метаданных:
// метаданные берутся из Metadata.
type Schedule struct {
	// Name — имя расписания.
	Name string `json:"name" yaml:"name"`

	// Plan — имя плана в библиотеке.
	Plan string `json:"plan" yaml:"plan"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty" yaml:"cron,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int `json:"interval_sec,omitempty" yaml:"interval_sec,omitempty"`

	// Timezone — часовой пояс для вычисления времени.
	// По умолчанию: "UTC".
	Timezone string `json:"timezone" yaml:"timezone,omitempty"`

	// Enabled — флаг активности расписания.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Priority — приоритет submission.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	// Parameters — значения параметров плана.
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// Metadata — метаданные run.
	Metadata RunMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// NextDueAt — время следующей постановки в очередь.
	NextDueAt *time.Time `json:"next_due_at,omitempty" yaml:"-"`

	// LastRunAt — время последней постановки.
	LastRunAt *time.Time `json:"last_run_at,omitempty" yaml:"-"`

	// LastSubmissionID — ID последней созданной submission.
	LastSubmissionID *uuid.UUID `json:"last_submission_id,omitempty" yaml:"-"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.NextDueAt == nil {
		return false
	}
	return now.After(*s.NextDueAt) || now.Equal(*s.NextDueAt)
}

// RecordRun записывает информацию о постановке в очередь.
func (s *Schedule) RecordRun(submissionID uuid.UUID, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastSubmissionID = &submissionID
	s.NextDueAt = &nextDue
}
