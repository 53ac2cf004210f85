package domain

import (
	"time"
)

// Run — запись о выполненном плане в хранилище документов.
//
// Run создаётся по start документу и закрывается по stop документу.
// UID совпадает с uid start документа.
type Run struct {
	// UID — uid start документа.
	UID string `json:"uid"`

	// ScanID — порядковый номер скана, выданный движком.
	ScanID int `json:"scan_id"`

	// PlanName — имя плана (plan_type).
	PlanName string `json:"plan_name"`

	// Status — текущий статус run.
	Status RunStatus `json:"status"`

	// Metadata — полный start документ.
	Metadata map[string]any `json:"metadata,omitempty"`

	// ExitStatus — exit_status из stop документа.
	ExitStatus ExitStatus `json:"exit_status,omitempty"`

	// Reason — причина завершения (для abort/fail).
	Reason string `json:"reason,omitempty"`

	// NumEvents — количество событий по потокам.
	NumEvents map[string]int `json:"num_events,omitempty"`

	// StartedAt — время start документа.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время stop документа.
	// Nil, если run ещё открыт.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// RunFromStart строит Run по start документу.
func RunFromStart(doc LifecycleDocument) *Run {
	run := &Run{
		UID:       doc.UID(),
		PlanName:  doc.String("plan_type"),
		Status:    RunStatusRunning,
		Metadata:  doc.Body,
		StartedAt: DocumentTime(doc),
	}
	if n, ok := doc.Body["scan_id"].(int); ok {
		run.ScanID = n
	}
	return run
}

// Finish закрывает run по stop документу.
func (r *Run) Finish(doc LifecycleDocument) {
	exit := ExitStatus(doc.String("exit_status"))
	finished := DocumentTime(doc)
	r.ExitStatus = exit
	r.Status = exit.RunStatus()
	r.Reason = doc.String("reason")
	r.FinishedAt = &finished
	if n, ok := doc.Body["num_events"].(map[string]int); ok {
		r.NumEvents = n
	}
}

// DocumentTime возвращает поле time документа (unix seconds) как time.Time.
func DocumentTime(doc LifecycleDocument) time.Time {
	switch v := doc.Body["time"].(type) {
	case float64:
		sec := int64(v)
		return time.Unix(sec, int64((v-float64(sec))*1e9)).UTC()
	case time.Time:
		return v
	}
	return time.Now().UTC()
}

// UnixTime переводит время в формат поля time документов.
func UnixTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
