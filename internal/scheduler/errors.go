package scheduler

import "errors"

var (
	// ErrScheduleNotFound — расписание с таким именем не найдено.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrNoTrigger — у расписания нет ни cron, ни interval_sec.
	ErrNoTrigger = errors.New("schedule has neither cron nor interval_sec")
)
