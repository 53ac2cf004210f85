package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Acquire/internal/domain"
)

// cronParser — парсер cron-выражений (5 полей и дескрипторы @hourly, @every 5m).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NextDue вычисляет следующее время постановки в очередь после from.
// Cron вычисляется в часовом поясе расписания, результат в UTC.
func NextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	loc := time.UTC
	if sched.Timezone != "" {
		l, err := time.LoadLocation(sched.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("schedule %s: timezone %q: %w", sched.Name, sched.Timezone, err)
		}
		loc = l
	}

	switch {
	case sched.IsCron():
		s, err := cronParser.Parse(sched.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("schedule %s: parse cron expression %q: %w", sched.Name, sched.CronExpr, err)
		}
		return s.Next(from.In(loc)).UTC(), nil

	case sched.IsInterval():
		return from.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("schedule %s: %w", sched.Name, ErrNoTrigger)
}

// ValidateCronExpr проверяет cron-выражение.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
