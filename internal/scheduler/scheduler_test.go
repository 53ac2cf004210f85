package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Acquire/internal/coordinator"
	"github.com/shaiso/Acquire/internal/domain"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	plans []string
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, plan domain.Plan, _ ...coordinator.SubmitOption) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.plans = append(f.plans, plan.Name())
	return uuid.New(), nil
}

type planMap map[string]domain.Plan

func (m planMap) Get(name string) (domain.Plan, error) {
	p, ok := m[name]
	if !ok {
		return nil, errors.New("plan not found")
	}
	return p, nil
}

// clock — управляемое время для тестов.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration)   { c.t = c.t.Add(d) }

func newTestScheduler(t *testing.T, sub *fakeSubmitter, c *clock, schedules ...domain.Schedule) *Scheduler {
	t.Helper()
	s, err := New(Config{
		Coordinator: sub,
		Plans:       planMap{"count": domain.NewPlan("count"), "scan": domain.NewPlan("scan")},
		Schedules:   schedules,
		Now:         c.now,
	})
	require.NoError(t, err)
	return s
}

func TestNextDue(t *testing.T) {
	from := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		sched   domain.Schedule
		want    time.Time
		wantErr bool
	}{
		{
			name:  "interval",
			sched: domain.Schedule{IntervalSec: 90},
			want:  from.Add(90 * time.Second),
		},
		{
			name:  "cron daily",
			sched: domain.Schedule{CronExpr: "0 9 * * *"},
			want:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "cron descriptor",
			sched: domain.Schedule{CronExpr: "@hourly"},
			want:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "cron in timezone",
			sched: domain.Schedule{CronExpr: "0 9 * * *", Timezone: "Europe/Berlin"},
			want:  time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC),
		},
		{name: "bad cron", sched: domain.Schedule{CronExpr: "not cron"}, wantErr: true},
		{name: "bad timezone", sched: domain.Schedule{IntervalSec: 5, Timezone: "Mars/Base"}, wantErr: true},
		{name: "no trigger", sched: domain.Schedule{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDue(&tt.sched, from)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCronExpr(t *testing.T) {
	assert.NoError(t, ValidateCronExpr("*/5 * * * *"))
	assert.Error(t, ValidateCronExpr("* *"))
}

func TestScheduler_TickSubmitsDueSchedules(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
	sub := &fakeSubmitter{}
	s := newTestScheduler(t, sub, c,
		domain.Schedule{Name: "dark", Plan: "count", IntervalSec: 60, Enabled: true},
		domain.Schedule{Name: "align", Plan: "scan", IntervalSec: 300, Enabled: true},
		domain.Schedule{Name: "off", Plan: "count", IntervalSec: 60, Enabled: false},
	)

	assert.Equal(t, 0, s.Tick(context.Background()))

	c.advance(time.Minute)
	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.Equal(t, []string{"count"}, sub.plans)

	dark, err := s.Get("dark")
	require.NoError(t, err)
	require.NotNil(t, dark.LastSubmissionID)
	assert.Equal(t, c.t.Add(time.Minute), *dark.NextDueAt)

	c.advance(4 * time.Minute)
	assert.Equal(t, 2, s.Tick(context.Background()))
}

func TestScheduler_FailedSubmissionStillAdvances(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
	sub := &fakeSubmitter{err: coordinator.ErrStopped}
	s := newTestScheduler(t, sub, c,
		domain.Schedule{Name: "dark", Plan: "count", IntervalSec: 60, Enabled: true},
		domain.Schedule{Name: "ghost", Plan: "missing", IntervalSec: 60, Enabled: true},
	)

	c.advance(time.Minute)
	assert.Equal(t, 0, s.Tick(context.Background()))

	for _, sched := range s.List() {
		assert.Nil(t, sched.LastSubmissionID, sched.Name)
		assert.Equal(t, c.t.Add(time.Minute), *sched.NextDueAt, sched.Name)
	}
}

func TestScheduler_SetEnabled(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
	sub := &fakeSubmitter{}
	s := newTestScheduler(t, sub, c,
		domain.Schedule{Name: "dark", Plan: "count", IntervalSec: 60},
	)

	c.advance(time.Hour)
	assert.Equal(t, 0, s.Tick(context.Background()))

	sched, err := s.SetEnabled("dark", true)
	require.NoError(t, err)
	assert.True(t, sched.Enabled)
	// Отсчёт от момента включения, без накопленных пропусков
	assert.Equal(t, c.t.Add(time.Minute), *sched.NextDueAt)

	_, err = s.SetEnabled("nope", true)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{
		Coordinator: &fakeSubmitter{},
		Plans:       planMap{},
		Schedules:   []domain.Schedule{{Name: "bad", Plan: "count", CronExpr: "every day"}},
	})
	assert.Error(t, err)
}
