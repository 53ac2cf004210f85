package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Acquire/internal/coordinator"
	"github.com/shaiso/Acquire/internal/domain"
)

const defaultTickInterval = time.Second

// Submitter ставит план в очередь (coordinator.Coordinator).
type Submitter interface {
	Submit(ctx context.Context, plan domain.Plan, opts ...coordinator.SubmitOption) (uuid.UUID, error)
}

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	submitter    Submitter
	plans        coordinator.PlanSource
	tickInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu        sync.Mutex
	schedules map[string]*domain.Schedule
}

// Config — конфигурация Scheduler.
type Config struct {
	Coordinator  Submitter
	Plans        coordinator.PlanSource
	Schedules    []domain.Schedule
	TickInterval time.Duration    // интервал тиков (default: 1s)
	Now          func() time.Time // источник времени (default: time.Now)
	Logger       *slog.Logger
}

// New создаёт Scheduler и вычисляет первое время постановки каждого расписания.
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Scheduler{
		submitter:    cfg.Coordinator,
		plans:        cfg.Plans,
		tickInterval: tick,
		now:          now,
		logger:       logger,
		schedules:    make(map[string]*domain.Schedule, len(cfg.Schedules)),
	}

	start := now()
	for _, sched := range cfg.Schedules {
		next, err := NextDue(&sched, start)
		if err != nil {
			return nil, err
		}
		sched.NextDueAt = &next
		s.schedules[sched.Name] = &sched
	}
	return s, nil
}

// Run вызывает Tick каждые TickInterval до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("starting scheduler", "schedules", len(s.schedules), "tick", s.tickInterval)

	tk := time.NewTicker(s.tickInterval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-tk.C:
			s.Tick(ctx)
		}
	}
}

// Tick ставит в очередь все due расписания. Возвращает число submissions.
//
// Ошибка одного расписания не блокирует остальные. next_due_at
// сдвигается и при ошибке, чтобы сломанное расписание не срабатывало
// на каждом тике.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var due []*domain.Schedule
	for _, sched := range s.schedules {
		if sched.IsDue(now) {
			due = append(due, sched)
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return 0
	}
	s.logger.Debug("found due schedules", "count", len(due))

	submitted := 0
	for _, sched := range due {
		id, submitErr := s.submit(ctx, sched)
		if submitErr != nil {
			s.logger.Error("failed to submit scheduled plan",
				"schedule", sched.Name,
				"plan", sched.Plan,
				"error", submitErr,
			)
		} else {
			submitted++
		}

		next, err := NextDue(sched, now)

		s.mu.Lock()
		switch {
		case err != nil:
			s.logger.Error("failed to calculate next due, disabling schedule", "schedule", sched.Name, "error", err)
			sched.Enabled = false
		case submitErr != nil:
			sched.NextDueAt = &next
		default:
			sched.RecordRun(id, next)
		}
		s.mu.Unlock()
	}

	s.logger.Info("scheduler tick completed", "due", len(due), "submitted", submitted)
	return submitted
}

func (s *Scheduler) submit(ctx context.Context, sched *domain.Schedule) (uuid.UUID, error) {
	plan, err := s.plans.Get(sched.Plan)
	if err != nil {
		return uuid.Nil, err
	}

	opts := []coordinator.SubmitOption{
		coordinator.WithParameters(sched.Parameters),
		coordinator.WithMetadata(sched.Metadata.Merge(domain.RunMetadata{"schedule": sched.Name})),
		coordinator.SuppressMetadataPrompt(),
	}
	if sched.Priority != 0 {
		opts = append(opts, coordinator.WithPriority(sched.Priority))
	}

	id, err := s.submitter.Submit(ctx, plan, opts...)
	if err != nil {
		return uuid.Nil, fmt.Errorf("submit: %w", err)
	}

	s.logger.Info("scheduled plan submitted", "schedule", sched.Name, "plan", sched.Plan, "submission_id", id)
	return id, nil
}

// List возвращает копии расписаний, отсортированные по имени.
func (s *Scheduler) List() []domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, *sched)
	}
	slices.SortFunc(out, func(a, b domain.Schedule) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Get возвращает копию расписания.
func (s *Scheduler) Get(name string) (domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[name]
	if !ok {
		return domain.Schedule{}, fmt.Errorf("%w: %s", ErrScheduleNotFound, name)
	}
	return *sched, nil
}

// SetEnabled включает или выключает расписание.
// При включении next_due_at отсчитывается от текущего момента.
func (s *Scheduler) SetEnabled(name string, enabled bool) (domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[name]
	if !ok {
		return domain.Schedule{}, fmt.Errorf("%w: %s", ErrScheduleNotFound, name)
	}

	if enabled && !sched.Enabled {
		next, err := NextDue(sched, s.now())
		if err != nil {
			return domain.Schedule{}, err
		}
		sched.NextDueAt = &next
	}
	sched.Enabled = enabled

	s.logger.Info("schedule updated", "schedule", name, "enabled", enabled)
	return *sched, nil
}
