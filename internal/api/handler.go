package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Acquire/internal/coordinator"
	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/events"
	"github.com/shaiso/Acquire/internal/library"
	"github.com/shaiso/Acquire/internal/repo"
)

// Coordinator — операции координатора, доступные через API.
type Coordinator interface {
	Submit(ctx context.Context, plan domain.Plan, opts ...coordinator.SubmitOption) (uuid.UUID, error)
	Pause(deferred bool) error
	Resume() error
	Abort(reason string) error
	StopRun(reason string) error
	Status() coordinator.Status
	Pending() []domain.PrioritizedSubmission
	Events() *events.Bus
}

// Plans — каталог планов.
type Plans interface {
	Get(name string) (domain.Plan, error)
	Info(name string) (library.Info, error)
	List() []library.Info
}

// Schedules — управление расписаниями.
type Schedules interface {
	List() []domain.Schedule
	Get(name string) (domain.Schedule, error)
	SetEnabled(name string, enabled bool) (domain.Schedule, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	coordinator Coordinator
	plans       Plans
	store       repo.Store
	schedules   Schedules
	metrics     http.Handler
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Coordinator Coordinator
	Plans       Plans
	Store       repo.Store

	// Schedules — опционально; без него /schedules отдаёт пустой список.
	Schedules Schedules

	// Metrics — handler для /metrics (опционально).
	Metrics http.Handler

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		coordinator: cfg.Coordinator,
		plans:       cfg.Plans,
		store:       cfg.Store,
		schedules:   cfg.Schedules,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}
