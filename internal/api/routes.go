package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Health и metrics
	mux.HandleFunc("GET /healthz", h.Health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	// Plans
	mux.Handle("GET /api/v1/plans", chain(http.HandlerFunc(h.ListPlans)))
	mux.Handle("GET /api/v1/plans/{name}", chain(http.HandlerFunc(h.GetPlan)))
	mux.Handle("POST /api/v1/plans/{name}/submit", chain(http.HandlerFunc(h.SubmitPlan)))

	// Engine
	mux.Handle("GET /api/v1/engine", chain(http.HandlerFunc(h.EngineStatus)))
	mux.Handle("POST /api/v1/engine/pause", chain(http.HandlerFunc(h.Pause)))
	mux.Handle("POST /api/v1/engine/resume", chain(http.HandlerFunc(h.Resume)))
	mux.Handle("POST /api/v1/engine/abort", chain(http.HandlerFunc(h.Abort)))
	mux.Handle("POST /api/v1/engine/stop", chain(http.HandlerFunc(h.Stop)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{uid}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{uid}/documents", chain(http.HandlerFunc(h.ListRunDocuments)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("GET /api/v1/schedules/{name}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{name}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))

	// Notifications (SSE)
	mux.Handle("GET /api/v1/events", chain(http.HandlerFunc(h.StreamEvents)))
}
