package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shaiso/Acquire/internal/coordinator"
)

// ListPlans возвращает список планов библиотеки.
// GET /api/v1/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	infos := h.plans.List()

	result := make([]PlanResponse, len(infos))
	for i, info := range infos {
		result[i] = PlanFromInfo(info)
	}

	List(w, result, len(result))
}

// GetPlan возвращает план по имени.
// GET /api/v1/plans/{name}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	info, err := h.plans.Info(r.PathValue("name"))
	if HandleError(w, h.logger, err, "plan not found") {
		return
	}

	Success(w, PlanFromInfo(info))
}

// SubmitPlan ставит план в очередь.
// POST /api/v1/plans/{name}/submit
//
// Диалогов нет: параметры и метаданные берутся из тела запроса.
// Ответ 202 означает, что submission в очереди.
func (h *Handler) SubmitPlan(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	plan, err := h.plans.Get(name)
	if HandleError(w, h.logger, err, "plan not found") {
		return
	}

	opts := []coordinator.SubmitOption{
		coordinator.WithParameters(req.Parameters),
		coordinator.WithMetadata(req.Metadata),
	}
	if req.Priority != nil {
		opts = append(opts, coordinator.WithPriority(*req.Priority))
	}

	id, err := h.coordinator.Submit(r.Context(), plan, opts...)
	if HandleError(w, h.logger, err, "plan not found") {
		return
	}

	h.logger.Info("plan submitted via api", "plan", name, "submission_id", id)
	Accepted(w, SubmitResponse{SubmissionID: id, Plan: name})
}
