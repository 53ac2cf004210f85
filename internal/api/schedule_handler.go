package api

import (
	"encoding/json"
	"net/http"
)

// ListSchedules возвращает список schedules.
// GET /api/v1/schedules?enabled=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	result := []ScheduleResponse{}
	if h.schedules == nil {
		List(w, result, 0)
		return
	}

	enabledStr := r.URL.Query().Get("enabled")
	for _, s := range h.schedules.List() {
		if enabledStr != "" && s.Enabled != (enabledStr == "true") {
			continue
		}
		result = append(result, ScheduleFromDomain(&s))
	}

	List(w, result, len(result))
}

// GetSchedule возвращает schedule по имени.
// GET /api/v1/schedules/{name}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	if h.schedules == nil {
		NotFound(w, "schedule not found")
		return
	}

	s, err := h.schedules.Get(r.PathValue("name"))
	if HandleError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(&s))
}

// SetScheduleEnabled включает или выключает schedule.
// PUT /api/v1/schedules/{name}/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	if h.schedules == nil {
		NotFound(w, "schedule not found")
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	s, err := h.schedules.SetEnabled(r.PathValue("name"), req.Enabled)
	if HandleError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(&s))
}
