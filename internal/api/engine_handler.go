package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// EngineStatus возвращает состояние движка и очередь.
// GET /api/v1/engine
func (h *Handler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	Success(w, EngineFromStatus(h.coordinator.Status(), h.coordinator.Pending()))
}

// Pause запрашивает паузу. {"defer": true} — на ближайшем checkpoint.
// POST /api/v1/engine/pause
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeControl(w, r)
	if !ok {
		return
	}
	if HandleError(w, h.logger, h.coordinator.Pause(req.Defer), "") {
		return
	}
	h.EngineStatus(w, r)
}

// Resume продолжает выполнение после паузы.
// POST /api/v1/engine/resume
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	if HandleError(w, h.logger, h.coordinator.Resume(), "") {
		return
	}
	h.EngineStatus(w, r)
}

// Abort прерывает выполняемый план.
// POST /api/v1/engine/abort
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeControl(w, r)
	if !ok {
		return
	}
	if req.Reason == "" {
		req.Reason = "aborted via api"
	}
	if HandleError(w, h.logger, h.coordinator.Abort(req.Reason), "") {
		return
	}
	h.EngineStatus(w, r)
}

// Stop завершает выполняемый план штатно.
// POST /api/v1/engine/stop
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeControl(w, r)
	if !ok {
		return
	}
	if HandleError(w, h.logger, h.coordinator.StopRun(req.Reason), "") {
		return
	}
	h.EngineStatus(w, r)
}

// decodeControl разбирает необязательное тело ControlRequest.
func decodeControl(w http.ResponseWriter, r *http.Request) (ControlRequest, bool) {
	var req ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return req, false
	}
	return req, true
}

// Health — проверка живости.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"engine": h.coordinator.Status().State,
	})
}
