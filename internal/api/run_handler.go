package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/repo"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?plan=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.RunFilter{
		Plan:   q.Get("plan"),
		Limit:  parseInt(q.Get("limit"), 50),
		Offset: parseInt(q.Get("offset"), 0),
	}

	if status := q.Get("status"); status != "" {
		filter.Status = domain.RunStatus(strings.ToUpper(status))
		switch filter.Status {
		case domain.RunStatusRunning, domain.RunStatusSucceeded, domain.RunStatusAborted, domain.RunStatusFailed:
		default:
			BadRequest(w, "invalid status")
			return
		}
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// GetRun возвращает run по uid start документа.
// GET /api/v1/runs/{uid}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), r.PathValue("uid"))
	if HandleError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListRunDocuments возвращает документы run в порядке испускания.
// GET /api/v1/runs/{uid}/documents
func (h *Handler) ListRunDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListDocuments(r.Context(), r.PathValue("uid"))
	if HandleError(w, h.logger, err, "run not found") {
		return
	}

	List(w, docs, len(docs))
}

// parseInt парсит неотрицательное число с дефолтным значением.
func parseInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
