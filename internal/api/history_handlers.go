package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deployops/rollout/internal/state"
)

// HistoryHandler serves archived deployments from the database
type HistoryHandler struct {
	repo *state.Repository
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(repo *state.Repository) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// ListHistory handles GET /api/v1/history
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		RespondWithError(w, http.StatusServiceUnavailable, "History archive is not configured")
		return
	}

	limit := 20
	offset := 0

	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}
	if parsed, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && parsed >= 0 {
		offset = parsed
	}

	records, err := h.repo.ListDeployments(limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list archived deployments")
		RespondWithError(w, http.StatusInternalServerError, "Failed to list archived deployments")
		return
	}

	response := ListDeploymentsResponse{
		Deployments: records,
		Total:       len(records),
		Limit:       limit,
		Offset:      offset,
	}

	RespondWithJSON(w, http.StatusOK, response)
}

// GetHistory handles GET /api/v1/history/{id}
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		RespondWithError(w, http.StatusServiceUnavailable, "History archive is not configured")
		return
	}

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid deployment ID")
		return
	}

	record, err := h.repo.GetDeployment(id)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "Deployment not found")
		return
	}

	RespondWithJSON(w, http.StatusOK, record)
}

// GetHistoryByStatus handles GET /api/v1/history/status/{status}
func (h *HistoryHandler) GetHistoryByStatus(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		RespondWithError(w, http.StatusServiceUnavailable, "History archive is not configured")
		return
	}

	status := chi.URLParam(r, "status")
	records, err := h.repo.GetDeploymentsByStatus(status)
	if err != nil {
		log.Error().Err(err).Str("status", status).Msg("Failed to get archived deployments")
		RespondWithError(w, http.StatusInternalServerError, "Failed to get archived deployments")
		return
	}

	RespondWithJSON(w, http.StatusOK, records)
}
