package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deployops/rollout/internal/approval"
	"github.com/deployops/rollout/internal/engine"
)

// DeploymentHandler handles deployment-related HTTP requests
type DeploymentHandler struct {
	orch *engine.Orchestrator
	bus  approval.Bus
}

// NewDeploymentHandler creates a new deployment handler
func NewDeploymentHandler(orch *engine.Orchestrator, bus approval.Bus) *DeploymentHandler {
	return &DeploymentHandler{orch: orch, bus: bus}
}

// CreateDeployment handles POST /api/v1/deployments
func (h *DeploymentHandler) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	var def engine.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snapshot, err := h.orch.Create(&def)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			RespondWithValidationError(w, "Invalid deployment definition", verr.Problems)
			return
		}
		log.Error().Err(err).Msg("Failed to create deployment")
		RespondWithError(w, http.StatusInternalServerError, "Failed to create deployment")
		return
	}

	RespondWithJSON(w, http.StatusCreated, snapshot)
}

// GetDeployment handles GET /api/v1/deployments/{id}
func (h *DeploymentHandler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeploymentID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.orch.Status(id)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "Deployment not found")
		return
	}

	RespondWithJSON(w, http.StatusOK, snapshot)
}

// ListDeployments handles GET /api/v1/deployments
func (h *DeploymentHandler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	snapshots := h.orch.List()

	response := ListDeploymentsResponse{
		Deployments: snapshots,
		Total:       len(snapshots),
	}

	RespondWithJSON(w, http.StatusOK, response)
}

// StartDeployment handles POST /api/v1/deployments/{id}/start
func (h *DeploymentHandler) StartDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeploymentID(w, r)
	if !ok {
		return
	}

	if err := h.orch.Start(r.Context(), id); err != nil {
		respondWithRunError(w, id, err, "Failed to start deployment")
		return
	}

	RespondWithSuccess(w, http.StatusAccepted, "Deployment started", nil)
}

// PauseDeployment handles POST /api/v1/deployments/{id}/pause
func (h *DeploymentHandler) PauseDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeploymentID(w, r)
	if !ok {
		return
	}

	if err := h.orch.Pause(id); err != nil {
		respondWithRunError(w, id, err, "Failed to pause deployment")
		return
	}

	RespondWithSuccess(w, http.StatusOK, "Deployment paused", nil)
}

// ResumeDeployment handles POST /api/v1/deployments/{id}/resume
func (h *DeploymentHandler) ResumeDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeploymentID(w, r)
	if !ok {
		return
	}

	if err := h.orch.Resume(id); err != nil {
		respondWithRunError(w, id, err, "Failed to resume deployment")
		return
	}

	RespondWithSuccess(w, http.StatusOK, "Deployment resumed", nil)
}

// ApproveStage handles POST /api/v1/deployments/{id}/stages/{stage}/approve
func (h *DeploymentHandler) ApproveStage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeploymentID(w, r)
	if !ok {
		return
	}

	stage := chi.URLParam(r, "stage")
	if stage == "" {
		RespondWithError(w, http.StatusBadRequest, "Stage name is required")
		return
	}

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Approver == "" {
		RespondWithError(w, http.StatusBadRequest, "Approver is required")
		return
	}

	if err := h.bus.Approve(r.Context(), id, stage, req.Approver, req.Note); err != nil {
		log.Error().Err(err).Str("id", id.String()).Str("stage", stage).Msg("Failed to record approval")
		RespondWithError(w, http.StatusInternalServerError, "Failed to record approval")
		return
	}

	RespondWithSuccess(w, http.StatusOK, "Approval recorded", nil)
}

func parseDeploymentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid deployment ID")
		return uuid.Nil, false
	}
	return id, true
}

func respondWithRunError(w http.ResponseWriter, id uuid.UUID, err error, fallback string) {
	switch {
	case errors.Is(err, engine.ErrDeploymentNotFound):
		RespondWithError(w, http.StatusNotFound, "Deployment not found")
	case errors.Is(err, engine.ErrNotPending), errors.Is(err, engine.ErrNotActive):
		RespondWithError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Str("id", id.String()).Msg(fallback)
		RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}
