package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deployops/rollout/internal/approval"
	"github.com/deployops/rollout/internal/engine"
	"github.com/deployops/rollout/internal/state"
)

// Server represents the HTTP API server
type Server struct {
	router            *chi.Mux
	deploymentHandler *DeploymentHandler
	historyHandler    *HistoryHandler
}

// NewServer creates a new API server. repo may be nil when no archive
// database is configured.
func NewServer(orch *engine.Orchestrator, bus approval.Bus, repo *state.Repository) *Server {
	s := &Server{
		router:            chi.NewRouter(),
		deploymentHandler: NewDeploymentHandler(orch, bus),
		historyHandler:    NewHistoryHandler(repo),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(RequestLogger)
	s.router.Use(CORSMiddleware())
	s.router.Use(middleware.RealIP)

	// Health check
	s.router.Get("/health", s.healthCheck)

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Deployment routes
		r.Route("/deployments", func(r chi.Router) {
			r.Get("/", s.deploymentHandler.ListDeployments)
			r.Post("/", s.deploymentHandler.CreateDeployment)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.deploymentHandler.GetDeployment)
				r.Post("/start", s.deploymentHandler.StartDeployment)
				r.Post("/pause", s.deploymentHandler.PauseDeployment)
				r.Post("/resume", s.deploymentHandler.ResumeDeployment)
				r.Post("/stages/{stage}/approve", s.deploymentHandler.ApproveStage)
			})
		})

		// Archived deployment routes
		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.historyHandler.ListHistory)
			r.Get("/status/{status}", s.historyHandler.GetHistoryByStatus)
			r.Get("/{id}", s.historyHandler.GetHistory)
		})
	})
}

// healthCheck handles GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}

	RespondWithJSON(w, http.StatusOK, response)
}

// Handler returns the http.Handler for the server
func (s *Server) Handler() http.Handler {
	return s.router
}
