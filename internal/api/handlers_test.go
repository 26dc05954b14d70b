package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deployops/rollout/internal/approval"
	"github.com/deployops/rollout/internal/engine"
	"github.com/deployops/rollout/internal/metrics"
)

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	return engine.Result{Success: true}
}

func (noopExecutor) Validate(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	return engine.Result{Success: true}
}

func (noopExecutor) Rollback(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	return engine.Result{Success: true}
}

func setupTestServer(t *testing.T) (*Server, *engine.Orchestrator) {
	t.Helper()

	logger := zerolog.Nop()
	bus := approval.NewLocalBus()
	collector := metrics.NewStaticCollector(nil)
	gates := engine.NewGateEvaluator(collector, bus, logger)

	registry := engine.NewRegistry()
	registry.Register(engine.StrategyCustom, noopExecutor{})

	orch := engine.NewOrchestrator(registry, gates, nil, logger)
	return NewServer(orch, bus, nil), orch
}

func createTestDeployment(t *testing.T, server *Server) uuid.UUID {
	t.Helper()

	body := map[string]interface{}{
		"name":    "api-test",
		"version": "v1.0.0",
		"mode":    "sequential",
		"stages": []map[string]interface{}{
			{"name": "deploy", "strategy": "custom"},
		},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deployments", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var snapshot engine.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	return snapshot.ID
}

func TestCreateDeployment(t *testing.T) {
	server, _ := setupTestServer(t)

	id := createTestDeployment(t, server)
	assert.NotEqual(t, uuid.Nil, id)
}

func TestCreateDeploymentValidationErrors(t *testing.T) {
	server, _ := setupTestServer(t)

	body := []byte(`{"version":"v1.0.0","stages":[{"name":"deploy"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deployments", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Details, "validation problems should be listed")
}

func TestGetDeployment(t *testing.T) {
	server, _ := setupTestServer(t)
	id := createTestDeployment(t, server)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/deployments/%s", id), nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var snapshot engine.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, engine.DeploymentPending, snapshot.Status)
}

func TestGetDeploymentNotFound(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/deployments/%s", uuid.New()), nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDeploymentInvalidID(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deployments/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartDeployment(t *testing.T) {
	server, orch := setupTestServer(t)
	id := createTestDeployment(t, server)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/deployments/%s/start", id), nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.NoError(t, orch.Wait(context.Background(), id))

	snapshot, err := orch.Status(id)
	require.NoError(t, err)
	assert.Equal(t, engine.DeploymentCompleted, snapshot.Status)
}

func TestStartDeploymentTwice(t *testing.T) {
	server, orch := setupTestServer(t)
	id := createTestDeployment(t, server)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/deployments/%s/start", id), nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.NoError(t, orch.Wait(context.Background(), id))

	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/deployments/%s/start", id), nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPauseDeploymentNotRunning(t *testing.T) {
	server, _ := setupTestServer(t)
	id := createTestDeployment(t, server)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/deployments/%s/pause", id), nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApproveStageRequiresApprover(t *testing.T) {
	server, _ := setupTestServer(t)
	id := createTestDeployment(t, server)

	body := []byte(`{"note":"looks good"}`)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/deployments/%s/stages/deploy/approve", id), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveStage(t *testing.T) {
	server, _ := setupTestServer(t)
	id := createTestDeployment(t, server)

	body := []byte(`{"approver":"alice","note":"verified in staging"}`)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/deployments/%s/stages/deploy/approve", id), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListDeployments(t *testing.T) {
	server, _ := setupTestServer(t)
	createTestDeployment(t, server)
	createTestDeployment(t, server)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deployments", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ListDeploymentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
}

func TestHistoryUnavailableWithoutDatabase(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCORSPreflightAllowsOnlyServedMethods(t *testing.T) {
	server, _ := setupTestServer(t)

	preflight := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/deployments", nil)
		req.Header.Set("Origin", "http://dashboard.local")
		req.Header.Set("Access-Control-Request-Method", method)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := preflight(http.MethodPost)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec = preflight(http.MethodDelete)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}
