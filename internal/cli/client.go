// Package cli provides the HTTP client the rollout command-line tool uses
// to talk to an orchestrator server.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deployops/rollout/internal/engine"
	"github.com/deployops/rollout/internal/state"
)

// Client talks to the orchestrator HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given server base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type errorPayload struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

// do sends a request and decodes the response into out (when out is non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload errorPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Message != "" {
			if len(payload.Details) > 0 {
				return fmt.Errorf("%s: %v", payload.Message, payload.Details)
			}
			return fmt.Errorf("%s", payload.Message)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// CreateDeployment submits a deployment definition.
func (c *Client) CreateDeployment(ctx context.Context, def *engine.Definition) (*engine.Snapshot, error) {
	var snapshot engine.Snapshot
	if err := c.do(ctx, http.MethodPost, "/api/v1/deployments", def, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// StartDeployment starts a pending deployment.
func (c *Client) StartDeployment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/deployments/%s/start", id), nil, nil)
}

// PauseDeployment pauses a running deployment.
func (c *Client) PauseDeployment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/deployments/%s/pause", id), nil, nil)
}

// ResumeDeployment resumes a paused deployment.
func (c *Client) ResumeDeployment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/deployments/%s/resume", id), nil, nil)
}

// GetDeployment fetches the current state of a deployment.
func (c *Client) GetDeployment(ctx context.Context, id string) (*engine.Snapshot, error) {
	var snapshot engine.Snapshot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/deployments/%s", id), nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

type listResponse struct {
	Deployments []engine.Snapshot `json:"deployments"`
	Total       int               `json:"total"`
}

// ListDeployments lists every deployment the server knows about.
func (c *Client) ListDeployments(ctx context.Context) ([]engine.Snapshot, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/deployments", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Deployments, nil
}

type historyResponse struct {
	Deployments []state.DeploymentRecord `json:"deployments"`
	Total       int                      `json:"total"`
}

// ListHistory lists archived deployments.
func (c *Client) ListHistory(ctx context.Context, limit, offset int) ([]state.DeploymentRecord, error) {
	var resp historyResponse
	path := fmt.Sprintf("/api/v1/history?limit=%d&offset=%d", limit, offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Deployments, nil
}

// ApproveStage records a manual gate approval.
func (c *Client) ApproveStage(ctx context.Context, id, stage, approver, note string) error {
	body := map[string]string{"approver": approver, "note": note}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/deployments/%s/stages/%s/approve", id, stage), body, nil)
}
