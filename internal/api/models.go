package api

// ApproveRequest represents a manual gate approval
type ApproveRequest struct {
	Approver string `json:"approver"`
	Note     string `json:"note,omitempty"`
}

// StartDeploymentRequest represents optional start parameters
type StartDeploymentRequest struct {
	Context map[string]interface{} `json:"context,omitempty"`
}

// ListDeploymentsResponse represents a paginated deployment listing
type ListDeploymentsResponse struct {
	Deployments interface{} `json:"deployments"`
	Total       int         `json:"total"`
	Limit       int         `json:"limit,omitempty"`
	Offset      int         `json:"offset,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Version  string `json:"version"`
}
