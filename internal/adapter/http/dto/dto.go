package dto

// ToolCallRequest is the body of POST /api/v1/tools/call.
type ToolCallRequest struct {
	Operation string         `json:"operation" binding:"required,max=64,safe_id"`
	Params    map[string]any `json:"params"`
}

// HealthStatus reports one dependency probe.
type HealthStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string                  `json:"status"`
	Checks map[string]HealthStatus `json:"checks"`
}
