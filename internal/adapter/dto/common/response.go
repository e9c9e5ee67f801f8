package common

// ListResponse represents a list response
type ListResponse struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status      string            `json:"status"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks,omitempty"`
}
