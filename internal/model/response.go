package model

// APIResponse is the JSON envelope returned by all endpoints
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError represents an error response body
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}
