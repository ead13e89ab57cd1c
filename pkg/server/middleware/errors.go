package middleware

import (
	"encoding/json"
	"net/http"
)

// Error types carried in JSON error bodies.
const (
	ErrorTypeRateLimited = "rate_limit_exceeded"
	ErrorTypeWaitTimeout = "rate_limit_wait_timeout"
	ErrorTypeInternal    = "internal_error"
)

// ErrorBody is the JSON error envelope returned by the server.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	RetryAfterMs uint64 `json:"retry_after_ms,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, code int, detail ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: detail})
}
