// Package models - API response types and error handling.
// Consistent JSON structure across endpoints, omitempty on optional fields,
// machine-readable error codes alongside human-readable messages.
package models

import (
	"time"
)

// CheckResponse is the wire form of one rate limit decision.
type CheckResponse struct {
	Allowed    bool    `json:"allowed"`
	Policy     string  `json:"policy"`
	Limit      int     `json:"limit"`
	Remaining  int     `json:"remaining"`
	RetryAfter float64 `json:"retry_after_seconds"`  // 0 when allowed
	ResetAt    int64   `json:"reset_at"`             // unix seconds
	RequestID  string  `json:"request_id,omitempty"` // server-assigned
}

// PolicyStats are the live counters for one policy, reset on restart.
type PolicyStats struct {
	Total          uint64  `json:"total_requests"`
	Allowed        uint64  `json:"allowed_requests"`
	Denied         uint64  `json:"denied_requests"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// PolicyStatus pairs a policy's configuration with its live counters.
type PolicyStatus struct {
	Policy Policy      `json:"policy"`
	Stats  PolicyStats `json:"stats"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Timestamp time.Time      `json:"timestamp"`
	Uptime    string         `json:"uptime"`
	Policies  []PolicyStatus `json:"policies"`
	Store     StoreStatus    `json:"store"`
}

// StoreStatus reports key store health and occupancy.
type StoreStatus struct {
	Type      string `json:"type"`
	Healthy   bool   `json:"healthy"`
	TrackedKeys int64 `json:"tracked_keys"`
}

// ListPoliciesResponse is the body of GET /api/v1/policies.
type ListPoliciesResponse struct {
	Policies   []Policy `json:"policies"`
	TotalCount int      `json:"total_count"`
}

// ErrorResponse is the uniform error envelope for all endpoints.
type ErrorResponse struct {
	Error     string            `json:"error"`                // Always "error"
	Message   string            `json:"message"`              // Human-readable description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

// NewErrorResponse creates an error response with the current timestamp.
func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// WithDetails attaches field-specific details to an error response.
func (er *ErrorResponse) WithDetails(details map[string]string) *ErrorResponse {
	er.Details = details
	return er
}

// HealthCheckResponse is the body of GET /health.
type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// ComponentHealth describes the health of one subsystem.
type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHealthCheckResponse creates a health response with the given status.
func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

// AddComponent records the health of a named subsystem.
func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Health status values
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusDegraded  = "degraded"  // Partial functionality
	StatusUnhealthy = "unhealthy" // Major failure
)

// Error code constants for machine-readable error classification
const (
	ErrorCodeNotFound           = "NOT_FOUND"            // 404: Resource doesn't exist
	ErrorCodePolicyNotFound     = "POLICY_NOT_FOUND"     // 404: Policy doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"          // 400: Invalid request format
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"      // 400: Invalid request data
	ErrorCodeValidation         = "VALIDATION_ERROR"     // 422: Input validation failed
	ErrorCodeInternalError      = "INTERNAL_ERROR"       // 500: Server-side error
	ErrorCodeUnauthorized       = "UNAUTHORIZED"         // 401: Authentication required
	ErrorCodeForbidden          = "FORBIDDEN"            // 403: Permission denied
	ErrorCodeConflict           = "CONFLICT"             // 409: Resource conflict
	ErrorCodeRateLimited        = "RATE_LIMIT_EXCEEDED"  // 429: Over budget
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE"  // 503: Store unreachable
)
