package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ratelimiter/internal/models"
	"ratelimiter/internal/ratelimit"
	"ratelimiter/internal/store"
)

// DecisionRecorder receives every check outcome, for metrics.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, policy string, allowed bool, elapsed time.Duration)
}

// Handlers contains HTTP handlers for the rate limiter API
type Handlers struct {
	limiter   *ratelimit.Limiter
	registry  *ratelimit.Registry
	config    *models.Config
	version   string
	startedAt time.Time
	recorder  DecisionRecorder
}

// HandlerOption configures optional handler behavior.
type HandlerOption func(*Handlers)

// WithDecisionRecorder attaches a metrics recorder for check outcomes.
func WithDecisionRecorder(r DecisionRecorder) HandlerOption {
	return func(h *Handlers) { h.recorder = r }
}

// NewHandlers creates a new handlers instance
func NewHandlers(limiter *ratelimit.Limiter, registry *ratelimit.Registry, config *models.Config, version string, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		limiter:   limiter,
		registry:  registry,
		config:    config,
		version:   version,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Check handles rate limit decision requests
// POST /api/v1/check
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	var req models.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeValidation, err.Error())
		return
	}

	policy, ok := h.registry.Resolve(req.Policy)
	if !ok {
		if req.Policy == "" {
			h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "No policy named and no default policy configured")
			return
		}
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodePolicyNotFound,
			fmt.Sprintf("Policy %q not found", req.Policy))
		return
	}

	start := time.Now()
	decision, err := h.limiter.Check(r.Context(), req.Key, policy)
	if err != nil {
		h.writeCheckError(w, err)
		return
	}
	if h.recorder != nil {
		h.recorder.RecordDecision(r.Context(), policy.Name, decision.Allowed, time.Since(start))
	}

	response := models.CheckResponse{
		Allowed:    decision.Allowed,
		Policy:     policy.Name,
		Limit:      decision.Limit,
		Remaining:  decision.Remaining,
		RetryAfter: decision.RetryAfter.Seconds(),
		ResetAt:    decision.ResetAt.Unix(),
		RequestID:  uuid.NewString(),
	}

	// The decision endpoint answers 200 for both outcomes: the caller is a
	// gateway asking a question, not the client being limited.
	h.writeJSONResponse(w, http.StatusOK, response)
}

// Status handles service status requests
// GET /api/v1/status
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	response := models.StatusResponse{
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	}

	for _, p := range h.registry.List() {
		response.Policies = append(response.Policies, models.PolicyStatus{
			Policy: p,
			Stats:  h.limiter.Stats(p.Name),
		})
	}

	response.Store = h.storeStatus(r.Context())

	h.writeJSONResponse(w, http.StatusOK, response)
}

// storeStatus pings the key store and reports its occupancy.
func (h *Handlers) storeStatus(ctx context.Context) models.StoreStatus {
	status := models.StoreStatus{Type: h.config.Store.Type}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.limiter.Store().Ping(pingCtx); err != nil {
		return status
	}
	status.Healthy = true

	if stats, err := h.limiter.Store().Stats(pingCtx); err == nil {
		status.TrackedKeys = stats.Keys
	}
	return status
}

// HealthCheck handles health check requests
// GET /health
// Answers 503 when the key store is unreachable so load balancers can
// rotate the instance out.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version
	response.Uptime = time.Since(h.startedAt).Round(time.Second).String()

	response.AddComponent("api", models.StatusHealthy, "API is operational")

	pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	statusCode := http.StatusOK
	if err := h.limiter.Store().Ping(pingCtx); err != nil {
		response.Status = models.StatusUnhealthy
		response.AddComponent("store", models.StatusUnhealthy, err.Error())
		statusCode = http.StatusServiceUnavailable
	} else {
		response.AddComponent("store", models.StatusHealthy, "Key store is operational")
	}

	h.writeJSONResponse(w, statusCode, response)
}

// writeCheckError maps limiter errors to HTTP responses. Store outages are
// 503; invalid policies and corrupt state are server-side bugs, 500.
func (h *Handlers) writeCheckError(w http.ResponseWriter, err error) {
	var cfgErr *models.ConfigError
	switch {
	case errors.Is(err, store.ErrUnavailable):
		h.writeErrorResponse(w, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable, "Key store unavailable")
	case errors.As(err, &cfgErr):
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, cfgErr.Error())
	default:
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Rate limit check failed")
	}
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more can be sent.
		fmt.Printf("Error encoding JSON response: %v\n", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	errorResp := models.NewErrorResponse(message, errorCode)
	errorResp.RequestID = uuid.NewString()

	h.writeJSONResponse(w, statusCode, errorResp)
}
