package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"ratelimiter/internal/models"
)

// ListPolicies handles policy list requests
// GET /api/v1/policies
func (h *Handlers) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies := h.registry.List()

	response := models.ListPoliciesResponse{
		Policies:   policies,
		TotalCount: len(policies),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetPolicy handles single policy requests
// GET /api/v1/policies/{name}
func (h *Handlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	policy, ok := h.registry.Get(name)
	if !ok {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodePolicyNotFound,
			fmt.Sprintf("Policy %q not found", name))
		return
	}

	h.writeJSONResponse(w, http.StatusOK, policy)
}

// CreatePolicy handles policy registration requests
// POST /api/v1/policies
// Requires authentication and 'write' permission
func (h *Handlers) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var policy models.Policy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	if _, exists := h.registry.Get(policy.Name); exists {
		h.writeErrorResponse(w, http.StatusConflict, models.ErrorCodeConflict,
			fmt.Sprintf("Policy %q already exists", policy.Name))
		return
	}

	if err := h.registry.Set(policy); err != nil {
		h.writePolicyError(w, err)
		return
	}

	slog.Info("Policy created",
		"policy", policy.Name,
		"algorithm", policy.Algorithm,
		"api_key", getAPIKeyName(GetSecurityContext(r)))

	h.writeJSONResponse(w, http.StatusCreated, policy)
}

// UpdatePolicy handles policy replacement requests
// PUT /api/v1/policies/{name}
// Requires authentication and 'write' permission. The change applies to the
// next decision; existing key states carry over.
func (h *Handlers) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	if _, ok := h.registry.Get(name); !ok {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodePolicyNotFound,
			fmt.Sprintf("Policy %q not found", name))
		return
	}

	var policy models.Policy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	if policy.Name != "" && policy.Name != name {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest,
			"Policy name in body does not match URL")
		return
	}
	policy.Name = name

	if err := h.registry.Set(policy); err != nil {
		h.writePolicyError(w, err)
		return
	}

	slog.Info("Policy updated",
		"policy", policy.Name,
		"algorithm", policy.Algorithm,
		"api_key", getAPIKeyName(GetSecurityContext(r)))

	h.writeJSONResponse(w, http.StatusOK, policy)
}

// DeletePolicy handles policy removal requests
// DELETE /api/v1/policies/{name}
// Requires authentication and 'admin' permission
func (h *Handlers) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	if err := h.registry.Delete(name); err != nil {
		if _, ok := h.registry.Get(name); !ok {
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodePolicyNotFound,
				fmt.Sprintf("Policy %q not found", name))
			return
		}
		h.writeErrorResponse(w, http.StatusConflict, models.ErrorCodeConflict, err.Error())
		return
	}

	slog.Info("Policy deleted",
		"policy", name,
		"api_key", getAPIKeyName(GetSecurityContext(r)))

	w.WriteHeader(http.StatusNoContent)
}

// writePolicyError maps registration errors: invalid parameters answer 422
// with field details, anything else 500.
func (h *Handlers) writePolicyError(w http.ResponseWriter, err error) {
	var cfgErr *models.ConfigError
	if errors.As(err, &cfgErr) {
		errorResp := models.NewErrorResponse(cfgErr.Error(), models.ErrorCodeValidation).
			WithDetails(map[string]string{cfgErr.Field: cfgErr.Reason})
		h.writeJSONResponse(w, http.StatusUnprocessableEntity, errorResp)
		return
	}
	h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
}
