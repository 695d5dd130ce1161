package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"ratelimiter/internal/models"
)

// Permission represents the different permission levels
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

type contextKey string

const apiKeyContextKey contextKey = "api_key"

// SecurityContext represents the security information for a request
type SecurityContext struct {
	APIKey *models.APIKey
}

// HasPermission checks if the security context has the required permission
func (sc *SecurityContext) HasPermission(required Permission) bool {
	if sc == nil || sc.APIKey == nil {
		return false
	}
	return sc.APIKey.HasPermission(string(required))
}

// GetSecurityContext extracts security context from request context
func GetSecurityContext(r *http.Request) *SecurityContext {
	if apiKey, ok := r.Context().Value(apiKeyContextKey).(*models.APIKey); ok {
		return &SecurityContext{APIKey: apiKey}
	}
	return nil
}

// RequirePermission creates middleware that enforces a specific permission
func RequirePermission(required Permission) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			securityContext := GetSecurityContext(r)

			if securityContext == nil || !securityContext.HasPermission(required) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)

				errorResp := models.NewErrorResponse(
					"Insufficient permissions for this operation",
					models.ErrorCodeForbidden,
				)
				json.NewEncoder(w).Encode(errorResp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// authMiddleware handles API key authentication against the configured keys.
// Keys live in configuration as SHA-256 hashes; the raw key never touches
// disk.
func authMiddleware(keys []models.APIKey) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "Authorization required")
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				writeAuthError(w, "Invalid authorization format")
				return
			}
			token := authHeader[len(prefix):]

			validKey := matchAPIKey(keys, token)
			if validKey == nil || !validKey.Enabled {
				writeAuthError(w, "Invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyContextKey, validKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// matchAPIKey finds the configured key matching the raw token. Every key is
// checked so the comparison count does not leak which keys exist.
func matchAPIKey(keys []models.APIKey, token string) *models.APIKey {
	var found *models.APIKey
	for i := range keys {
		if keys[i].Matches(token) {
			found = &keys[i]
		}
	}
	return found
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	errorResp := models.NewErrorResponse(message, models.ErrorCodeUnauthorized)
	json.NewEncoder(w).Encode(errorResp)
}

// getAPIKeyName safely extracts the API key name for logging
func getAPIKeyName(securityContext *SecurityContext) string {
	if securityContext == nil || securityContext.APIKey == nil {
		return "anonymous"
	}
	if securityContext.APIKey.Name != "" {
		return securityContext.APIKey.Name
	}
	return "unnamed-key"
}
