package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"ratelimiter/internal/models"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// WithEnforcement adds the service's own rate limit enforcement middleware
// in front of every route except health checks.
func WithEnforcement(middleware func(http.Handler) http.Handler) RouteOption {
	return func(r *mux.Router) {
		r.Use(func(next http.Handler) http.Handler {
			limited := middleware(next)
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if req.URL.Path == "/health" || req.URL.Path == "/api/v1/health" {
					next.ServeHTTP(w, req)
					return
				}
				limited.ServeHTTP(w, req)
			})
		})
	}
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, guard *AdminGuard, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	publicAPI := api.PathPrefix("").Subrouter()
	publicAPI.HandleFunc("/check", handlers.Check).Methods("POST")
	publicAPI.HandleFunc("/check", methodNotAllowedHandler).Methods("GET", "PUT", "DELETE", "PATCH")
	publicAPI.HandleFunc("/status", handlers.Status).Methods("GET")

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/health", handlers.HealthCheck).Methods("GET")

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	// Policy reads stay public; mutations require auth when enabled and are
	// always throttled per client by the admin guard.
	api.HandleFunc("/policies", handlers.ListPolicies).Methods("GET")
	api.HandleFunc("/policies/{name}", handlers.GetPolicy).Methods("GET")

	if config.Security.EnableAuth {
		writeAPI := api.PathPrefix("/policies").Subrouter()
		writeAPI.Use(guard.Middleware())
		writeAPI.Use(authMiddleware(config.Security.APIKeys))
		writeAPI.Use(RequirePermission(PermissionWrite))
		writeAPI.HandleFunc("", handlers.CreatePolicy).Methods("POST")
		writeAPI.HandleFunc("/{name}", handlers.UpdatePolicy).Methods("PUT")

		adminAPI := api.PathPrefix("/policies").Subrouter()
		adminAPI.Use(guard.Middleware())
		adminAPI.Use(authMiddleware(config.Security.APIKeys))
		adminAPI.Use(RequirePermission(PermissionAdmin))
		adminAPI.HandleFunc("/{name}", handlers.DeletePolicy).Methods("DELETE")
	} else {
		mutateAPI := api.PathPrefix("/policies").Subrouter()
		mutateAPI.Use(guard.Middleware())
		mutateAPI.HandleFunc("", handlers.CreatePolicy).Methods("POST")
		mutateAPI.HandleFunc("/{name}", handlers.UpdatePolicy).Methods("PUT")
		mutateAPI.HandleFunc("/{name}", handlers.DeletePolicy).Methods("DELETE")
	}

	return router
}

// methodNotAllowedHandler handles requests with invalid HTTP methods
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	errorResp := models.NewErrorResponse("Method not allowed", models.ErrorCodeInvalidRequest)
	json.NewEncoder(w).Encode(errorResp)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered", "error", err, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				errorResp := models.NewErrorResponse("Internal server error", models.ErrorCodeInternalError)
				json.NewEncoder(w).Encode(errorResp)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
