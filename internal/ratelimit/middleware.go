package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"ratelimiter/internal/models"
	"ratelimiter/internal/store"
)

// KeyFunc derives the rate limit key for an incoming request.
type KeyFunc func(r *http.Request) string

// ClientKey is the default key derivation: client IP plus request path, so
// each client gets an independent budget per resource.
func ClientKey(r *http.Request) string {
	return ClientIP(r) + ":" + r.URL.Path
}

// ClientIP extracts the client IP from the request, checking proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// MiddlewareOption configures the enforcement middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	keyFunc  KeyFunc
	failOpen bool
}

// WithKeyFunc replaces the default client-IP-plus-path key derivation.
func WithKeyFunc(fn KeyFunc) MiddlewareOption {
	return func(c *middlewareConfig) { c.keyFunc = fn }
}

// WithFailOpen allows requests through when the key store is unreachable.
// The default is fail-closed: store faults answer 503.
func WithFailOpen(failOpen bool) MiddlewareOption {
	return func(c *middlewareConfig) { c.failOpen = failOpen }
}

// Middleware returns HTTP middleware enforcing the given policy. It always
// sets X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset;
// denied requests additionally get Retry-After and a 429 JSON body.
func Middleware(limiter *Limiter, policy models.Policy, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{keyFunc: ClientKey}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.keyFunc(r)

			decision, err := limiter.Check(r.Context(), key, policy)
			if err != nil {
				handleCheckError(w, r, err, cfg.failOpen, next)
				return
			}

			// Always set rate limit headers
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))

			if !decision.Allowed {
				retryAfterSecs := int(decision.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse("Rate limit exceeded", models.ErrorCodeRateLimited)
				json.NewEncoder(w).Encode(errorResp)

				slog.Warn("Rate limit exceeded",
					"key", key,
					"policy", policy.Name,
					"limit", decision.Limit,
					"retry_after", retryAfterSecs,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// handleCheckError applies the fail-open/fail-closed policy for store
// faults. Non-store errors (invalid policy, corrupt state) always answer
// 500: they indicate a bug, not an outage.
func handleCheckError(w http.ResponseWriter, r *http.Request, err error, failOpen bool, next http.Handler) {
	if errors.Is(err, store.ErrUnavailable) {
		if failOpen {
			slog.Warn("Key store unavailable, failing open", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		slog.Error("Key store unavailable, failing closed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(models.NewErrorResponse("Rate limiter unavailable", models.ErrorCodeServiceUnavailable))
		return
	}

	slog.Error("Rate limit check failed", "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(models.NewErrorResponse("Rate limit check failed", models.ErrorCodeInternalError))
}
