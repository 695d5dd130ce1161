package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"ratelimiter/internal/models"
	"ratelimiter/internal/ratelimit"
)

// guardEntry holds a client's limiter and its last access time for cleanup.
type guardEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// AdminGuard throttles mutating admin requests per client IP. It is separate
// from the decision engine on purpose: guarding the control plane must keep
// working even when the key store backing the engine is down.
type AdminGuard struct {
	rate            rate.Limit
	burst           int
	cleanupInterval time.Duration

	mu      sync.Mutex
	entries map[string]*guardEntry
	done    chan struct{}
	closed  bool
}

// NewAdminGuard creates a guard with the given per-second rate and burst.
// It starts a background goroutine that evicts clients not seen within 2x
// the cleanup interval.
func NewAdminGuard(perSecond float64, burst int, cleanupInterval time.Duration) *AdminGuard {
	g := &AdminGuard{
		rate:            rate.Limit(perSecond),
		burst:           burst,
		cleanupInterval: cleanupInterval,
		entries:         make(map[string]*guardEntry),
		done:            make(chan struct{}),
	}
	go g.cleanup()
	return g
}

// Allow checks whether a request from the given client should be allowed.
func (g *AdminGuard) Allow(clientIP string) bool {
	g.mu.Lock()
	e, exists := g.entries[clientIP]
	if !exists {
		e = &guardEntry{limiter: rate.NewLimiter(g.rate, g.burst)}
		g.entries[clientIP] = e
	}
	e.lastSeen = time.Now()
	g.mu.Unlock()

	return e.limiter.Allow()
}

// Middleware answers 429 for clients over the admin budget.
func (g *AdminGuard) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.Allow(ratelimit.ClientIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				errorResp := models.NewErrorResponse("Too many admin requests", models.ErrorCodeRateLimited)
				json.NewEncoder(w).Encode(errorResp)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Close stops the background cleanup goroutine.
func (g *AdminGuard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.closed = true
		close(g.done)
	}
}

// cleanup periodically evicts clients not seen within 2x the cleanup interval.
func (g *AdminGuard) cleanup() {
	ticker := time.NewTicker(g.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.evictStale()
		}
	}
}

func (g *AdminGuard) evictStale() {
	cutoff := time.Now().Add(-2 * g.cleanupInterval)
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, e := range g.entries {
		if e.lastSeen.Before(cutoff) {
			delete(g.entries, key)
		}
	}
}
