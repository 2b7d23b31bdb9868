package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for the per-client rate limiter.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate allowed per client.
	RequestsPerSecond float64

	// Burst is the maximum number of requests allowed to exceed the rate
	// momentarily. A burst of 1 enforces strictly sequential requests, which
	// is used on the coupon-apply route to keep at most one application
	// attempt in flight per user.
	Burst int

	// TTL is how long an idle client's limiter is retained before cleanup.
	TTL time.Duration
}

// DefaultRateLimitConfig returns limits suitable for storefront mutations.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		TTL:               10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns middleware that applies a token-bucket limit per client
// key. The key is the authenticated user ID when present, falling back to the
// remote address.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	var (
		mu      sync.Mutex
		clients = make(map[string]*clientLimiter)
	)

	// Periodically drop limiters for clients that have gone quiet.
	go func() {
		ticker := time.NewTicker(cfg.TTL)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			for key, cl := range clients {
				if time.Since(cl.lastSeen) > cfg.TTL {
					delete(clients, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := UserIDFromContext(r.Context())
			if key == "" {
				key = r.Header.Get("X-User-ID")
			}
			if key == "" {
				key = r.RemoteAddr
			}

			mu.Lock()
			cl, ok := clients[key]
			if !ok {
				cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
				clients[key] = cl
			}
			cl.lastSeen = time.Now()
			mu.Unlock()

			if !cl.limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "RATE_LIMITED",
					"message": "too many requests, slow down",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
