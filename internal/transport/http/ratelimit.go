package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cotiza/cotiza/internal/tenant"
)

type tenantLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements per-tenant rate limiting
type RateLimiter struct {
	tenants map[string]*tenantLimiter
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	now     func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		tenants: make(map[string]*tenantLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// GetLimiter returns the limiter of a tenant
func (rl *RateLimiter) GetLimiter(tenantID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	tl, exists := rl.tenants[tenantID]
	if !exists {
		tl = &tenantLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.tenants[tenantID] = tl
	}
	tl.lastSeen = rl.now()
	return tl.limiter
}

// Prune drops limiters idle for longer than idle and returns how many
// were removed.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	removed := 0
	for id, tl := range rl.tenants {
		if tl.lastSeen.Before(cutoff) {
			delete(rl.tenants, id)
			removed++
		}
	}
	return removed
}

// Run prunes idle limiters every interval until ctx ends.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Prune(interval)
		}
	}
}

// RateLimitMiddleware creates a middleware for rate limiting. It must run
// after AuthMiddleware; requests are charged to the bound tenant.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := tenant.FromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if !rl.GetLimiter(tc.TenantID).Allow() {
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
