package middleware

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/stark-secure/starkmole-integrity/responses"
	"github.com/stark-secure/starkmole-integrity/utils"
)

// RateLimiter keeps one token bucket per key (session id). It throttles the
// ingestion path only; the analytic rate-limiting check inside the pipeline
// is independent of it.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow reports whether one more request for key fits in its bucket.
// A zero rate disables limiting.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// Forget drops the bucket for a finished session.
func (rl *RateLimiter) Forget(key string) {
	rl.mu.Lock()
	delete(rl.limiters, key)
	rl.mu.Unlock()
}

// Middleware rejects requests whose key exhausted its bucket with a 429.
func (rl *RateLimiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(keyFunc(r)) {
				utils.HandleError(w, responses.TooManyRequestsError{Msg: "Too many actions, slow down."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
