package web

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter tracks one token bucket per client address. State is
// process-local and non-durable: it resets on restart and is not shared
// across instances, which is acceptable for a best-effort submission limit.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// newRateLimiter allows perMinute requests per client address.
func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

// allow reports whether the given client address may proceed.
func (l *rateLimiter) allow(addr string) bool {
	l.mu.Lock()
	limiter, ok := l.visitors[addr]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.visitors[addr] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// middleware rejects over-limit requests with 429.
func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}

		if !l.allow(addr) {
			writeJSON(w, http.StatusTooManyRequests, okResponse{Error: "rate_limited"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
