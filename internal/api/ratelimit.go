package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Stale buckets are swept at most once per sweepEvery; an IP idle longer
// than staleAfter is forgotten.
const (
	sweepEvery = 5 * time.Minute
	staleAfter = 10 * time.Minute
)

// rateLimiter keeps one token bucket per client IP. There is no background
// goroutine: sweeping piggybacks on allow.
type rateLimiter struct {
	mu        sync.Mutex
	perIP     map[string]*ipBucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter builds a limiter refilling r tokens per second with the
// given burst per IP.
func newRateLimiter(r float64, burst int) *rateLimiter {
	return &rateLimiter{
		perIP:     make(map[string]*ipBucket),
		limit:     rate.Limit(r),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// allow reports whether a request from ip may proceed, consuming a token.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweepLocked(now)

	b, ok := rl.perIP[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.perIP[ip] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

func (rl *rateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) <= sweepEvery {
		return
	}
	for ip, b := range rl.perIP {
		if now.Sub(b.lastSeen) > staleAfter {
			delete(rl.perIP, ip)
		}
	}
	rl.lastSweep = now
}

// rateLimitMiddleware rejects over-limit requests with 429 and a Retry-After
// hint.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !rl.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the address a request should be accounted against.
// Proxy headers (X-Real-IP, then the first X-Forwarded-For hop) are honored
// only when trustProxy is set, and only when they parse as real IPs so
// arbitrary header strings cannot become limiter keys.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}

		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
