package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// DefaultRetryAfterSeconds is the default value for the Retry-After header
// when a rate limit is exceeded.
const DefaultRetryAfterSeconds = 1

// Middleware enforces limiter per key(r). Requests with an empty key pass
// through. Throttled requests get Retry-After and are answered by limited,
// or by a plain 429 when limited is nil.
func Middleware(limiter *RateLimiter, key func(r *http.Request) string, limited http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			rateLimiter := limiter.GetLimiter(k)
			if !rateLimiter.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(DefaultRetryAfterSeconds))
				w.Header().Set("X-RateLimit-Remaining", "0")
				if limited != nil {
					limited(w, r)
					return
				}
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte("Too Many Requests"))
				return
			}

			remaining := int(rateLimiter.Tokens())
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by remote address, preferring the first
// X-Forwarded-For hop when a proxy set one.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
