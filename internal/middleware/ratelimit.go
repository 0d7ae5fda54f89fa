// File: internal/middleware/ratelimit.go
package middleware

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/iyunix/go-rigadvisor/internal/ratelimit"
)

// RateLimitMiddleware rejects clients that exceed limiter's budget with 429.
func RateLimitMiddleware(limiter *ratelimit.MemoryRateLimiter, name string, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ratelimit.GetClientIP(r)
			allowed, info := limiter.Allow(clientIP)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))

			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := int(math.Ceil(info.RetryAfter.Seconds()))
			logger.Warn("rate limit exceeded", "limiter", name, "client_ip", clientIP, "banned", info.Banned, "retry_after_s", retryAfter)

			if retryAfter > 0 {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error":      "Too many requests. Please try again later.",
				"retryAfter": retryAfter,
				"banned":     info.Banned,
			})
		})
	}
}
