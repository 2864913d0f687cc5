package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit bounds the dispatch endpoint with a single token bucket.
// One workflow, one bucket; limit 0 means unlimited.
func RateLimit(limit float64, burst int) func(http.Handler) http.Handler {
	var limiter *rate.Limiter
	if limit > 0 {
		limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
