package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/whobuiltmyroad/backend/internal/apperr"
	"github.com/whobuiltmyroad/backend/internal/ratelimit"
	"github.com/whobuiltmyroad/backend/pkg/clientip"
)

// RateKey is the rate-limit bucket key for a request: the authenticated
// username when there is one, the client IP otherwise.
func RateKey(r *http.Request) string {
	if id, ok := IdentityFrom(r); ok && id.Username != "" {
		return "user:" + id.Username
	}
	return "ip:" + clientip.RealClientIP(r)
}

// ClassRateLimit applies a per-action-class budget to every request on
// the route. Write routes check their class inside the service instead,
// so validation failures there still consume budget consistently.
func ClassRateLimit(limiter ratelimit.Limiter, class ratelimit.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := limiter.Admit(r.Context(), RateKey(r), class, time.Now())
			if err != nil {
				retryAfter := 60
				var ae *apperr.Error
				if errors.As(err, &ae) && ae.RetryAfter > 0 {
					retryAfter = ae.RetryAfter
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"status":"error","message":%q}`, apperr.Message(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
