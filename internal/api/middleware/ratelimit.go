package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/ratelimit"
)

// Rate limit response headers
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
)

// Allower admits or rejects one request for a caller key.
type Allower interface {
	Allow(key string) (ratelimit.Result, error)
}

// RateLimit rejects callers that exceed their window with 429 Too Many
// Requests. Callers are keyed by their masked remote address, so RealIP
// should run first when the service sits behind a proxy.
func RateLimit(limiter Allower) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(ratelimit.MaskIP(r.RemoteAddr))

			w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
			w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))

			if err != nil {
				var limitErr *ratelimit.LimitError
				if errors.As(err, &limitErr) {
					w.Header().Set(HeaderRetryAfter, strconv.Itoa(limitErr.RetryAfter))
				}
				shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests, "Too many requests", err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
