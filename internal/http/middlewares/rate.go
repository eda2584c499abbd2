package middlewares

import (
	"math"
	"net/http"
	"strconv"

	"github.com/dropDatabas3/linerelay/internal/http/errors"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
	"github.com/dropDatabas3/linerelay/internal/rate"
)

// WithRateLimit limita requests por IP usando el limiter dado.
// Si el limiter falla (p.ej. Redis caído) se deja pasar el request.
func WithRateLimit(limiter rate.Limiter, whitelist []string) Middleware {
	allow := make(map[string]struct{}, len(whitelist))
	for _, ip := range whitelist {
		allow[ip] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if _, ok := allow[ip]; ok {
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable, allowing request",
					logger.Op("rate_limit"),
					logger.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				retry := int(math.Ceil(res.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
