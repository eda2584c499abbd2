package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/linerelay/internal/observability/logger"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// WithLogging registra cada request con método, path, status y duración.
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.From(r.Context()).Info("request completed",
				logger.Status(sw.status),
				logger.Duration(time.Since(start)),
				logger.ClientIP(ClientIP(r)),
			)
		})
	}
}
