package middlewares

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/dropDatabas3/linerelay/internal/observability/logger"
)

type ctxKey string

const ctxRequestIDKey ctxKey = "request_id"

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithRequestID genera o propaga un Request ID único por request, lo expone en
// la respuesta y deja un logger scoped en el contexto.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if rid == "" {
				var b [16]byte
				_, _ = rand.Read(b[:])
				rid = hex.EncodeToString(b[:])
			}
			w.Header().Set("X-Request-ID", rid)

			ctx := setRequestID(r.Context(), rid)
			scoped := logger.L().With(
				logger.RequestID(rid),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)
			ctx = logger.ToContext(ctx, scoped)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP extrae la IP del cliente, considerando proxies.
func ClientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
