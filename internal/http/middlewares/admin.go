package middlewares

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/linerelay/internal/http/errors"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
)

const adminKeyHeader = "X-Admin-API-Key"

// RequireAdminKey valida la API key de administración contra su hash bcrypt.
// Con hash vacío el middleware rechaza todo: los endpoints de administración
// nunca quedan abiertos por configuración incompleta.
func RequireAdminKey(apiKeyHash string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(adminKeyHeader))
			if apiKeyHash == "" || key == "" {
				errors.WriteError(w, errors.ErrAPIKeyInvalid)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(apiKeyHash), []byte(key)); err != nil {
				logger.From(r.Context()).Warn("admin key rejected",
					logger.Op("admin_auth"),
					logger.ClientIP(ClientIP(r)),
				)
				errors.WriteError(w, errors.ErrAPIKeyInvalid)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
