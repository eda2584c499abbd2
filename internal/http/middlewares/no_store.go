package middlewares

import "net/http"

// WithNoStore agrega Cache-Control: no-store a la respuesta.
// Los endpoints del flujo de login nunca deben cachearse.
func WithNoStore() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
