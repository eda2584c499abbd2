// Package health contiene los controllers de health check.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dropDatabas3/linerelay/internal/http/dto"
	httperrors "github.com/dropDatabas3/linerelay/internal/http/errors"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
)

// Check es una verificación de readiness con nombre.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// HealthController expone liveness y readiness.
type HealthController struct {
	checks []Check
}

// NewHealthController creates a new HealthController.
func NewHealthController(checks ...Check) *HealthController {
	return &HealthController{checks: checks}
}

// Live handles GET /healthz
func (c *HealthController) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "ok"})
}

// Ready handles GET /readyz
//
// Corre todas las verificaciones registradas con un timeout corto. Cualquier
// falla marca el servicio como no listo.
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("HealthController.Ready"))

	for _, check := range c.checks {
		if err := check.Fn(ctx); err != nil {
			log.Warn("readiness check failed",
				logger.String("check", check.Name),
				logger.Err(err),
			)
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail(check.Name+" unavailable"))
			return
		}
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
