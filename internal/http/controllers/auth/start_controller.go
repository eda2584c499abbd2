package auth

import (
	"errors"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/linerelay/internal/http/errors"
	svc "github.com/dropDatabas3/linerelay/internal/http/services/auth"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
)

// StartController handles the LINE Login entry endpoint.
type StartController struct {
	service svc.StartService
}

// NewStartController creates a new StartController.
func NewStartController(service svc.StartService) *StartController {
	return &StartController{service: service}
}

// Start handles GET /auth/line/start
//
// Redirige al usuario a la página de autorización de LINE. El query param
// `action` distingue login de link; cualquier otro valor se trata como login.
func (c *StartController) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("StartController.Start"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	action := strings.TrimSpace(r.URL.Query().Get("action"))

	result, err := c.service.Begin(ctx, action)
	if err != nil {
		log.Error("start failed", logger.Err(err))
		if errors.Is(err, svc.ErrMissingConfiguration) {
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail("line login is not configured"))
			return
		}
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	http.Redirect(w, r, result.AuthorizeURL, http.StatusFound)

	log.Debug("redirecting to provider", logger.Provider("line"))
}
