package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/linerelay/internal/http/dto"
	httperrors "github.com/dropDatabas3/linerelay/internal/http/errors"
	svc "github.com/dropDatabas3/linerelay/internal/http/services/auth"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
)

// CallbackController handles the LINE Login callback endpoint.
type CallbackController struct {
	service svc.CallbackService
}

// NewCallbackController creates a new CallbackController.
func NewCallbackController(service svc.CallbackService) *CallbackController {
	return &CallbackController{service: service}
}

// Callback handles POST /line-callback
//
// El cliente reenvía el code y state recibidos de LINE (más el nonce de
// respaldo si lo guardó). La respuesta incluye la credencial de sesión salvo
// en flujos de link o cuando el emisor de credenciales no está disponible.
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController.Callback"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	var req dto.CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	result, err := c.service.Complete(ctx, req)
	if err != nil {
		log.Warn("callback failed", logger.Err(err))
		switch {
		case errors.Is(err, svc.ErrCodeMissing):
			httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("code required"))
		case errors.Is(err, svc.ErrCsrfMismatch):
			httperrors.WriteError(w, httperrors.ErrStateMismatch)
		case errors.Is(err, svc.ErrSessionExpired):
			httperrors.WriteError(w, httperrors.ErrAuthSessionExpired)
		case errors.Is(err, svc.ErrNonceMismatch):
			httperrors.WriteError(w, httperrors.ErrNonceMismatch)
		case errors.Is(err, svc.ErrTokenExchange):
			httperrors.WriteError(w, httperrors.ErrTokenExchangeFailed)
		case errors.Is(err, svc.ErrProfileFetch):
			httperrors.WriteError(w, httperrors.ErrProfileFetchFailed)
		case errors.Is(err, svc.ErrIdentityStorage):
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail("identity storage unavailable"))
		default:
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, result)
}
