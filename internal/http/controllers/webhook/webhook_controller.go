// Package webhook contiene el controller de eventos entrantes de LINE.
package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/dropDatabas3/linerelay/internal/http/dto"
	httperrors "github.com/dropDatabas3/linerelay/internal/http/errors"
	svc "github.com/dropDatabas3/linerelay/internal/http/services/webhook"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
)

const signatureHeader = "X-Line-Signature"

// maxBodyBytes limita el tamaño del cuerpo del webhook.
const maxBodyBytes = 1 << 20

// WebhookController recibe los eventos del Messaging API.
type WebhookController struct {
	channelSecret string
	router        svc.RouterService
}

// NewWebhookController creates a new WebhookController.
func NewWebhookController(channelSecret string, router svc.RouterService) *WebhookController {
	return &WebhookController{channelSecret: channelSecret, router: router}
}

// Receive handles POST /webhook
//
// La firma se valida sobre el cuerpo crudo ANTES de parsear JSON. Una vez
// aceptada la firma siempre se responde 200: LINE reintenta ante cualquier
// otro status y eso duplicaría eventos.
func (c *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("WebhookController.Receive"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("failed to read webhook body", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("unreadable body"))
		return
	}

	signature := r.Header.Get(signatureHeader)
	if !svc.VerifySignature(c.channelSecret, body, signature) {
		log.Warn("webhook signature rejected")
		httperrors.WriteError(w, httperrors.ErrSignatureInvalid)
		return
	}

	var payload dto.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		// Firma válida pero cuerpo malformado: se loguea y se confirma igual.
		log.Warn("webhook payload unparseable", logger.Err(err))
		writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "ok"})
		return
	}

	c.router.Route(ctx, payload)

	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
