package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/linerelay/internal/http/dto"
)

type fakeRouter struct {
	calls []dto.WebhookPayload
}

func (f *fakeRouter) Route(_ context.Context, payload dto.WebhookPayload) {
	f.calls = append(f.calls, payload)
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestReceiveRejectsBadSignature(t *testing.T) {
	router := &fakeRouter{}
	ctrl := NewWebhookController("secret", router)

	body := `{"destination":"U1","events":[]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", "not-a-valid-signature")
	rec := httptest.NewRecorder()

	ctrl.Receive(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, router.calls)
}

func TestReceiveRejectsMissingSignature(t *testing.T) {
	router := &fakeRouter{}
	ctrl := NewWebhookController("secret", router)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	ctrl.Receive(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReceiveRoutesSignedPayload(t *testing.T) {
	router := &fakeRouter{}
	ctrl := NewWebhookController("secret", router)

	body := `{"destination":"Ubot","events":[{"type":"message","replyToken":"rt","source":{"type":"user","userId":"U1"},"message":{"id":"m1","type":"text","text":"hola"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", sign("secret", body))
	rec := httptest.NewRecorder()

	ctrl.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, router.calls, 1)
	require.Equal(t, "Ubot", router.calls[0].Destination)
	require.Len(t, router.calls[0].Events, 1)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReceiveAcknowledgesUnparseableBody(t *testing.T) {
	router := &fakeRouter{}
	ctrl := NewWebhookController("secret", router)

	body := `{"events": not json`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", sign("secret", body))
	rec := httptest.NewRecorder()

	ctrl.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, router.calls)
}

func TestReceiveMethodNotAllowed(t *testing.T) {
	ctrl := NewWebhookController("secret", &fakeRouter{})

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()

	ctrl.Receive(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "POST", rec.Header().Get("Allow"))
}
