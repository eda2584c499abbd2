package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/linerelay/internal/http/dto"
	svc "github.com/dropDatabas3/linerelay/internal/http/services/auth"
)

type fakeCallbackService struct {
	result *dto.CallbackResponse
	err    error
}

func (f *fakeCallbackService) Complete(context.Context, dto.CallbackRequest) (*dto.CallbackResponse, error) {
	return f.result, f.err
}

func postCallback(t *testing.T, ctrl *CallbackController, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/line-callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ctrl.Callback(rec, req)
	return rec
}

func TestCallbackSuccess(t *testing.T) {
	ctrl := NewCallbackController(&fakeCallbackService{
		result: &dto.CallbackResponse{
			CustomToken:    "jwt",
			IsExistingUser: true,
			User:           &dto.AuthUser{UID: "U1", Provider: "line", ProviderID: "U1"},
		},
	})

	rec := postCallback(t, ctrl, `{"code":"c","state":"s"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp dto.CallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "jwt", resp.CustomToken)
	require.True(t, resp.IsExistingUser)
}

func TestCallbackInvalidJSON(t *testing.T) {
	ctrl := NewCallbackController(&fakeCallbackService{})

	rec := postCallback(t, ctrl, `{`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_JSON")
}

func TestCallbackErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"code missing", svc.ErrCodeMissing, http.StatusBadRequest, "MISSING_FIELDS"},
		{"csrf mismatch", svc.ErrCsrfMismatch, http.StatusBadRequest, "STATE_MISMATCH"},
		{"session expired", svc.ErrSessionExpired, http.StatusBadRequest, "AUTH_SESSION_EXPIRED"},
		{"nonce mismatch", svc.ErrNonceMismatch, http.StatusBadRequest, "NONCE_MISMATCH"},
		{"token exchange", svc.ErrTokenExchange, http.StatusBadRequest, "TOKEN_EXCHANGE_FAILED"},
		{"profile fetch", svc.ErrProfileFetch, http.StatusBadRequest, "PROFILE_FETCH_FAILED"},
		{"identity storage", svc.ErrIdentityStorage, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := NewCallbackController(&fakeCallbackService{err: tc.err})

			rec := postCallback(t, ctrl, `{"code":"c","state":"s"}`)

			require.Equal(t, tc.wantStatus, rec.Code)
			require.Contains(t, rec.Body.String(), tc.wantCode)
		})
	}
}

func TestCallbackMethodNotAllowed(t *testing.T) {
	ctrl := NewCallbackController(&fakeCallbackService{})

	req := httptest.NewRequest(http.MethodGet, "/line-callback", nil)
	rec := httptest.NewRecorder()
	ctrl.Callback(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
