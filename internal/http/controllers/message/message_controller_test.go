package message

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/linerelay/internal/http/dto"
	svc "github.com/dropDatabas3/linerelay/internal/http/services/message"
	msgline "github.com/dropDatabas3/linerelay/internal/messaging/line"
	"github.com/dropDatabas3/linerelay/internal/store"
	"github.com/dropDatabas3/linerelay/internal/store/memory"
)

type fakeJobService struct {
	job    *store.MessageJob
	err    error
	recent []*store.MessageJob
}

func (f *fakeJobService) Submit(context.Context, dto.SendMessageRequest) (*store.MessageJob, error) {
	return f.job, f.err
}

func (f *fakeJobService) Process(context.Context, string) error { return nil }

func (f *fakeJobService) ListRecent(context.Context, int) ([]*store.MessageJob, error) {
	return f.recent, nil
}

func TestSendQueuesJob(t *testing.T) {
	jobs := &fakeJobService{job: &store.MessageJob{
		ID:     "job-1",
		Target: store.MessageTarget{Type: store.TargetAll},
		Status: store.JobPending,
	}}
	ctrl := NewMessageController(jobs, memory.New())

	body := `{"content":{"type":"text","text":"hola"},"target":{"type":"all"}}`
	req := httptest.NewRequest(http.MethodPost, "/send-message", strings.NewReader(body))
	rec := httptest.NewRecorder()
	ctrl.Send(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "job-1", resp.MessageID)
	require.Equal(t, "queued", resp.Status)
}

func TestSendErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"content missing", svc.ErrContentMissing, http.StatusBadRequest, "MISSING_FIELDS"},
		{"target missing", svc.ErrTargetMissing, http.StatusBadRequest, "MISSING_FIELDS"},
		{"invalid content", msgline.ErrInvalidContent, http.StatusBadRequest, "INVALID_MESSAGE_CONTENT"},
		{"unsupported target", svc.ErrUnsupportedTargetType, http.StatusBadRequest, "UNSUPPORTED_TARGET_TYPE"},
		{"bad schedule", svc.ErrBadSchedule, http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := NewMessageController(&fakeJobService{err: tc.err}, memory.New())

			body := `{"content":{"type":"text","text":"x"},"target":{"type":"all"}}`
			req := httptest.NewRequest(http.MethodPost, "/send-message", strings.NewReader(body))
			rec := httptest.NewRecorder()
			ctrl.Send(rec, req)

			require.Equal(t, tc.wantStatus, rec.Code)
			require.Contains(t, rec.Body.String(), tc.wantCode)
		})
	}
}

func TestListUsersReturnsActiveOnly(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.UpsertRecipient(ctx, &store.Recipient{
		LineUserID: "U1", DisplayName: "Alice", FollowedAt: time.Now(), IsActive: true,
	}))
	require.NoError(t, st.UpsertRecipient(ctx, &store.Recipient{
		LineUserID: "U2", DisplayName: "Bob", FollowedAt: time.Now(), IsActive: false,
	}))

	ctrl := NewMessageController(&fakeJobService{}, st)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	ctrl.ListUsers(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ListUsersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "U1", resp.Users[0].UserID)
}

func TestListMessages(t *testing.T) {
	jobs := &fakeJobService{recent: []*store.MessageJob{
		{
			ID:      "job-2",
			Content: store.MessageContent{Type: "text", Text: "hola"},
			Target:  store.MessageTarget{Type: store.TargetAll},
			Status:  store.JobCompleted,
		},
	}}
	ctrl := NewMessageController(jobs, memory.New())

	req := httptest.NewRequest(http.MethodGet, "/messages?limit=5", nil)
	rec := httptest.NewRecorder()
	ctrl.ListMessages(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "job-2", resp.Messages[0].ID)
	require.Equal(t, store.JobCompleted, resp.Messages[0].Status)
}

func TestListMessagesRejectsBadLimit(t *testing.T) {
	ctrl := NewMessageController(&fakeJobService{}, memory.New())

	req := httptest.NewRequest(http.MethodGet, "/messages?limit=abc", nil)
	rec := httptest.NewRecorder()
	ctrl.ListMessages(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
