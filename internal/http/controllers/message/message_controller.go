// Package message contiene los controllers de administración de mensajes.
package message

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dropDatabas3/linerelay/internal/http/dto"
	httperrors "github.com/dropDatabas3/linerelay/internal/http/errors"
	svc "github.com/dropDatabas3/linerelay/internal/http/services/message"
	msgline "github.com/dropDatabas3/linerelay/internal/messaging/line"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
	"github.com/dropDatabas3/linerelay/internal/store"
)

// MessageController maneja el encolado y la consulta de message jobs.
type MessageController struct {
	jobs       svc.JobService
	recipients store.RecipientRepository
}

// NewMessageController creates a new MessageController.
func NewMessageController(jobs svc.JobService, recipients store.RecipientRepository) *MessageController {
	return &MessageController{jobs: jobs, recipients: recipients}
}

// Send handles POST /send-message
func (c *MessageController) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("MessageController.Send"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	var req dto.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	job, err := c.jobs.Submit(ctx, req)
	if err != nil {
		log.Warn("submit rejected", logger.Err(err))
		switch {
		case errors.Is(err, svc.ErrContentMissing):
			httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("content required"))
		case errors.Is(err, svc.ErrTargetMissing):
			httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("target required"))
		case errors.Is(err, msgline.ErrInvalidContent):
			httperrors.WriteError(w, httperrors.ErrInvalidMessageContent.WithDetail(err.Error()))
		case errors.Is(err, svc.ErrUnsupportedTargetType):
			httperrors.WriteError(w, httperrors.ErrUnsupportedTargetType)
		case errors.Is(err, svc.ErrBadSchedule):
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("scheduledAt must be RFC3339"))
		default:
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	log.Info("job accepted", logger.JobID(job.ID), logger.TargetType(job.Target.Type))
	writeJSON(w, http.StatusOK, dto.SendMessageResponse{MessageID: job.ID, Status: "queued"})
}

// ListUsers handles GET /users
func (c *MessageController) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("MessageController.ListUsers"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	recs, err := c.recipients.ListActiveRecipients(ctx)
	if err != nil {
		log.Error("failed to list recipients", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	views := make([]dto.RecipientView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, dto.RecipientView{
			UserID:        rec.LineUserID,
			DisplayName:   rec.DisplayName,
			PictureURL:    rec.PictureURL,
			FollowedAt:    rec.FollowedAt,
			IsActive:      rec.IsActive,
			LastMessageAt: rec.LastMessageAt,
		})
	}
	writeJSON(w, http.StatusOK, dto.ListUsersResponse{Users: views, Count: len(views)})
}

// ListMessages handles GET /messages?limit=N
func (c *MessageController) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("MessageController.ListMessages"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	jobs, err := c.jobs.ListRecent(ctx, limit)
	if err != nil {
		log.Error("failed to list jobs", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	views := make([]dto.JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, dto.JobView{
			ID: j.ID,
			Content: dto.ContentBody{
				Type:     j.Content.Type,
				Text:     j.Content.Text,
				ImageURL: j.Content.ImageURL,
				AltText:  j.Content.AltText,
				Template: j.Content.Template,
			},
			Target: dto.TargetBody{
				Type:    j.Target.Type,
				UserID:  j.Target.UserID,
				UserIDs: j.Target.UserIDs,
			},
			Status:          j.Status,
			ScheduledAt:     j.ScheduledAt,
			CreatedAt:       j.CreatedAt,
			ProcessedAt:     j.ProcessedAt,
			CreatedBy:       j.CreatedBy,
			TotalRecipients: j.TotalRecipients,
			SuccessCount:    j.SuccessCount,
			FailedUserIDs:   j.FailedUserIDs,
			Error:           j.Error,
		})
	}
	writeJSON(w, http.StatusOK, dto.ListJobsResponse{Messages: views, Count: len(views)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
