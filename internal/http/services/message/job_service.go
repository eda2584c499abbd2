package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/linerelay/internal/http/dto"
	msg "github.com/dropDatabas3/linerelay/internal/messaging/line"
	"github.com/dropDatabas3/linerelay/internal/metrics"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
	"github.com/dropDatabas3/linerelay/internal/store"
)

// Submit-time errors
var (
	ErrContentMissing = fmt.Errorf("message content is required")
	ErrTargetMissing  = fmt.Errorf("message target is required")
	ErrBadSchedule    = fmt.Errorf("scheduledAt must be RFC3339")
)

// JobService encola y procesa los trabajos de envío.
type JobService interface {
	// Submit valida, persiste el job y lo procesa de inmediato si ya venció.
	Submit(ctx context.Context, req dto.SendMessageRequest) (*store.MessageJob, error)
	// Process toma el job vía CAS y ejecuta el fan-out. Un job ya tomado por
	// otro worker se ignora sin error.
	Process(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int) ([]*store.MessageJob, error)
}

// JobDeps contains dependencies for the job service.
type JobDeps struct {
	Jobs       store.JobRepository
	Resolver   *TargetResolver
	Dispatcher *Dispatcher
}

type jobService struct {
	jobs       store.JobRepository
	resolver   *TargetResolver
	dispatcher *Dispatcher
}

func NewJobService(deps JobDeps) JobService {
	return &jobService{jobs: deps.Jobs, resolver: deps.Resolver, dispatcher: deps.Dispatcher}
}

func (s *jobService) Submit(ctx context.Context, req dto.SendMessageRequest) (*store.MessageJob, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("message.job"),
		logger.Op("Submit"),
	)

	if strings.TrimSpace(req.Content.Type) == "" {
		return nil, ErrContentMissing
	}
	if strings.TrimSpace(req.Target.Type) == "" {
		return nil, ErrTargetMissing
	}

	// Validación fail-fast del contenido antes de persistir nada.
	if _, err := msg.FormatContent(req.Content.Type, req.Content.Text, req.Content.ImageURL,
		req.Content.AltText, req.Content.Template); err != nil {
		return nil, err
	}
	switch req.Target.Type {
	case store.TargetAll, store.TargetSingle, store.TargetList:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTargetType, req.Target.Type)
	}

	var scheduledAt *time.Time
	if req.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSchedule, err)
		}
		scheduledAt = &t
	}

	job := &store.MessageJob{
		ID: uuid.NewString(),
		Content: store.MessageContent{
			Type:     req.Content.Type,
			Text:     req.Content.Text,
			ImageURL: req.Content.ImageURL,
			AltText:  req.Content.AltText,
			Template: req.Content.Template,
		},
		Target: store.MessageTarget{
			Type:    req.Target.Type,
			UserID:  req.Target.UserID,
			UserIDs: req.Target.UserIDs,
		},
		Status:      store.JobPending,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   req.CreatedBy,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	log.Info("job queued", logger.JobID(job.ID), logger.TargetType(job.Target.Type))

	// Los jobs futuros quedan pending hasta que el sweeper los venza.
	if scheduledAt == nil || !scheduledAt.After(time.Now()) {
		go func() {
			bg := logger.ToContext(context.Background(), logger.L())
			if err := s.Process(bg, job.ID); err != nil {
				logger.L().Error("immediate job processing failed",
					logger.JobID(job.ID), logger.Err(err))
			}
		}()
	}
	return job, nil
}

// Process ejecuta el ciclo completo de un job. El CAS a processing se escribe
// ANTES de cualquier lectura de destinatarios: dos disparos concurrentes del
// mismo job no pueden despachar los dos.
func (s *jobService) Process(ctx context.Context, id string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("message.job"),
		logger.Op("Process"),
		logger.JobID(id),
	)

	claimed, err := s.jobs.MarkJobProcessing(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		log.Debug("job already claimed, skipping")
		return nil
	}

	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return err
	}
	job.Status = store.JobProcessing
	started := time.Now().UTC()

	msgs, err := msg.FormatContent(job.Content.Type, job.Content.Text, job.Content.ImageURL,
		job.Content.AltText, job.Content.Template)
	if err != nil {
		return s.finishFailed(ctx, job, started, err)
	}

	recipients, err := s.resolver.Resolve(ctx, job.Target)
	if err != nil {
		return s.finishFailed(ctx, job, started, err)
	}

	if len(recipients) == 0 {
		now := time.Now().UTC()
		job.Status = store.JobCompleted
		job.ProcessedAt = &now
		job.TotalRecipients = 0
		job.SuccessCount = 0
		job.Error = "No target users found"
		if err := s.jobs.UpdateJob(ctx, job); err != nil {
			return err
		}
		metrics.RecordJob(store.JobCompleted, job.Target.Type, time.Since(started))
		log.Info("job completed with empty target")
		return nil
	}

	result := s.dispatcher.Dispatch(ctx, recipients, msgs)

	now := time.Now().UTC()
	job.ProcessedAt = &now
	job.TotalRecipients = len(recipients)
	job.SuccessCount = result.SuccessCount
	job.FailedUserIDs = result.FailedUserIDs
	job.Error = result.Error
	if result.AllSuccess {
		job.Status = store.JobCompleted
	} else {
		job.Status = store.JobFailed
	}
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		return err
	}
	metrics.RecordJob(job.Status, job.Target.Type, time.Since(started))
	log.Info("job finished",
		zap.String("status", job.Status),
		logger.Recipients(job.TotalRecipients),
		logger.Count(job.SuccessCount),
	)
	return nil
}

func (s *jobService) finishFailed(ctx context.Context, job *store.MessageJob, started time.Time, cause error) error {
	now := time.Now().UTC()
	job.Status = store.JobFailed
	job.ProcessedAt = &now
	job.Error = cause.Error()
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		return err
	}
	metrics.RecordJob(store.JobFailed, job.Target.Type, time.Since(started))
	logger.From(ctx).Warn("job failed", logger.JobID(job.ID), logger.Err(cause))
	return nil
}

func (s *jobService) ListRecent(ctx context.Context, limit int) ([]*store.MessageJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.jobs.ListRecentJobs(ctx, limit)
}
