// Package scheduler barre periódicamente los jobs pending vencidos y los
// procesa. El pickup vía CAS hace que múltiples instancias no dupliquen envíos.
package scheduler

import (
	"context"
	"time"

	"github.com/dropDatabas3/linerelay/internal/http/services/message"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
	"github.com/dropDatabas3/linerelay/internal/store"
)

type Sweeper struct {
	Jobs     store.JobRepository
	Service  message.JobService
	Interval time.Duration
}

func New(jobs store.JobRepository, svc message.JobService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{Jobs: jobs, Service: svc, Interval: interval}
}

// Run barre hasta que el contexto se cancele.
func (s *Sweeper) Run(ctx context.Context) error {
	log := logger.L().With(logger.Component("scheduler"))
	log.Info("sweeper started", logger.Duration(s.Interval))

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	log := logger.L().With(logger.Component("scheduler"), logger.Op("sweep"))

	due, err := s.Jobs.ListDueJobs(ctx, time.Now().UTC())
	if err != nil {
		log.Error("due scan failed", logger.Err(err))
		return
	}
	if len(due) == 0 {
		return
	}
	log.Info("due jobs found", logger.Count(len(due)))

	for _, job := range due {
		if err := s.Service.Process(logger.ToContext(ctx, log), job.ID); err != nil {
			log.Error("due job processing failed", logger.JobID(job.ID), logger.Err(err))
		}
	}
}
