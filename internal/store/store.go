package store

import (
	"context"
	"time"
)

// IdentityRepository persiste las cuentas de la app y sus proveedores vinculados.
type IdentityRepository interface {
	GetIdentity(ctx context.Context, uid string) (*Identity, error)
	PutIdentity(ctx context.Context, id *Identity) error
	ListIdentities(ctx context.Context) ([]*Identity, error)
}

// RecipientRepository persiste los seguidores del canal.
type RecipientRepository interface {
	GetRecipient(ctx context.Context, lineUserID string) (*Recipient, error)
	// GetRecipients lee hasta GetBatchMax ids; devuelve sólo los que existen.
	GetRecipients(ctx context.Context, lineUserIDs []string) ([]*Recipient, error)
	ListActiveRecipients(ctx context.Context) ([]*Recipient, error)
	UpsertRecipient(ctx context.Context, r *Recipient) error
	SetRecipientActive(ctx context.Context, lineUserID string, active bool) error
	TouchRecipient(ctx context.Context, lineUserID string, at time.Time) error
}

// JobRepository persiste los trabajos de envío.
type JobRepository interface {
	CreateJob(ctx context.Context, j *MessageJob) error
	GetJob(ctx context.Context, id string) (*MessageJob, error)
	// MarkJobProcessing pasa el job de pending a processing de forma atómica.
	// Devuelve false si otro worker ya lo tomó o no está pending.
	MarkJobProcessing(ctx context.Context, id string) (bool, error)
	UpdateJob(ctx context.Context, j *MessageJob) error
	// ListDueJobs devuelve jobs pending cuyo scheduledAt ya venció (o es nulo).
	ListDueJobs(ctx context.Context, now time.Time) ([]*MessageJob, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*MessageJob, error)
}

// Store agrupa los tres repositorios que expone cada adaptador.
type Store interface {
	IdentityRepository
	RecipientRepository
	JobRepository
}
