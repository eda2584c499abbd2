// Package pg es el adaptador de persistencia sobre Postgres (pgxpool).
package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/linerelay/internal/store"
)

type Store struct{ pool *pgxpool.Pool }

// Config afina el pool; los ceros dejan los defaults de pgxpool.
type Config struct {
	MaxOpenConns    int
	ConnMaxLifetime string
}

func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (migraciones/healthcheck).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// ====================== IDENTITIES ======================

func (s *Store) GetIdentity(ctx context.Context, uid string) (*store.Identity, error) {
	const q = `SELECT uid, display_name, avatar_url, email, linked_providers, created_at, updated_at
	           FROM app_identity WHERE uid = $1`
	var id store.Identity
	err := s.pool.QueryRow(ctx, q, uid).Scan(
		&id.UID, &id.DisplayName, &id.AvatarURL, &id.Email,
		&id.LinkedProviders, &id.CreatedAt, &id.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *Store) PutIdentity(ctx context.Context, id *store.Identity) error {
	const q = `INSERT INTO app_identity (uid, display_name, avatar_url, email, linked_providers, created_at, updated_at)
	           VALUES ($1,$2,$3,$4,$5,$6,$7)
	           ON CONFLICT (uid) DO UPDATE SET
	             display_name = EXCLUDED.display_name,
	             avatar_url = EXCLUDED.avatar_url,
	             email = EXCLUDED.email,
	             linked_providers = EXCLUDED.linked_providers,
	             updated_at = EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, q, id.UID, id.DisplayName, id.AvatarURL, id.Email,
		id.LinkedProviders, id.CreatedAt, id.UpdatedAt)
	return err
}

func (s *Store) ListIdentities(ctx context.Context) ([]*store.Identity, error) {
	const q = `SELECT uid, display_name, avatar_url, email, linked_providers, created_at, updated_at
	           FROM app_identity ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*store.Identity
	for rows.Next() {
		var id store.Identity
		if err := rows.Scan(&id.UID, &id.DisplayName, &id.AvatarURL, &id.Email,
			&id.LinkedProviders, &id.CreatedAt, &id.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &id)
	}
	return out, rows.Err()
}

// ====================== RECIPIENTS ======================

const recipientCols = `line_user_id, display_name, picture_url, followed_at, is_active, last_message_at`

func scanRecipient(row pgx.Row) (*store.Recipient, error) {
	var r store.Recipient
	err := row.Scan(&r.LineUserID, &r.DisplayName, &r.PictureURL,
		&r.FollowedAt, &r.IsActive, &r.LastMessageAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetRecipient(ctx context.Context, lineUserID string) (*store.Recipient, error) {
	const q = `SELECT ` + recipientCols + ` FROM recipient WHERE line_user_id = $1`
	return scanRecipient(s.pool.QueryRow(ctx, q, lineUserID))
}

func (s *Store) GetRecipients(ctx context.Context, ids []string) ([]*store.Recipient, error) {
	if len(ids) > store.GetBatchMax {
		return nil, store.ErrBatchTooBig
	}
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `SELECT ` + recipientCols + ` FROM recipient WHERE line_user_id = ANY($1)`
	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecipients(rows)
}

func (s *Store) ListActiveRecipients(ctx context.Context) ([]*store.Recipient, error) {
	const q = `SELECT ` + recipientCols + ` FROM recipient WHERE is_active ORDER BY followed_at`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecipients(rows)
}

func collectRecipients(rows pgx.Rows) ([]*store.Recipient, error) {
	var out []*store.Recipient
	for rows.Next() {
		var r store.Recipient
		if err := rows.Scan(&r.LineUserID, &r.DisplayName, &r.PictureURL,
			&r.FollowedAt, &r.IsActive, &r.LastMessageAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *Store) UpsertRecipient(ctx context.Context, r *store.Recipient) error {
	const q = `INSERT INTO recipient (line_user_id, display_name, picture_url, followed_at, is_active, last_message_at)
	           VALUES ($1,$2,$3,$4,$5,$6)
	           ON CONFLICT (line_user_id) DO UPDATE SET
	             display_name = EXCLUDED.display_name,
	             picture_url = EXCLUDED.picture_url,
	             followed_at = EXCLUDED.followed_at,
	             is_active = EXCLUDED.is_active`
	_, err := s.pool.Exec(ctx, q, r.LineUserID, r.DisplayName, r.PictureURL,
		r.FollowedAt, r.IsActive, r.LastMessageAt)
	return err
}

func (s *Store) SetRecipientActive(ctx context.Context, lineUserID string, active bool) error {
	const q = `UPDATE recipient SET is_active = $2 WHERE line_user_id = $1`
	tag, err := s.pool.Exec(ctx, q, lineUserID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) TouchRecipient(ctx context.Context, lineUserID string, at time.Time) error {
	const q = `UPDATE recipient SET last_message_at = $2 WHERE line_user_id = $1`
	tag, err := s.pool.Exec(ctx, q, lineUserID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ====================== JOBS ======================

const jobCols = `id, content, target, status, scheduled_at, created_at, processed_at,
	created_by, total_recipients, success_count, failed_user_ids, error`

func (s *Store) CreateJob(ctx context.Context, j *store.MessageJob) error {
	const q = `INSERT INTO message_job
	             (id, content, target, status, scheduled_at, created_at, processed_at,
	              created_by, total_recipients, success_count, failed_user_ids, error)
	           VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := s.pool.Exec(ctx, q, j.ID, j.Content, j.Target, j.Status,
		j.ScheduledAt, j.CreatedAt, j.ProcessedAt, j.CreatedBy,
		j.TotalRecipients, j.SuccessCount, j.FailedUserIDs, j.Error)
	return err
}

func scanJob(row pgx.Row) (*store.MessageJob, error) {
	var j store.MessageJob
	err := row.Scan(&j.ID, &j.Content, &j.Target, &j.Status,
		&j.ScheduledAt, &j.CreatedAt, &j.ProcessedAt, &j.CreatedBy,
		&j.TotalRecipients, &j.SuccessCount, &j.FailedUserIDs, &j.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*store.MessageJob, error) {
	const q = `SELECT ` + jobCols + ` FROM message_job WHERE id = $1`
	return scanJob(s.pool.QueryRow(ctx, q, id))
}

// MarkJobProcessing usa un UPDATE condicional: si otro worker ganó la carrera
// el WHERE no matchea y RowsAffected es 0.
func (s *Store) MarkJobProcessing(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE message_job SET status = 'processing' WHERE id = $1 AND status = 'pending'`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) UpdateJob(ctx context.Context, j *store.MessageJob) error {
	const q = `UPDATE message_job SET
	             status = $2, processed_at = $3, total_recipients = $4,
	             success_count = $5, failed_user_ids = $6, error = $7
	           WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, j.ID, j.Status, j.ProcessedAt,
		j.TotalRecipients, j.SuccessCount, j.FailedUserIDs, j.Error)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListDueJobs(ctx context.Context, now time.Time) ([]*store.MessageJob, error) {
	const q = `SELECT ` + jobCols + ` FROM message_job
	           WHERE status = 'pending' AND (scheduled_at IS NULL OR scheduled_at <= $1)
	           ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *Store) ListRecentJobs(ctx context.Context, limit int) ([]*store.MessageJob, error) {
	const q = `SELECT ` + jobCols + ` FROM message_job ORDER BY created_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]*store.MessageJob, error) {
	var out []*store.MessageJob
	for rows.Next() {
		var j store.MessageJob
		if err := rows.Scan(&j.ID, &j.Content, &j.Target, &j.Status,
			&j.ScheduledAt, &j.CreatedAt, &j.ProcessedAt, &j.CreatedBy,
			&j.TotalRecipients, &j.SuccessCount, &j.FailedUserIDs, &j.Error); err != nil {
			return nil, err
		}
		out = append(out, &j)
	}
	return out, rows.Err()
}
