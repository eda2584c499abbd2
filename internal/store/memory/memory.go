// Package memory es el adaptador de persistencia en memoria. Se usa en dev
// y en tests; todo vive detrás de un mutex y se pierde al reiniciar.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/linerelay/internal/store"
)

type Store struct {
	mu         sync.RWMutex
	identities map[string]*store.Identity
	recipients map[string]*store.Recipient
	jobs       map[string]*store.MessageJob
}

func New() *Store {
	return &Store{
		identities: make(map[string]*store.Identity),
		recipients: make(map[string]*store.Recipient),
		jobs:       make(map[string]*store.MessageJob),
	}
}

// --- Identities ---

func (s *Store) GetIdentity(_ context.Context, uid string) (*store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identities[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *id
	cp.LinkedProviders = append([]string(nil), id.LinkedProviders...)
	return &cp, nil
}

func (s *Store) PutIdentity(_ context.Context, id *store.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *id
	cp.LinkedProviders = append([]string(nil), id.LinkedProviders...)
	s.identities[id.UID] = &cp
	return nil
}

func (s *Store) ListIdentities(_ context.Context) ([]*store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.Identity, 0, len(s.identities))
	for _, id := range s.identities {
		cp := *id
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- Recipients ---

func (s *Store) GetRecipient(_ context.Context, lineUserID string) (*store.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recipients[lineUserID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) GetRecipients(_ context.Context, ids []string) ([]*store.Recipient, error) {
	if len(ids) > store.GetBatchMax {
		return nil, store.ErrBatchTooBig
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.Recipient, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.recipients[id]; ok {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ListActiveRecipients(_ context.Context) ([]*store.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.Recipient, 0, len(s.recipients))
	for _, r := range s.recipients {
		if r.IsActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FollowedAt.Before(out[j].FollowedAt) })
	return out, nil
}

func (s *Store) UpsertRecipient(_ context.Context, r *store.Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.recipients[r.LineUserID] = &cp
	return nil
}

func (s *Store) SetRecipientActive(_ context.Context, lineUserID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[lineUserID]
	if !ok {
		return store.ErrNotFound
	}
	r.IsActive = active
	return nil
}

func (s *Store) TouchRecipient(_ context.Context, lineUserID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[lineUserID]
	if !ok {
		return store.ErrNotFound
	}
	t := at
	r.LastMessageAt = &t
	return nil
}

// --- Jobs ---

func (s *Store) CreateJob(_ context.Context, j *store.MessageJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyJob(j)
	s.jobs[j.ID] = cp
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*store.MessageJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyJob(j), nil
}

func (s *Store) MarkJobProcessing(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if j.Status != store.JobPending {
		return false, nil
	}
	j.Status = store.JobProcessing
	return true, nil
}

func (s *Store) UpdateJob(_ context.Context, j *store.MessageJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return store.ErrNotFound
	}
	s.jobs[j.ID] = copyJob(j)
	return nil
}

func (s *Store) ListDueJobs(_ context.Context, now time.Time) ([]*store.MessageJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.MessageJob
	for _, j := range s.jobs {
		if j.Status != store.JobPending {
			continue
		}
		if j.ScheduledAt != nil && j.ScheduledAt.After(now) {
			continue
		}
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (s *Store) ListRecentJobs(_ context.Context, limit int) ([]*store.MessageJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.MessageJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyJob(j *store.MessageJob) *store.MessageJob {
	cp := *j
	cp.FailedUserIDs = append([]string(nil), j.FailedUserIDs...)
	if j.Target.UserIDs != nil {
		cp.Target.UserIDs = append([]string(nil), j.Target.UserIDs...)
	}
	return &cp
}
