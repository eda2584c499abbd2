package auth

import (
	"encoding/json"
	"time"

	"github.com/dropDatabas3/linerelay/internal/cache"
)

const sessionKeyPrefix = "line:auth:"

// AuthSession son los artefactos transitorios del flujo, llaveados por state.
// Se consumen exactamente una vez en el callback.
type AuthSession struct {
	State         string `json:"state"`
	RawNonce      string `json:"rawNonce"`
	HashedNonce   string `json:"hashedNonce"`
	PendingAction string `json:"pendingAction,omitempty"` // login|link
	CreatedAt     int64  `json:"createdAt"`
}

// SessionStore persiste AuthSession en el cache con TTL.
type SessionStore struct {
	Cache cache.Cache
	TTL   time.Duration
}

func NewSessionStore(c cache.Cache, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SessionStore{Cache: c, TTL: ttl}
}

func (s *SessionStore) Save(sess *AuthSession) error {
	if sess.CreatedAt == 0 {
		sess.CreatedAt = time.Now().Unix()
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.Cache.Set(sessionKeyPrefix+sess.State, b, s.TTL)
	return nil
}

// Load devuelve la sesión para un state, o nil si expiró o nunca existió.
func (s *SessionStore) Load(state string) *AuthSession {
	b, ok := s.Cache.Get(sessionKeyPrefix + state)
	if !ok {
		return nil
	}
	var sess AuthSession
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil
	}
	return &sess
}

// Erase borra la sesión; se invoca en todo camino de salida del callback.
func (s *SessionStore) Erase(state string) {
	s.Cache.Delete(sessionKeyPrefix + state)
}
