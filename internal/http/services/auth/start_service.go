// Package auth implementa el flujo de login con LINE: inicio de la
// autorización, validación del callback, resolución de identidad y emisión
// de la credencial de sesión.
package auth

import (
	"context"
	"errors"

	"github.com/dropDatabas3/linerelay/internal/observability/logger"
)

// AuthorizeURLBuilder abstrae el cliente OIDC para el inicio del flujo.
type AuthorizeURLBuilder interface {
	AuthURL(state, hashedNonce string) (string, error)
}

// StartService arma la URL de autorización y deja la sesión lista en cache.
type StartService interface {
	Begin(ctx context.Context, action string) (*StartResult, error)
}

// StartResult es lo que necesita el controller para redirigir.
type StartResult struct {
	AuthorizeURL string
	State        string
}

// StartDeps contains dependencies for the start service.
type StartDeps struct {
	OIDC     AuthorizeURLBuilder
	Sessions *SessionStore
}

type startService struct {
	oidc     AuthorizeURLBuilder
	sessions *SessionStore
}

func NewStartService(deps StartDeps) StartService {
	return &startService{oidc: deps.OIDC, sessions: deps.Sessions}
}

var ErrMissingConfiguration = errors.New("line login configuration is missing")

// Begin genera state y nonce, persiste la sesión y construye la URL de
// autorización. action es "login" o "link".
func (s *startService) Begin(ctx context.Context, action string) (*StartResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.start"),
		logger.Op("Begin"),
	)

	state, err := NewState()
	if err != nil {
		return nil, err
	}
	rawNonce, err := NewNonce()
	if err != nil {
		return nil, err
	}
	hashed := HashNonce(rawNonce)

	if action != "link" {
		action = "login"
	}

	authorizeURL, err := s.oidc.AuthURL(state, hashed)
	if err != nil {
		log.Error("cannot build authorize url", logger.Err(err))
		return nil, ErrMissingConfiguration
	}

	if err := s.sessions.Save(&AuthSession{
		State:         state,
		RawNonce:      rawNonce,
		HashedNonce:   hashed,
		PendingAction: action,
	}); err != nil {
		return nil, err
	}

	log.Debug("authorization started", logger.String("action", action))
	return &StartResult{AuthorizeURL: authorizeURL, State: state}, nil
}
