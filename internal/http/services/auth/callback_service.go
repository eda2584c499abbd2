package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/linerelay/internal/http/dto"
	line "github.com/dropDatabas3/linerelay/internal/oauth/line"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
	"github.com/dropDatabas3/linerelay/internal/store"
)

// Service errors
var (
	ErrCodeMissing     = fmt.Errorf("code is required")
	ErrCsrfMismatch    = fmt.Errorf("state does not match")
	ErrSessionExpired  = fmt.Errorf("auth session expired or replayed")
	ErrNonceMismatch   = fmt.Errorf("nonce verification failed")
	ErrTokenExchange   = fmt.Errorf("token exchange failed")
	ErrProfileFetch    = fmt.Errorf("profile fetch failed")
	ErrIdentityStorage = fmt.Errorf("identity storage failed")
)

// ProviderClient son las llamadas salientes al proveedor que usa el callback.
type ProviderClient interface {
	ExchangeCode(ctx context.Context, code string) (*line.TokenResponse, error)
	FetchProfile(ctx context.Context, accessToken string) (*line.Profile, error)
}

// CredentialIssuer emite la credencial de sesión. Su falla es no fatal.
type CredentialIssuer interface {
	IssueSession(sub string, extra map[string]any) (string, time.Time, error)
}

// CallbackService valida el callback de LINE y resuelve la identidad local.
type CallbackService interface {
	Complete(ctx context.Context, req dto.CallbackRequest) (*dto.CallbackResponse, error)
}

// CallbackDeps contains dependencies for the callback service.
type CallbackDeps struct {
	Provider   ProviderClient
	Sessions   *SessionStore
	Identities store.IdentityRepository
	Issuer     CredentialIssuer
}

type callbackService struct {
	provider   ProviderClient
	sessions   *SessionStore
	identities store.IdentityRepository
	issuer     CredentialIssuer
}

func NewCallbackService(deps CallbackDeps) CallbackService {
	return &callbackService{
		provider:   deps.Provider,
		sessions:   deps.Sessions,
		identities: deps.Identities,
		issuer:     deps.Issuer,
	}
}

// Complete ejecuta el callback completo: state, nonce, canje, perfil,
// identidad y credencial. La sesión se borra en todo camino de salida.
func (s *callbackService) Complete(ctx context.Context, req dto.CallbackRequest) (*dto.CallbackResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.callback"),
		logger.Op("Complete"),
	)

	if strings.TrimSpace(req.Code) == "" {
		return nil, ErrCodeMissing
	}

	sess := s.sessions.Load(req.State)
	if sess != nil {
		defer s.sessions.Erase(req.State)
	}

	// Artefactos: la sesión del servidor manda; si expiró, el respaldo que
	// guardó el cliente permite cerrar el flujo igual.
	var hashedNonce, pendingAction string
	switch {
	case sess != nil:
		if req.State != sess.State {
			log.Warn("state mismatch, aborting before exchange")
			return nil, ErrCsrfMismatch
		}
		hashedNonce = sess.HashedNonce
		pendingAction = sess.PendingAction
	case req.Nonce != "" || req.HashedNonce != "":
		hashedNonce = req.HashedNonce
		if hashedNonce == "" {
			hashedNonce = HashNonce(req.Nonce)
		}
		pendingAction = req.AuthAction
		log.Debug("server session absent, using client-held nonce artifacts")
	default:
		log.Warn("no auth artifacts present, failing closed")
		return nil, ErrSessionExpired
	}
	if req.AuthAction != "" {
		pendingAction = req.AuthAction
	}

	tokens, err := s.provider.ExchangeCode(ctx, req.Code)
	if err != nil {
		log.Error("token exchange error", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	if tokens.AccessToken == "" {
		return nil, ErrTokenExchange
	}

	if tokens.IDToken == "" {
		log.Info("provider returned no id_token, skipping nonce verification")
	} else {
		payload, derr := line.DecodeIDTokenPayload(tokens.IDToken)
		if derr != nil {
			// Relajación documentada: el decode fallido no corta el flujo.
			log.Warn("id_token decode failed, continuing without nonce assurance", logger.Err(derr))
		} else if hashedNonce != "" && payload.Nonce != hashedNonce {
			log.Warn("nonce mismatch",
				zap.String("expected_prefix", prefix8(hashedNonce)),
				zap.String("got_prefix", prefix8(payload.Nonce)),
			)
			return nil, ErrNonceMismatch
		}
	}

	profile, err := s.provider.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		log.Error("profile fetch error", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrProfileFetch, err)
	}
	if profile.UserID == "" {
		return nil, ErrProfileFetch
	}

	identity, isExisting, err := s.resolveIdentity(ctx, profile)
	if err != nil {
		return nil, err
	}

	user := &dto.AuthUser{
		UID:         identity.UID,
		DisplayName: profile.DisplayName,
		PhotoURL:    profile.PictureURL,
		Provider:    "line",
		ProviderID:  profile.UserID,
	}

	var linkInfo *dto.LinkInfo
	if isExisting {
		linkInfo = &dto.LinkInfo{
			Line:     identity.HasProvider("line"),
			Google:   identity.HasProvider("google"),
			Password: identity.HasProvider("password"),
		}
	}

	// La vinculación explícita nunca emite credencial de login.
	if pendingAction == "link" {
		if err := s.markLinked(ctx, identity); err != nil {
			log.Error("link update failed", logger.Err(err))
			return &dto.CallbackResponse{
				User:           user,
				IsExistingUser: isExisting,
				LinkInfo:       linkInfo,
				LinkResult:     &dto.LinkResult{Success: false, Message: "アカウントの連携に失敗しました / Failed to link account"},
			}, nil
		}
		if linkInfo != nil {
			linkInfo.Line = true
		}
		log.Info("provider linked", logger.UserID(identity.UID))
		return &dto.CallbackResponse{
			User:           user,
			IsExistingUser: isExisting,
			LinkInfo:       linkInfo,
			LinkResult:     &dto.LinkResult{Success: true, Message: "アカウントを連携しました / Account linked"},
		}, nil
	}

	resp := &dto.CallbackResponse{
		IDToken:        tokens.IDToken,
		User:           user,
		IsExistingUser: isExisting,
		LinkInfo:       linkInfo,
	}

	if s.issuer == nil {
		log.Warn("credential issuer not configured")
		return resp, nil
	}

	customToken, _, err := s.issuer.IssueSession(identity.UID, map[string]any{
		"provider":    "line",
		"providerId":  profile.UserID,
		"displayName": profile.DisplayName,
		"pictureUrl":  profile.PictureURL,
	})
	if err != nil {
		// Falla no fatal: el cliente recibe el perfil igual y puede reintentar.
		log.Error("credential issuance unavailable", logger.Err(err))
		return resp, nil
	}
	resp.CustomToken = customToken

	log.Info("login completed",
		logger.UserID(identity.UID),
		zap.Bool("is_existing", isExisting),
	)
	return resp, nil
}

// resolveIdentity busca la identidad por subject id y la crea si no existe.
func (s *callbackService) resolveIdentity(ctx context.Context, p *line.Profile) (*store.Identity, bool, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth.callback"))

	existing, err := s.identities.GetIdentity(ctx, p.UserID)
	if err == nil {
		// Refrescar perfil visible en cada login.
		existing.DisplayName = p.DisplayName
		existing.AvatarURL = p.PictureURL
		existing.UpdatedAt = time.Now().UTC()
		if perr := s.identities.PutIdentity(ctx, existing); perr != nil {
			log.Warn("identity refresh failed", logger.Err(perr))
		}
		return existing, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %v", ErrIdentityStorage, err)
	}

	now := time.Now().UTC()
	created := &store.Identity{
		UID:             p.UserID,
		DisplayName:     p.DisplayName,
		AvatarURL:       p.PictureURL,
		LinkedProviders: []string{"line"},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.identities.PutIdentity(ctx, created); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrIdentityStorage, err)
	}
	log.Info("identity created", logger.UserID(created.UID))
	return created, false, nil
}

func (s *callbackService) markLinked(ctx context.Context, id *store.Identity) error {
	if id.HasProvider("line") {
		return nil
	}
	id.LinkedProviders = append(id.LinkedProviders, "line")
	id.UpdatedAt = time.Now().UTC()
	return s.identities.PutIdentity(ctx, id)
}

func prefix8(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8] + "..."
}
