// Package line implementa el cliente OAuth2/OIDC de LINE Login:
// construcción de la URL de autorización, canje de código y perfil.
package line

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Endpoints oficiales de LINE Login. LINE no publica discovery por tenant,
// así que van fijos; en tests se reemplazan por un httptest.Server.
const (
	defaultAuthorizeEndpoint = "https://access.line.me/oauth2/v2.1/authorize"
	defaultTokenEndpoint     = "https://api.line.me/oauth2/v2.1/token"
	defaultProfileEndpoint   = "https://api.line.me/v2/profile"
)

// OIDC es el cliente de LINE Login para un channel.
type OIDC struct {
	ChannelID     string
	ChannelSecret string
	RedirectURL   string
	Scopes        []string

	// Overrides de endpoints (tests). Vacío ⇒ endpoints oficiales.
	AuthorizeEndpoint string
	TokenEndpoint     string
	ProfileEndpoint   string

	http *http.Client
}

// New crea un cliente con timeout conservador en todas las llamadas salientes.
func New(channelID, channelSecret, redirectURL string) *OIDC {
	return &OIDC{
		ChannelID:     channelID,
		ChannelSecret: channelSecret,
		RedirectURL:   redirectURL,
		Scopes:        []string{"profile", "openid"},
		http:          &http.Client{Timeout: 10 * time.Second},
	}
}

// ErrMissingConfiguration indica que falta channel id, secret o callback URL.
var ErrMissingConfiguration = errors.New("line: configuration is missing")

func (c *OIDC) authorizeEndpoint() string {
	if c.AuthorizeEndpoint != "" {
		return c.AuthorizeEndpoint
	}
	return defaultAuthorizeEndpoint
}

func (c *OIDC) tokenEndpoint() string {
	if c.TokenEndpoint != "" {
		return c.TokenEndpoint
	}
	return defaultTokenEndpoint
}

func (c *OIDC) profileEndpoint() string {
	if c.ProfileEndpoint != "" {
		return c.ProfileEndpoint
	}
	return defaultProfileEndpoint
}

// AuthURL construye la URL de autorización. El nonce que viaja al proveedor
// es el hash SHA-256 del nonce crudo; el crudo nunca sale del servidor.
func (c *OIDC) AuthURL(state, hashedNonce string) (string, error) {
	if strings.TrimSpace(c.ChannelID) == "" || strings.TrimSpace(c.RedirectURL) == "" {
		return "", ErrMissingConfiguration
	}
	u, err := url.Parse(c.authorizeEndpoint())
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.ChannelID)
	q.Set("redirect_uri", c.RedirectURL)
	q.Set("state", state)
	q.Set("scope", strings.Join(c.Scopes, " "))
	q.Set("nonce", hashedNonce)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// TokenResponse es la respuesta del token endpoint de LINE.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	RefreshTok  string `json:"refresh_token,omitempty"`
}

// ExchangeCode canjea el código de autorización por tokens (POST form-encoded).
func (c *OIDC) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	if strings.TrimSpace(c.ChannelID) == "" || strings.TrimSpace(c.ChannelSecret) == "" {
		return nil, ErrMissingConfiguration
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.RedirectURL)
	form.Set("client_id", c.ChannelID)
	form.Set("client_secret", c.ChannelSecret)

	req, _ := http.NewRequestWithContext(ctx, "POST", c.tokenEndpoint(), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var b struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&b)
		return nil, fmt.Errorf("token http %d: %s %s", resp.StatusCode, b.Error, b.ErrorDescription)
	}
	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Profile es el perfil público que expone LINE para el access token.
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// FetchProfile obtiene el perfil del usuario autenticado con bearer token.
func (c *OIDC) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, _ := http.NewRequestWithContext(ctx, "GET", c.profileEndpoint(), nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("profile http %d", resp.StatusCode)
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// IDTokenPayload son los claims que nos interesan del id_token de LINE.
type IDTokenPayload struct {
	Iss     string `json:"iss"`
	Sub     string `json:"sub"`
	Aud     string `json:"aud"`
	Exp     int64  `json:"exp"`
	Iat     int64  `json:"iat"`
	Nonce   string `json:"nonce"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// DecodeIDTokenPayload decodifica el segmento payload de un id_token SIN
// verificar la firma. LINE firma con HS256 sobre el channel secret y Firebase
// rechazaba esa verificación; el payload se usa únicamente para comparar el
// nonce, nunca para decisiones de autorización.
func DecodeIDTokenPayload(idToken string) (*IDTokenPayload, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, errors.New("bad jwt format")
	}
	pb, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	var p IDTokenPayload
	if err := json.Unmarshal(pb, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &p, nil
}
