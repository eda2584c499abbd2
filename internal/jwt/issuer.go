// Package jwt emite la credencial de sesión que el frontend canjea tras el
// login con LINE. Se firma con EdDSA sobre una clave Ed25519 derivada de
// una seed de 32 bytes provista por configuración.
package jwt

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer firma credenciales de sesión para identidades ya verificadas.
type Issuer struct {
	Iss       string
	Aud       string
	AccessTTL time.Duration

	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

var ErrBadSeed = errors.New("jwt: seed must decode to 32 bytes")

// NewIssuer construye el emisor desde una seed Ed25519 en base64 estándar.
func NewIssuer(iss, aud, seedB64 string, ttl time.Duration) (*Issuer, error) {
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, ErrBadSeed
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	// KID estable derivado de la pubkey; permite rotar sin estado extra.
	sum := sha256.Sum256(pub)
	kid := base64.RawURLEncoding.EncodeToString(sum[:8])

	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Issuer{Iss: iss, Aud: aud, AccessTTL: ttl, kid: kid, priv: priv, pub: pub}, nil
}

// ActiveKID devuelve el KID de la clave activa.
func (i *Issuer) ActiveKID() string { return i.kid }

// SignRaw firma un MapClaims arbitrario, setea header kid/typ y devuelve el JWT firmado.
func (i *Issuer) SignRaw(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.kid
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.priv)
}

// IssueSession emite la credencial de sesión para un uid con claims extra
// (provider, providerId, displayName, pictureUrl).
func (i *Issuer) IssueSession(sub string, extra map[string]any) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"aud": i.Aud,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	signed, err := i.SignRaw(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Keyfunc devuelve un jwt.Keyfunc con la pubkey activa para validar tokens propios.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.pub, nil
	}
}

// Parse valida un token emitido por este issuer y devuelve sus claims.
func (i *Issuer) Parse(token string) (jwtv5.MapClaims, error) {
	claims := jwtv5.MapClaims{}
	_, err := jwtv5.ParseWithClaims(token, claims, i.Keyfunc(),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithAudience(i.Aud),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
