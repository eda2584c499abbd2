package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// randomToken genera un token aleatorio base64url de n bytes de entropía.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewState genera el valor anti-CSRF del flujo de autorización.
func NewState() (string, error) { return randomToken(32) }

// NewNonce genera el nonce crudo que el cliente guarda localmente.
func NewNonce() (string, error) { return randomToken(32) }

// HashNonce calcula sha256 hex del nonce crudo; es lo único que viaja al
// proveedor como parámetro nonce.
func HashNonce(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
