// Package secretbox cifra secretos de configuración en reposo con AES-256-GCM.
// Los secretos de LINE (channel secret, access token) pueden guardarse en el
// YAML como "base64(nonce)|base64(ciphertext)" y descifrarse en el arranque.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	secretBoxEnvVar   = "SECRETBOX_MASTER_KEY"
	nonceSizeGCM      = 12  // AES-GCM nonce recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

var (
	masterKey     []byte
	masterKeyOnce sync.Once
	loadErr       error
	mu            sync.RWMutex
)

// ensureLoaded carga la clave maestra desde SECRETBOX_MASTER_KEY (base64) una sola vez.
func ensureLoaded() error {
	masterKeyOnce.Do(func() {
		kb64 := strings.TrimSpace(os.Getenv(secretBoxEnvVar))
		if kb64 == "" {
			loadErr = fmt.Errorf("%s no seteada; genere una clave con: openssl rand -base64 32", secretBoxEnvVar)
			return
		}
		k, err := base64.StdEncoding.DecodeString(kb64)
		if err != nil {
			loadErr = fmt.Errorf("decode %s: %w", secretBoxEnvVar, err)
			return
		}
		if len(k) != requiredKeyLength {
			loadErr = fmt.Errorf("%s debe decodificar a %d bytes, obtuvo %d", secretBoxEnvVar, requiredKeyLength, len(k))
			return
		}
		mu.Lock()
		masterKey = make([]byte, len(k))
		copy(masterKey, k)
		mu.Unlock()
	})
	return loadErr
}

// IsReady expone si la clave está cargada (útil para healthchecks).
func IsReady() bool {
	mu.RLock()
	defer mu.RUnlock()
	return len(masterKey) == requiredKeyLength
}

// LooksEncrypted reporta si el valor tiene el formato nonce|ciphertext.
// Se usa para aceptar secretos en texto plano en dev.
func LooksEncrypted(v string) bool {
	return strings.Contains(v, sep)
}

// Encrypt cifra plainText y devuelve base64(nonce)|base64(ciphertext).
func Encrypt(plainText string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}

	mu.RLock()
	key := make([]byte, len(masterKey))
	copy(key, masterKey)
	mu.RUnlock()

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}

	ct := aesgcm.Seal(nil, nonce, []byte(plainText), nil)

	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt recibe base64(nonce)|base64(ciphertext) y devuelve el texto plano.
func Decrypt(cipherText string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}

	parts := strings.Split(cipherText, sep)
	if len(parts) != 2 {
		return "", errors.New("formato inválido: esperado base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}

	mu.RLock()
	key := make([]byte, len(masterKey))
	copy(key, masterKey)
	mu.RUnlock()

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}

// Resolve devuelve el secreto listo para usar: si viene cifrado lo descifra,
// si viene en texto plano lo devuelve tal cual (modo dev).
func Resolve(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" || !LooksEncrypted(v) {
		return v, nil
	}
	return Decrypt(v)
}

// --- Helpers para tests ---

// UnsafeResetForTests borra estado interno. Usar sólo en tests.
func UnsafeResetForTests() {
	mu.Lock()
	masterKey = nil
	mu.Unlock()
	masterKeyOnce = sync.Once{}
	loadErr = nil
}
