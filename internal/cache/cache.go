// Package cache provee el almacenamiento transitorio de artefactos de
// autorización (state/nonce) con TTL. Soporta memoria (dev) y Redis (prod).
package cache

import "time"

// Cache define las operaciones mínimas que necesita el flujo de login:
// guardar la sesión de autorización al inicio y consumirla en el callback.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}
