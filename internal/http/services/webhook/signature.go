// Package webhook procesa los eventos entrantes de la Messaging API:
// verificación de firma sobre los bytes crudos y despacho por tipo de evento.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifySignature compara HMAC-SHA256(secret, body) en base64 contra la
// cabecera X-Line-Signature. body son los bytes crudos del wire, nunca una
// re-serialización.
func VerifySignature(channelSecret string, body []byte, signature string) bool {
	if channelSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
