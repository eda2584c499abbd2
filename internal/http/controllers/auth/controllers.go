// Package auth contiene los controllers del flujo de LINE Login.
package auth

import (
	"encoding/json"
	"net/http"

	svc "github.com/dropDatabas3/linerelay/internal/http/services/auth"
)

// Controllers agrupa los controllers del dominio auth.
type Controllers struct {
	Start    *StartController
	Callback *CallbackController
}

// NewControllers crea el agregador de controllers auth.
func NewControllers(start svc.StartService, callback svc.CallbackService) *Controllers {
	return &Controllers{
		Start:    NewStartController(start),
		Callback: NewCallbackController(callback),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
