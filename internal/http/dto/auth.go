// Package dto define los cuerpos de request/response del API.
package dto

// CallbackRequest es el cuerpo de POST /line-callback. nonce/hashedNonce son
// el respaldo que guarda el cliente por si la sesión del servidor expiró.
type CallbackRequest struct {
	Code        string `json:"code"`
	State       string `json:"state"`
	AuthAction  string `json:"authAction,omitempty"`
	Nonce       string `json:"nonce,omitempty"`
	HashedNonce string `json:"hashedNonce,omitempty"`
}

// AuthUser es el perfil resuelto que viaja al frontend.
type AuthUser struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Provider    string `json:"provider"`
	ProviderID  string `json:"providerId"`
}

// LinkInfo reporta qué proveedores ya están vinculados a la identidad.
type LinkInfo struct {
	Line     bool `json:"line"`
	Google   bool `json:"google"`
	Password bool `json:"password"`
}

// LinkResult es el resultado de una operación de vinculación explícita.
type LinkResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CallbackResponse es la respuesta de POST /line-callback. customToken va
// vacío cuando la emisión de credencial falló o cuando authAction=link.
type CallbackResponse struct {
	CustomToken    string      `json:"customToken,omitempty"`
	IDToken        string      `json:"idToken,omitempty"`
	User           *AuthUser   `json:"user"`
	IsExistingUser bool        `json:"isExistingUser"`
	LinkInfo       *LinkInfo   `json:"linkInfo,omitempty"`
	LinkResult     *LinkResult `json:"linkResult,omitempty"`
}
