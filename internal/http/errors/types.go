package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Error original (causa), útil para logs
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original
func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve un error interno genérico conservando el original.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail agrega detalles adicionales al error (útil para validaciones).
// Devuelve una COPIA del error para no mutar las variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega el error original (causa).
// Devuelve una COPIA del error.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

// ---------------------------------------------------------------------------------
// 400 Bad Request - Errores de Cliente / Validación
// ---------------------------------------------------------------------------------

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingFields = &AppError{
		Code:       "MISSING_FIELDS",
		Message:    "Faltan campos requeridos en la solicitud.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrStateMismatch = &AppError{
		Code:       "STATE_MISMATCH",
		Message:    "El parámetro state no coincide con la sesión de autorización.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrAuthSessionExpired = &AppError{
		Code:       "AUTH_SESSION_EXPIRED",
		Message:    "La sesión de autorización expiró o ya fue utilizada.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrNonceMismatch = &AppError{
		Code:       "NONCE_MISMATCH",
		Message:    "El nonce del id_token no coincide con el valor esperado.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrTokenExchangeFailed = &AppError{
		Code:       "TOKEN_EXCHANGE_FAILED",
		Message:    "No se pudo canjear el código de autorización.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrProfileFetchFailed = &AppError{
		Code:       "PROFILE_FETCH_FAILED",
		Message:    "No se pudo obtener el perfil del usuario.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidMessageContent = &AppError{
		Code:       "INVALID_MESSAGE_CONTENT",
		Message:    "El contenido del mensaje es inválido o está incompleto.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnsupportedTargetType = &AppError{
		Code:       "UNSUPPORTED_TARGET_TYPE",
		Message:    "El tipo de target no es soportado.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ---------------------------------------------------------------------------------
// 401 Unauthorized - Errores de Autenticación
// ---------------------------------------------------------------------------------

var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "No autorizado. Se requiere autenticación.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrSignatureInvalid = &AppError{
		Code:       "SIGNATURE_INVALID",
		Message:    "La firma del webhook es inválida o está ausente.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrAPIKeyInvalid = &AppError{
		Code:       "API_KEY_INVALID",
		Message:    "La API key de administración es inválida.",
		HTTPStatus: http.StatusUnauthorized,
	}
)

// ---------------------------------------------------------------------------------
// 404 Not Found - Recursos no encontrados
// ---------------------------------------------------------------------------------

var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no fue encontrado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrRecipientNotFound = &AppError{
		Code:       "RECIPIENT_NOT_FOUND",
		Message:    "El destinatario especificado no existe.",
		HTTPStatus: http.StatusNotFound,
	}
)

// ---------------------------------------------------------------------------------
// 405 / 409 / 429
// ---------------------------------------------------------------------------------

var (
	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "El método HTTP no está permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}

	ErrRecipientInactive = &AppError{
		Code:       "RECIPIENT_INACTIVE",
		Message:    "El destinatario está inactivo y no puede recibir mensajes.",
		HTTPStatus: http.StatusConflict,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Ha excedido el límite de solicitudes. Intente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// ---------------------------------------------------------------------------------
// 500+ Server Errors - Errores Internos
// ---------------------------------------------------------------------------------

var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error interno en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
