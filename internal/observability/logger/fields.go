package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// UserID crea un campo para el ID de usuario LINE (subject id).
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// Provider crea un campo para el proveedor de identidad.
func Provider(v string) zap.Field {
	return zap.String("provider", v)
}

// JobID crea un campo para el ID de un message job.
func JobID(v string) zap.Field {
	return zap.String("job_id", v)
}

// EventType crea un campo para el tipo de evento webhook.
func EventType(v string) zap.Field {
	return zap.String("event_type", v)
}

// TargetType crea un campo para el tipo de target de un mensaje.
func TargetType(v string) zap.Field {
	return zap.String("target_type", v)
}

// Recipients crea un campo para la cantidad de destinatarios.
func Recipients(v int) zap.Field {
	return zap.Int("recipients", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (controller, service, store).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// CAMPOS GENÉRICOS
// =================================================================================

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
