package logger

import (
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/credengine/internal/util"
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
// CAMPOS ESTÁNDAR - CREDENCIALES
// =================================================================================

// UserID crea un campo para el ID de la identidad.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// Role crea un campo para el rol de la identidad.
func Role(v string) zap.Field {
	return zap.String("role", v)
}

// Email crea un campo para el email, enmascarado (a…@e….com).
func Email(v string) zap.Field {
	return zap.String("email", util.MaskEmail(v))
}

// JTI crea un campo para el identificador único de una credencial.
func JTI(v string) zap.Field {
	return zap.String("jti", v)
}

// TokenKind crea un campo para el tipo de credencial (access|refresh).
func TokenKind(v string) zap.Field {
	return zap.String("token_kind", v)
}

// Action crea un campo para la acción sujeta a rate limiting.
func Action(v string) zap.Field {
	return zap.String("action", v)
}

// Code crea un campo para el código de falla de un componente.
func Code(v string) zap.Field {
	return zap.String("code", v)
}

// Secret loguea sólo un prefijo de un valor sensible (state, token de reset).
func Secret(key, v string) zap.Field {
	return zap.String(key, Redact(v))
}

// Redact deja visibles los primeros 6 caracteres.
func Redact(v string) string {
	if len(v) <= 6 {
		return "***"
	}
	return v[:6] + "***"
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

// Layer crea un campo para la capa (handler, service, store).
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

// Key crea un campo genérico para una clave del store.
func Key(v string) zap.Field {
	return zap.String("key", v)
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

// Int64 crea un campo int64 genérico.
func Int64(key string, v int64) zap.Field {
	return zap.Int64(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
