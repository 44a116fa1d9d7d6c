// Package errors define los errores de transporte: el catálogo AppError y la
// traducción de los errores de dominio (errs.Error) a status HTTP.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError es el error que ve el cliente.
type AppError struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Detail     string        `json:"detail,omitempty"`
	Remaining  int           `json:"-"` // intentos restantes, -1 si no aplica
	RetryAfter time.Duration `json:"-"` // se expone como header Retry-After
	HTTPStatus int           `json:"-"`
	Err        error         `json:"-"` // causa, sólo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New crea un AppError.
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Remaining: -1}
}

// Wrap crea un AppError envolviendo un error existente.
func Wrap(err error, status int, code, message string) *AppError {
	e := New(status, code, message)
	e.Err = err
	return e
}

// WithDetail devuelve una COPIA con detalle.
func (e *AppError) WithDetail(detail string) *AppError {
	n := *e
	n.Detail = detail
	return &n
}

// WithCause devuelve una COPIA con la causa.
func (e *AppError) WithCause(err error) *AppError {
	n := *e
	n.Err = err
	return &n
}

// =================================================================================
// CATÁLOGO
// =================================================================================

var (
	ErrBadRequest       = New(http.StatusBadRequest, "BAD_REQUEST", "La solicitud contiene sintaxis inválida o parámetros faltantes.")
	ErrInvalidJSON      = New(http.StatusBadRequest, "INVALID_JSON", "El cuerpo de la solicitud no es un JSON válido.")
	ErrMissingFields    = New(http.StatusBadRequest, "MISSING_FIELDS", "Faltan campos requeridos en la solicitud.")
	ErrUnsupportedMedia = New(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type debe ser application/json.")
	ErrBodyTooLarge     = New(http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "El cuerpo de la solicitud excede el tamaño máximo permitido.")

	ErrUnauthorized = New(http.StatusUnauthorized, "UNAUTHORIZED", "Se requiere autenticación.")
	ErrTokenMissing = New(http.StatusUnauthorized, "TOKEN_MISSING", "Falta el token de acceso.")
	ErrForbidden    = New(http.StatusForbidden, "FORBIDDEN", "No tenés permisos para esta operación.")

	ErrRouteNotFound    = New(http.StatusNotFound, "ROUTE_NOT_FOUND", "La ruta solicitada no existe.")
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método no permitido para esta ruta.")

	ErrPasswordTooWeak   = New(http.StatusUnprocessableEntity, "WEAK_PASSWORD", "La contraseña no cumple la política.")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMITED", "Demasiadas solicitudes, intentá más tarde.")

	ErrInternalServerError = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Ocurrió un error inesperado.")
	ErrServiceUnavailable  = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "El servicio no está disponible temporalmente.")
)
