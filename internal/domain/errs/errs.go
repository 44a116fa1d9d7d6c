// Package errs define la taxonomía de errores del engine.
//
// Los componentes devuelven *Error para las condiciones esperadas (expirado,
// mismatch, rate limited, ...). Sólo las fallas de infraestructura se reportan
// como STORE_UNAVAILABLE y el caller decide el 5xx.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Kind clasifica un error dentro de la taxonomía.
type Kind string

const (
	Validation       Kind = "VALIDATION"
	Unauthenticated  Kind = "UNAUTHENTICATED"
	Revoked          Kind = "REVOKED"
	Expired          Kind = "EXPIRED"
	NotFound         Kind = "NOT_FOUND"
	Mismatch         Kind = "MISMATCH"
	RateLimited      Kind = "RATE_LIMITED"
	MaxAttempts      Kind = "MAX_ATTEMPTS"
	StoreUnavailable Kind = "STORE_UNAVAILABLE"
	Internal         Kind = "INTERNAL"
)

// Error es el error tipado que devuelven los managers.
// Code identifica la falla concreta del componente (ej: "MISSING_STATE").
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Remaining  int           // intentos restantes (OTP), -1 si no aplica
	RetryAfter time.Duration // RATE_LIMITED: cuándo reintentar
	Err        error         // causa, sólo para logs
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por Code, así las copias devueltas por WithCause siguen matcheando
// contra el sentinel original.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind
}

// New crea un sentinel.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Remaining: -1}
}

// WithCause devuelve una COPIA con la causa adjunta.
func (e *Error) WithCause(err error) *Error {
	n := *e
	n.Err = err
	return &n
}

// WithRemaining devuelve una COPIA con los intentos restantes.
func (e *Error) WithRemaining(n int) *Error {
	c := *e
	c.Remaining = n
	return &c
}

// WithRetryAfter devuelve una COPIA con el tiempo de espera.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	c := *e
	c.RetryAfter = d
	return &c
}

// As devuelve el primer *Error de la cadena.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// KindOf devuelve el Kind del primer *Error en la cadena, o Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// CodeOf devuelve el Code del primer *Error en la cadena, o "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reporta si err pertenece al Kind dado.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Store envuelve una falla del TTL store.
func Store(op string, err error) *Error {
	return ErrStoreUnavailable.WithCause(fmt.Errorf("%s: %w", op, err))
}

var (
	ErrStoreUnavailable = New(StoreUnavailable, "STORE_UNAVAILABLE", "ttl store unavailable")
	ErrRateLimited      = New(RateLimited, "RATE_LIMITED", "too many requests")
	ErrInvalidInput     = New(Validation, "INVALID_INPUT", "invalid input")
)
