package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/credengine/internal/domain/errs"
)

// status por Kind de dominio.
var kindStatus = map[errs.Kind]int{
	errs.Validation:       http.StatusBadRequest,
	errs.Unauthenticated:  http.StatusUnauthorized,
	errs.Revoked:          http.StatusUnauthorized,
	errs.Expired:          http.StatusUnauthorized,
	errs.NotFound:         http.StatusNotFound,
	errs.Mismatch:         http.StatusUnauthorized,
	errs.RateLimited:      http.StatusTooManyRequests,
	errs.MaxAttempts:      http.StatusTooManyRequests,
	errs.StoreUnavailable: http.StatusServiceUnavailable,
	errs.Internal:         http.StatusInternalServerError,
}

// excepciones por Code.
var codeStatus = map[string]int{
	"WEAK_PASSWORD":              http.StatusUnprocessableEntity,
	"FINGERPRINT_MISMATCH":       http.StatusForbidden,
	"OAUTH_DISABLED":             http.StatusNotFound,
	"OAUTH_EXCHANGE_FAILED":      http.StatusBadGateway,
	"NOT_FOUND_OR_EXPIRED":       http.StatusBadRequest,
	"INVALID_TOKEN":              http.StatusBadRequest,
	"INVALID_OR_EXPIRED_STATE":   http.StatusBadRequest,
	"INVALID_VERIFICATION_TOKEN": http.StatusBadRequest,
}

// FromDomain traduce un *errs.Error. Los 5xx nunca exponen el mensaje interno.
func FromDomain(e *errs.Error) *AppError {
	status, ok := codeStatus[e.Code]
	if !ok {
		status, ok = kindStatus[e.Kind]
	}
	if !ok {
		status = http.StatusInternalServerError
	}
	switch {
	case e.Kind == errs.StoreUnavailable:
		return ErrServiceUnavailable.WithCause(e)
	case status >= 500 && status != http.StatusBadGateway:
		return ErrInternalServerError.WithCause(e)
	}
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		Detail:     detailOf(e),
		Remaining:  e.Remaining,
		RetryAfter: e.RetryAfter,
		HTTPStatus: status,
		Err:        e,
	}
}

// detailOf expone sólo las razones de política de contraseña.
func detailOf(e *errs.Error) string {
	if e.Code == "WEAK_PASSWORD" && e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// FromError convierte cualquier error en AppError.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if de, ok := errs.As(err); ok {
		return FromDomain(de)
	}
	return ErrInternalServerError.WithCause(err)
}
