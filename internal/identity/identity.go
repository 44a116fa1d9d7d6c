// Package identity resuelve emails/ids a los datos mínimos que necesitan los
// flows. El engine nunca crea ni borra identidades; sólo lee y, en el reset,
// delega el cambio de contraseña.
package identity

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("identity: not found")

// Record es la vista de una identidad que consume el engine.
type Record struct {
	ID            string
	Email         string
	Role          string
	EmailVerified bool
	PasswordHash  string
	Disabled      bool
}

// Lookup devuelve ErrNotFound cuando no existe.
type Lookup interface {
	FindByEmail(ctx context.Context, email string) (*Record, error)
	FindByID(ctx context.Context, id string) (*Record, error)
}

// PasswordUpdater escribe el hash nuevo en el sistema dueño de las identidades.
type PasswordUpdater interface {
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// VerifiedMarker marca el email como verificado tras un OTP exitoso.
type VerifiedMarker interface {
	MarkEmailVerified(ctx context.Context, id string) error
}

// Store agrupa todo lo que un adapter puede ofrecer.
type Store interface {
	Lookup
	PasswordUpdater
	VerifiedMarker
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
