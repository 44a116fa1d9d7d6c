// Package session emite los tokens de verificación de sesión que siguen a un
// OTP verificado. El token tiene prefijo "vst_" y se busca directamente como
// key del store (hasheado).
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	tokens "github.com/dropDatabas3/credengine/internal/security/token"
)

const (
	TokenPrefix = "vst"
	DefaultTTL  = 10 * time.Minute
)

var ErrInvalidToken = errs.New(errs.NotFound, "INVALID_VERIFICATION_TOKEN", "verification token is invalid or expired")

type Verifier interface {
	Issue(ctx context.Context, email string) (string, error)
	Lookup(ctx context.Context, token string) (string, error)
	Consume(ctx context.Context, token string) (string, error)
}

type verifier struct {
	store cache.Client
	ttl   time.Duration
}

func NewVerifier(store cache.Client, ttl time.Duration) Verifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &verifier{store: store, ttl: ttl}
}

func key(token string) string { return cache.Key(TokenPrefix, tokens.SHA256Base64URL(token)) }

func (v *verifier) Issue(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", errs.ErrInvalidInput.WithCause(errors.New("session: empty email"))
	}
	tok, err := tokens.GeneratePrefixedToken(TokenPrefix, 32)
	if err != nil {
		return "", fmt.Errorf("session: generate: %w", err)
	}
	if err := v.store.SetEx(ctx, key(tok), email, v.ttl); err != nil {
		return "", errs.Store("session.issue", err)
	}
	return tok, nil
}

func (v *verifier) Lookup(ctx context.Context, token string) (string, error) {
	if !strings.HasPrefix(token, TokenPrefix+"_") {
		return "", ErrInvalidToken
	}
	email, err := v.store.Get(ctx, key(token))
	if cache.IsNotFound(err) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", errs.Store("session.lookup", err)
	}
	return email, nil
}

// Consume devuelve el email y borra el token. Dos consumos concurrentes:
// sólo el que borra gana.
func (v *verifier) Consume(ctx context.Context, token string) (string, error) {
	email, err := v.Lookup(ctx, token)
	if err != nil {
		return "", err
	}
	n, err := v.store.Del(ctx, key(token))
	if err != nil {
		return "", errs.Store("session.consume", err)
	}
	if n == 0 {
		return "", ErrInvalidToken
	}
	return email, nil
}
