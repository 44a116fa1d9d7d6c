// Package revocation mantiene la denylist de jti con TTL.
//
// Una entrada vive exactamente lo que le queda a la credencial revocada, así
// el registro se limpia solo y nunca se borra explícitamente.
package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/jwt"
	"github.com/dropDatabas3/credengine/internal/metrics"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"go.uber.org/zap"
)

const keyPrefix = "revoked"

// Registry es el contrato consumido por flows y middlewares.
type Registry interface {
	Revoke(ctx context.Context, jti string, remaining time.Duration) error
	RevokeClaims(ctx context.Context, c jwt.Claims) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Deps del registry.
type Deps struct {
	Store  cache.Client
	MaxTTL time.Duration // clamp del TTL de cada entrada
	Now    func() time.Time
}

type registry struct {
	store  cache.Client
	maxTTL time.Duration
	now    func() time.Time
}

// New crea el registry.
func New(d Deps) Registry {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &registry{store: d.Store, maxTTL: d.MaxTTL, now: now}
}

func key(jti string) string { return cache.Key(keyPrefix, jti) }

func (r *registry) Revoke(ctx context.Context, jti string, remaining time.Duration) error {
	if jti == "" {
		return errs.ErrInvalidInput.WithCause(errors.New("revocation: empty jti"))
	}
	// ya expiró: nada que revocar
	if remaining <= 0 {
		return nil
	}
	if r.maxTTL > 0 && remaining > r.maxTTL {
		remaining = r.maxTTL
	}
	if err := r.store.SetEx(ctx, key(jti), "1", remaining); err != nil {
		logger.From(ctx).Error("revocation write failed",
			logger.Layer("revocation"), logger.JTI(jti), logger.Err(err))
		return errs.Store("revocation.revoke", err)
	}
	metrics.Revocations.Inc()
	logger.From(ctx).Debug("credential revoked",
		logger.Layer("revocation"), logger.JTI(jti), zap.Duration("ttl", remaining))
	return nil
}

func (r *registry) RevokeClaims(ctx context.Context, c jwt.Claims) error {
	return r.Revoke(ctx, c.JTI, c.Remaining(r.now()))
}

// IsRevoked falla cerrado: si el store no responde, el caller no puede
// asumir que la credencial es válida.
func (r *registry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := r.store.Get(ctx, key(jti))
	if err == nil {
		return true, nil
	}
	if cache.IsNotFound(err) {
		return false, nil
	}
	return false, errs.Store("revocation.is_revoked", err)
}
