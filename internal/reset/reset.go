// Package reset maneja los tokens de recuperación de contraseña.
//
// El token viaja al usuario por email; en el store sólo queda su hash
// (reset:<sha256>) apuntando a la identidad. Un token es de un solo uso.
package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"github.com/dropDatabas3/credengine/internal/refresh"
	"github.com/dropDatabas3/credengine/internal/revocation"
	tokens "github.com/dropDatabas3/credengine/internal/security/token"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidToken = errs.New(errs.NotFound, "INVALID_TOKEN", "reset token is invalid or expired")

const DefaultTTL = time.Hour

type Manager interface {
	Issue(ctx context.Context, identityID string) (string, error)
	Validate(ctx context.Context, token string) (string, error)
	Consume(ctx context.Context, token string) error
	InvalidateSessions(ctx context.Context, identityID string) error
}

type Deps struct {
	Store      cache.Client
	TTL        time.Duration
	Refresh    refresh.Manager
	Revocation revocation.Registry
	Now        func() time.Time
}

type manager struct {
	store   cache.Client
	ttl     time.Duration
	refresh refresh.Manager
	revoc   revocation.Registry
	now     func() time.Time
}

func New(d Deps) Manager {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &manager{store: d.Store, ttl: ttl, refresh: d.Refresh, revoc: d.Revocation, now: now}
}

func key(token string) string { return cache.Key("reset", tokens.SHA256Base64URL(token)) }

func (m *manager) Issue(ctx context.Context, identityID string) (string, error) {
	if identityID == "" {
		return "", errs.ErrInvalidInput.WithCause(errors.New("reset: empty identity"))
	}
	tok, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", fmt.Errorf("reset: generate: %w", err)
	}
	if err := m.store.SetEx(ctx, key(tok), identityID, m.ttl); err != nil {
		return "", errs.Store("reset.issue", err)
	}
	return tok, nil
}

func (m *manager) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	id, err := m.store.Get(ctx, key(token))
	if cache.IsNotFound(err) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", errs.Store("reset.validate", err)
	}
	return id, nil
}

func (m *manager) Consume(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	if _, err := m.store.Del(ctx, key(token)); err != nil {
		return errs.Store("reset.consume", err)
	}
	return nil
}

// InvalidateSessions borra el refresh vigente y revoca cada access token
// todavía vivo de la identidad. Los dos barridos corren en paralelo.
func (m *manager) InvalidateSessions(ctx context.Context, identityID string) error {
	log := logger.From(ctx).With(logger.Layer("reset"), logger.Op("InvalidateSessions"), logger.UserID(identityID))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.refresh.Invalidate(gctx, identityID)
	})
	g.Go(func() error {
		outstanding, err := m.refresh.OutstandingAccess(gctx, identityID)
		if err != nil {
			return err
		}
		now := m.now()
		for _, o := range outstanding {
			if err := m.revoc.Revoke(gctx, o.JTI, o.ExpiresAt.Sub(now)); err != nil {
				return err
			}
		}
		log.Debug("access credentials revoked", logger.Int("count", len(outstanding)))
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("session invalidation incomplete", logger.Err(err))
		return err
	}
	return nil
}
