// Package oauthstate emite y consume los tickets de state del handshake OAuth.
//
// Un ticket se consume exactamente una vez: Consume lo lee y lo borra antes
// de devolverlo. Si el DEL no borró nada, otro callback concurrente ganó.
package oauthstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/metrics"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	tokens "github.com/dropDatabas3/credengine/internal/security/token"
)

var (
	ErrMissingState        = errs.New(errs.Validation, "MISSING_STATE", "missing state parameter")
	ErrInvalidOrExpired    = errs.New(errs.NotFound, "INVALID_OR_EXPIRED_STATE", "state is invalid or expired")
	ErrFingerprintMismatch = errs.New(errs.Mismatch, "FINGERPRINT_MISMATCH", "state was issued to a different client")
)

const DefaultTTL = 600 * time.Second

// Fingerprint identifica al cliente que inicia y cierra el handshake.
type Fingerprint struct {
	IP        string
	UserAgent string
}

// Ticket es lo que queda guardado detrás del state.
type Ticket struct {
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
	Correlator string    `json:"correlator,omitempty"`
	ReturnTo   string    `json:"return_to,omitempty"`
}

type Manager interface {
	Issue(ctx context.Context, fp Fingerprint, correlator, returnTo string) (string, error)
	Consume(ctx context.Context, state string, fp Fingerprint) (Ticket, error)
}

type Deps struct {
	Store cache.Client
	TTL   time.Duration
	// StrictIP exige que la IP del callback sea la misma que la del inicio.
	// Detrás de NAT/proxies puede rechazar usuarios legítimos.
	StrictIP bool
	Now      func() time.Time
}

type manager struct {
	store    cache.Client
	ttl      time.Duration
	strictIP bool
	now      func() time.Time
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
	return &manager{store: d.Store, ttl: ttl, strictIP: d.StrictIP, now: now}
}

func key(state string) string { return cache.Key("oauth", "state", state) }

func (m *manager) Issue(ctx context.Context, fp Fingerprint, correlator, returnTo string) (string, error) {
	state, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", fmt.Errorf("oauthstate: generate: %w", err)
	}
	raw, err := json.Marshal(Ticket{
		IP:         fp.IP,
		UserAgent:  fp.UserAgent,
		CreatedAt:  m.now().UTC(),
		Correlator: correlator,
		ReturnTo:   returnTo,
	})
	if err != nil {
		return "", fmt.Errorf("oauthstate: marshal: %w", err)
	}
	if err := m.store.SetEx(ctx, key(state), string(raw), m.ttl); err != nil {
		return "", errs.Store("oauthstate.issue", err)
	}
	return state, nil
}

func (m *manager) Consume(ctx context.Context, state string, fp Fingerprint) (Ticket, error) {
	log := logger.From(ctx).With(logger.Layer("oauthstate"), logger.Op("Consume"))
	if state == "" {
		metrics.StateConsumptions.WithLabelValues("missing").Inc()
		return Ticket{}, ErrMissingState
	}

	raw, err := m.store.Get(ctx, key(state))
	if cache.IsNotFound(err) {
		metrics.StateConsumptions.WithLabelValues("invalid").Inc()
		return Ticket{}, ErrInvalidOrExpired
	}
	if err != nil {
		return Ticket{}, errs.Store("oauthstate.consume", err)
	}
	// borrar ANTES de cualquier otra cosa
	n, err := m.store.Del(ctx, key(state))
	if err != nil {
		return Ticket{}, errs.Store("oauthstate.consume", err)
	}
	if n == 0 {
		metrics.StateConsumptions.WithLabelValues("raced").Inc()
		log.Warn("state consumed concurrently")
		return Ticket{}, ErrInvalidOrExpired
	}

	var t Ticket
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		log.Error("corrupt state ticket", logger.Err(err))
		return Ticket{}, ErrInvalidOrExpired.WithCause(errors.New("corrupt ticket"))
	}
	if m.strictIP && t.IP != fp.IP {
		metrics.StateConsumptions.WithLabelValues("mismatch").Inc()
		log.Warn("state fingerprint mismatch", logger.ClientIP(fp.IP), logger.String("issued_ip", t.IP))
		return Ticket{}, ErrFingerprintMismatch
	}
	metrics.StateConsumptions.WithLabelValues("ok").Inc()
	return t, nil
}
