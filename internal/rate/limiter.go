// Package rate aplica presupuestos de requests por identidad y acción.
//
// Dos estrategias comparten el contrato Limiter: fixed window (INCR + EXPIRE)
// y sliding window log (sorted set de timestamps). Ante una falla del store
// el limiter falla ABIERTO: deja pasar el request, loguea y cuenta la falla.
package rate

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/metrics"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
)

// Subject es quién consume el presupuesto. ID puede ser un user id, un email
// o una IP según la acción.
type Subject struct {
	ID   string
	Role string
}

type Result struct {
	Allowed     bool
	Remaining   int64
	Limit       int64
	ResetAt     time.Time
	RetryAfter  time.Duration
	CurrentHits int64
	Unlimited   bool // bypass por rol o límite 0
	FailOpen    bool // el store falló y se dejó pasar
}

type Limiter interface {
	Check(ctx context.Context, s Subject, action string) Result
}

// Policy es un presupuesto: Limit requests por Window. Limit 0 = ilimitado.
type Policy struct {
	Limit  int64
	Window time.Duration
}

// Tier resuelve la Policy de una acción según el rol.
type Tier struct {
	Default Policy
	Roles   map[string]Policy
}

func (t Tier) For(role string) Policy {
	if p, ok := t.Roles[role]; ok {
		return p
	}
	return t.Default
}

// FixedWindow: contador por acción+rol+identidad con TTL = ventana.
type FixedWindow struct {
	Store     cache.Client
	Tiers     map[string]Tier
	Unlimited map[string]bool // roles sin límite (admin)
	Now       func() time.Time
}

func NewFixedWindow(store cache.Client, tiers map[string]Tier, unlimitedRoles []string) *FixedWindow {
	u := make(map[string]bool, len(unlimitedRoles))
	for _, r := range unlimitedRoles {
		u[r] = true
	}
	return &FixedWindow{Store: store, Tiers: tiers, Unlimited: u, Now: time.Now}
}

func fixedKey(action, role, id string) string {
	if role == "" {
		role = "anon"
	}
	return cache.Key("rl", action, role, strings.ReplaceAll(id, " ", "_"))
}

func (l *FixedWindow) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

func (l *FixedWindow) Check(ctx context.Context, s Subject, action string) Result {
	p := l.Tiers[action].For(s.Role)
	if l.Unlimited[s.Role] || p.Limit <= 0 || p.Window <= 0 {
		metrics.RateDecisions.WithLabelValues(action, "bypass").Inc()
		return Result{Allowed: true, Unlimited: true, Remaining: -1}
	}
	key := fixedKey(action, s.Role, s.ID)

	hits, err := l.Store.Incr(ctx, key)
	if err != nil {
		return failOpen(ctx, action, p, err)
	}
	// set expiry on first hit
	if hits == 1 {
		if _, err := l.Store.Expire(ctx, key, p.Window); err != nil {
			return failOpen(ctx, action, p, err)
		}
	}
	ttl, err := l.Store.TTL(ctx, key)
	if err == nil && ttl == cache.NoExpiry {
		// contador sin TTL (se perdió el EXPIRE): nunca se resetearía
		_, _ = l.Store.Expire(ctx, key, p.Window)
		ttl = p.Window
	}
	if err != nil || ttl <= 0 {
		ttl = p.Window
	}

	allowed := hits <= p.Limit
	remaining := p.Limit - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		Limit:       p.Limit,
		CurrentHits: hits,
		ResetAt:     l.now().Add(ttl),
	}
	if !allowed {
		// Retry after: resto de la ventana
		res.RetryAfter = ttl
	}
	record(action, res)
	return res
}

func failOpen(ctx context.Context, action string, p Policy, err error) Result {
	metrics.RateFailOpen.WithLabelValues(action).Inc()
	logger.From(ctx).Warn("rate limiter store failure, failing open",
		logger.Layer("rate"), logger.Action(action), logger.Err(err))
	return Result{Allowed: true, FailOpen: true, Limit: p.Limit, Remaining: -1}
}

func record(action string, r Result) {
	outcome := "allowed"
	if !r.Allowed {
		outcome = "rejected"
	}
	metrics.RateDecisions.WithLabelValues(action, outcome).Inc()
}

// micros es el score de los sliding windows: entero exacto en float64.
func micros(t time.Time) float64 { return float64(t.UnixMicro()) }

func formatScore(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) }
