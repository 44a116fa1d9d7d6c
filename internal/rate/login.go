package rate

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
)

// LoginAttempts lleva dos estructuras independientes por email:
//   - login:fail:log:<email>   sorted set con cada intento fallido (retención larga)
//   - login:fail:count:<email> contador con ventana de lockout
//
// El log es para auditoría/soporte; sólo el contador decide el lockout.
type LoginAttempts struct {
	Store         cache.Client
	MaxFailures   int64
	LockoutWindow time.Duration
	Retention     time.Duration
	Now           func() time.Time
}

// Failure es un intento fallido registrado.
type Failure struct {
	At time.Time
	IP string
}

func NewLoginAttempts(store cache.Client, maxFailures int64, lockout, retention time.Duration) *LoginAttempts {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if lockout <= 0 {
		lockout = time.Hour
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &LoginAttempts{Store: store, MaxFailures: maxFailures, LockoutWindow: lockout, Retention: retention, Now: time.Now}
}

func failLogKey(email string) string   { return cache.Key("login", "fail", "log", email) }
func failCountKey(email string) string { return cache.Key("login", "fail", "count", email) }

func (l *LoginAttempts) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

// RecordFailure registra un fallo y devuelve el contador actual.
// Los errores del store se loguean y no cortan el login.
func (l *LoginAttempts) RecordFailure(ctx context.Context, email, ip string) int64 {
	log := logger.From(ctx).With(logger.Layer("rate"), logger.Component("login_attempts"))
	now := l.now()

	member := strconv.FormatInt(now.UnixNano(), 10) + "|" + ip
	if err := l.Store.ZAdd(ctx, failLogKey(email), cache.Z{Score: micros(now), Member: member}); err != nil {
		log.Warn("failed-login log write failed", logger.Err(err))
	} else {
		cutoff := micros(now.Add(-l.Retention))
		_, _ = l.Store.ZRemRangeByScore(ctx, failLogKey(email), "-inf", formatScore(cutoff))
		_, _ = l.Store.Expire(ctx, failLogKey(email), l.Retention)
	}

	n, err := l.Store.Incr(ctx, failCountKey(email))
	if err != nil {
		log.Warn("failed-login counter write failed", logger.Err(err))
		return 0
	}
	if n == 1 {
		_, _ = l.Store.Expire(ctx, failCountKey(email), l.LockoutWindow)
	}
	return n
}

// Locked informa si el email está bloqueado y por cuánto. Falla abierto.
func (l *LoginAttempts) Locked(ctx context.Context, email string) (bool, time.Duration) {
	raw, err := l.Store.Get(ctx, failCountKey(email))
	if cache.IsNotFound(err) {
		return false, 0
	}
	if err != nil {
		logger.From(ctx).Warn("failed-login counter read failed, failing open",
			logger.Layer("rate"), logger.Component("login_attempts"), logger.Err(err))
		return false, 0
	}
	n, _ := strconv.ParseInt(raw, 10, 64)
	if n < l.MaxFailures {
		return false, 0
	}
	ttl, err := l.Store.TTL(ctx, failCountKey(email))
	if err != nil || ttl <= 0 {
		ttl = l.LockoutWindow
	}
	return true, ttl
}

// Clear resetea el contador tras un login exitoso. El log se conserva.
func (l *LoginAttempts) Clear(ctx context.Context, email string) {
	if _, err := l.Store.Del(ctx, failCountKey(email)); err != nil {
		logger.From(ctx).Warn("failed-login counter clear failed", logger.Layer("rate"), logger.Err(err))
	}
}

// Recent devuelve los fallos dentro de la retención, más viejos primero.
func (l *LoginAttempts) Recent(ctx context.Context, email string) ([]Failure, error) {
	zs, err := l.Store.ZRangeWithScores(ctx, failLogKey(email), 0, -1)
	if err != nil {
		return nil, err
	}
	cutoff := l.now().Add(-l.Retention)
	out := make([]Failure, 0, len(zs))
	for _, z := range zs {
		at := time.UnixMicro(int64(z.Score))
		if !at.After(cutoff) {
			continue
		}
		_, ip, _ := strings.Cut(z.Member, "|")
		out = append(out, Failure{At: at, IP: ip})
	}
	return out, nil
}
