// Package otp implementa el challenge/response de códigos numéricos de un solo uso.
//
// El challenge vive en otp:<email> y el contador de intentos en una key hermana
// otp:attempts:<email>. El contador se incrementa con INCR antes de comparar,
// así dos verify concurrentes cuentan los dos aunque lean el mismo challenge.
package otp

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/metrics"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	tokens "github.com/dropDatabas3/credengine/internal/security/token"
)

var (
	ErrNotFoundOrExpired = errs.New(errs.NotFound, "NOT_FOUND_OR_EXPIRED", "no active verification code")
	ErrMaxAttempts       = errs.New(errs.MaxAttempts, "MAX_ATTEMPTS", "too many attempts, request a new code")
	ErrMismatch          = errs.New(errs.Mismatch, "MISMATCH", "verification code does not match")
)

const (
	DefaultDigits      = 6
	DefaultTTL         = 900 * time.Second
	DefaultMaxAttempts = 5
)

// Config del manager.
type Config struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int
}

// Metadata opcional que acompaña al challenge.
type Metadata struct {
	Purpose string `json:"purpose,omitempty"` // "verify_email", ...
	IP      string `json:"ip,omitempty"`
}

type challenge struct {
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"created_at"`
	MaxAttempts int       `json:"max_attempts"`
	Metadata
}

// Manager genera, guarda y verifica códigos.
type Manager interface {
	Generate() (string, error)
	Store(ctx context.Context, email, code string, md Metadata) error
	Verify(ctx context.Context, email, presented string) error
}

// Deps del manager.
type Deps struct {
	Store  cache.Client
	Config Config
	Now    func() time.Time
}

type manager struct {
	store cache.Client
	cfg   Config
	now   func() time.Time
}

// New crea el manager aplicando defaults.
func New(d Deps) Manager {
	cfg := d.Config
	if cfg.Digits <= 0 {
		cfg.Digits = DefaultDigits
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &manager{store: d.Store, cfg: cfg, now: now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func challengeKey(email string) string { return cache.Key("otp", email) }
func attemptsKey(email string) string  { return cache.Key("otp", "attempts", email) }

func (m *manager) Generate() (string, error) {
	return Generate(m.cfg.Digits)
}

// Generate devuelve un código de `digits` dígitos con distribución uniforme.
// Rechaza los valores del tramo final de uint64 que sesgarían el módulo.
func Generate(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("otp: invalid digit count %d", digits)
	}
	mod := uint64(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	limit := ^uint64(0) - (^uint64(0) % mod) // múltiplo de mod más grande que entra
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("otp: rand: %w", err)
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v >= limit {
			continue
		}
		return fmt.Sprintf("%0*d", digits, v%mod), nil
	}
}

func (m *manager) Store(ctx context.Context, email, code string, md Metadata) error {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return errs.ErrInvalidInput.WithCause(errors.New("otp: email and code are required"))
	}
	raw, err := json.Marshal(challenge{
		Code:        code,
		CreatedAt:   m.now().UTC(),
		MaxAttempts: m.cfg.MaxAttempts,
		Metadata:    md,
	})
	if err != nil {
		return fmt.Errorf("otp: marshal: %w", err)
	}
	// resend = challenge nuevo: primero el contador, así nunca queda un
	// challenge fresco con intentos viejos
	if _, err := m.store.Del(ctx, attemptsKey(email)); err != nil {
		return errs.Store("otp.store", err)
	}
	if err := m.store.SetEx(ctx, challengeKey(email), string(raw), m.cfg.TTL); err != nil {
		return errs.Store("otp.store", err)
	}
	return nil
}

func (m *manager) Verify(ctx context.Context, email, presented string) error {
	email = normalizeEmail(email)
	log := logger.From(ctx).With(logger.Layer("otp"), logger.Op("Verify"), logger.Email(email))

	raw, err := m.store.Get(ctx, challengeKey(email))
	if cache.IsNotFound(err) {
		metrics.OTPVerifications.WithLabelValues("not_found").Inc()
		return ErrNotFoundOrExpired
	}
	if err != nil {
		return errs.Store("otp.verify", err)
	}
	var ch challenge
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		// challenge corrupto: se descarta
		log.Error("corrupt otp challenge", logger.Err(err))
		m.drop(ctx, email)
		return ErrNotFoundOrExpired
	}
	max := ch.MaxAttempts
	if max <= 0 {
		max = m.cfg.MaxAttempts
	}

	n, err := m.store.Incr(ctx, attemptsKey(email))
	if err != nil {
		return errs.Store("otp.verify", err)
	}
	if n == 1 {
		// el contador vive lo mismo que el challenge
		ttl, terr := m.store.TTL(ctx, challengeKey(email))
		if terr != nil || ttl <= 0 {
			ttl = m.cfg.TTL
		}
		if _, err := m.store.Expire(ctx, attemptsKey(email), ttl); err != nil {
			return errs.Store("otp.verify", err)
		}
	}
	if int(n) > max {
		m.drop(ctx, email)
		metrics.OTPVerifications.WithLabelValues("max_attempts").Inc()
		return ErrMaxAttempts
	}

	if tokens.ConstantTimeEqual(ch.Code, presented) {
		// sólo gana quien borra el challenge; un verify concurrente con el
		// mismo código pudo haberlo leído antes del DEL
		deleted, err := m.store.Del(ctx, challengeKey(email))
		if err != nil {
			return errs.Store("otp.verify", err)
		}
		if deleted == 0 {
			metrics.OTPVerifications.WithLabelValues("raced").Inc()
			log.Warn("otp consumed concurrently")
			return ErrNotFoundOrExpired
		}
		if _, err := m.store.Del(ctx, attemptsKey(email)); err != nil {
			log.Warn("otp cleanup failed", logger.Err(err))
		}
		metrics.OTPVerifications.WithLabelValues("ok").Inc()
		log.Debug("otp verified")
		return nil
	}

	if int(n) >= max {
		m.drop(ctx, email)
		metrics.OTPVerifications.WithLabelValues("max_attempts").Inc()
		log.Info("otp exhausted")
		return ErrMaxAttempts
	}
	metrics.OTPVerifications.WithLabelValues("mismatch").Inc()
	return ErrMismatch.WithRemaining(max - int(n))
}

// drop borra challenge y contador. Un error acá no cambia el resultado:
// el TTL termina de limpiar.
func (m *manager) drop(ctx context.Context, email string) {
	if _, err := m.store.Del(ctx, challengeKey(email), attemptsKey(email)); err != nil {
		logger.From(ctx).Warn("otp cleanup failed", logger.Layer("otp"), logger.Email(email), logger.Err(err))
	}
}
