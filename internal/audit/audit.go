// Package audit emite eventos de seguridad (login, logout, reset, revocación)
// hacia un Sink intercambiable: log estructurado por defecto o Kafka.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"go.uber.org/zap"
)

// Eventos conocidos.
const (
	EventLoginSucceeded    = "login.succeeded"
	EventLoginFailed       = "login.failed"
	EventLoginLocked       = "login.locked"
	EventLogout            = "logout"
	EventRefreshRotated    = "refresh.rotated"
	EventRefreshReplay     = "refresh.replay"
	EventEmailVerified     = "email.verified"
	EventPasswordResetSent = "password.reset_requested"
	EventPasswordReset     = "password.reset"
	EventOAuthLogin        = "oauth.login"
	EventCredentialRevoked = "credential.revoked"
)

// Event es un evento de auditoría.
type Event struct {
	Name   string         `json:"event"`
	At     time.Time      `json:"ts"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Sink recibe los eventos. Un Sink nunca debe bloquear el flow: los errores
// se loguean y se descartan.
type Sink interface {
	Emit(ctx context.Context, e Event) error
	Close() error
}

// ZapSink escribe los eventos al logger.
type ZapSink struct{}

func (ZapSink) Emit(ctx context.Context, e Event) error {
	logger.From(ctx).Info("audit",
		logger.String("event", e.Name),
		zap.Time("ts", e.At),
		zap.Any("fields", e.Fields))
	return nil
}

func (ZapSink) Close() error { return nil }

var (
	mu   sync.RWMutex
	sink Sink = ZapSink{}
)

// SetSink reemplaza el sink global y devuelve el anterior.
func SetSink(s Sink) Sink {
	mu.Lock()
	defer mu.Unlock()
	prev := sink
	if s == nil {
		s = ZapSink{}
	}
	sink = s
	return prev
}

// Log emite un evento al sink configurado.
func Log(ctx context.Context, event string, fields map[string]any) {
	mu.RLock()
	s := sink
	mu.RUnlock()

	e := Event{Name: event, At: time.Now().UTC(), Fields: fields}
	if err := s.Emit(ctx, e); err != nil {
		logger.From(ctx).Warn("audit sink failed", logger.String("event", event), logger.Err(err))
	}
}
