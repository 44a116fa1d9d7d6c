// Package email define el Sender que usan los flows y sus adapters.
//
// El renderizado real de templates vive fuera del engine: acá sólo se arma
// un cuerpo de texto mínimo por Kind.
package email

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dropDatabas3/credengine/internal/observability/logger"
)

// Kind es el template a enviar.
type Kind string

const (
	KindVerificationCode Kind = "verification_code"
	KindPasswordReset    Kind = "password_reset"
	KindPasswordChanged  Kind = "password_changed"
)

// Payload son las variables del template.
type Payload struct {
	Code string        // OTP
	Link string        // link de reset
	TTL  time.Duration // validez a mostrar
}

// Result del envío. Un fallo de envío nunca cambia la respuesta al usuario.
type Result struct {
	Success bool
	Err     error
}

type Sender interface {
	Send(ctx context.Context, to string, kind Kind, p Payload) Result
}

func subjectFor(k Kind) string {
	switch k {
	case KindVerificationCode:
		return "Tu código de verificación"
	case KindPasswordReset:
		return "Restablecé tu contraseña"
	case KindPasswordChanged:
		return "Tu contraseña fue cambiada"
	default:
		return string(k)
	}
}

func textFor(k Kind, p Payload) string {
	switch k {
	case KindVerificationCode:
		return fmt.Sprintf("Tu código es %s. Vence en %s.", p.Code, p.TTL)
	case KindPasswordReset:
		return fmt.Sprintf("Para restablecer tu contraseña entrá a %s (válido por %s).", p.Link, p.TTL)
	case KindPasswordChanged:
		return "Tu contraseña fue cambiada. Si no fuiste vos, contactá a soporte."
	default:
		return ""
	}
}

// LogSender no envía nada: loguea el envío (dev). Los secretos van redactados.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to string, kind Kind, p Payload) Result {
	logger.From(ctx).Info("email (log sender)",
		logger.Component("email"), logger.Email(to), logger.String("kind", string(kind)),
		logger.Secret("code", p.Code))
	return Result{Success: true}
}

// Sent es un envío capturado por Recorder.
type Sent struct {
	To      string
	Kind    Kind
	Payload Payload
}

// Recorder guarda los envíos en memoria (tests y modo dev).
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Fail error
}

func (r *Recorder) Send(ctx context.Context, to string, kind Kind, p Payload) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return Result{Err: r.Fail}
	}
	r.sent = append(r.sent, Sent{To: to, Kind: kind, Payload: p})
	return Result{Success: true}
}

// Last devuelve el último envío a `to`.
func (r *Recorder) Last(to string) (Sent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].To == to {
			return r.sent[i], true
		}
	}
	return Sent{}, false
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}
