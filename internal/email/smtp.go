package email

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/dropDatabas3/credengine/internal/observability/logger"
	mail "github.com/go-mail/mail"
)

// SMTPConfig contiene la configuración para conectarse a un servidor SMTP.
type SMTPConfig struct {
	Host               string
	Port               int // default 587
	Username           string
	Password           string
	FromEmail          string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool   // sólo dev
}

// SMTPSender implementa Sender usando SMTP.
type SMTPSender struct {
	cfg  SMTPConfig
	dial func(m *mail.Message) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	s := &SMTPSender{cfg: cfg}
	s.dial = s.dialAndSend
	return s
}

func (s *SMTPSender) message(to string, kind Kind, p Payload) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subjectFor(kind))
	m.SetBody("text/plain", textFor(kind, p))
	return m
}

func (s *SMTPSender) dialAndSend(m *mail.Message) error {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}
	return d.DialAndSend(m)
}

func (s *SMTPSender) Send(ctx context.Context, to string, kind Kind, p Payload) Result {
	log := logger.From(ctx).With(
		logger.Component("smtp"),
		logger.String("host", s.cfg.Host),
		logger.Email(to),
		logger.String("kind", string(kind)),
	)
	if err := s.dial(s.message(to, kind, p)); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return Result{Err: fmt.Errorf("smtp send: %w", err)}
	}
	log.Info("email sent")
	return Result{Success: true}
}
