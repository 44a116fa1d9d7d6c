package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/dropDatabas3/credengine/internal/audit"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/email"
	"github.com/dropDatabas3/credengine/internal/identity"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"github.com/dropDatabas3/credengine/internal/security/password"
)

// ForgotPassword emite un reset token y manda el link. La respuesta no revela
// si la cuenta existe.
func (s *service) ForgotPassword(ctx context.Context, emailAddr, ip string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.password"),
		logger.Op("ForgotPassword"),
	)

	emailAddr = identity.NormalizeEmail(emailAddr)
	if !strings.Contains(emailAddr, "@") {
		return errs.ErrInvalidInput
	}
	if err := s.throttle(ctx, ActionForgot, emailAddr, ""); err != nil {
		return err
	}

	user, err := s.deps.Users.FindByEmail(ctx, emailAddr)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		log.Debug("forgot skipped: unknown email")
		return nil
	case err != nil:
		log.Error("identity lookup failed", logger.Err(err))
		return err
	case user.Disabled:
		return nil
	}

	tok, err := s.deps.Reset.Issue(ctx, user.ID)
	if err != nil {
		log.Error("issue reset token failed", logger.UserID(user.ID), logger.Err(err))
		return err
	}

	res := s.deps.Email.Send(ctx, emailAddr, email.KindPasswordReset, email.Payload{
		Link: s.resetLink(tok),
		TTL:  s.deps.ResetTTL,
	})
	if !res.Success {
		log.Warn("reset email failed", logger.UserID(user.ID), logger.Err(res.Err))
	}
	audit.Log(ctx, audit.EventPasswordResetSent, map[string]any{"user_id": user.ID, "ip": ip})
	return nil
}

func (s *service) resetLink(tok string) string {
	base := s.deps.ResetLink
	if base == "" {
		return tok
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(tok)
}

// ResetPassword: validar token, chequear política, actualizar la contraseña,
// invalidar sesiones y recién entonces consumir el token.
func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.password"),
		logger.Op("ResetPassword"),
	)

	token = strings.TrimSpace(token)
	if token == "" {
		return errs.ErrInvalidInput
	}
	if err := s.deps.Policy.Check(newPassword); err != nil {
		return err
	}

	id, err := s.deps.Reset.Validate(ctx, token)
	if err != nil {
		return err
	}
	log = log.With(logger.UserID(id))

	phc, err := password.Hash(s.deps.HashParams, newPassword)
	if err != nil {
		return errs.New(errs.Internal, "HASH_FAILED", "could not hash password").WithCause(err)
	}
	if err := s.deps.Users.UpdatePassword(ctx, id, phc); err != nil {
		log.Error("update password failed", logger.Err(err))
		return err
	}

	// la contraseña ya cambió: un fallo acá no revierte nada
	if err := s.deps.Reset.InvalidateSessions(ctx, id); err != nil {
		log.Error("invalidate sessions failed", logger.Err(err))
	}
	if err := s.deps.Reset.Consume(ctx, token); err != nil {
		log.Error("consume reset token failed", logger.Err(err))
	}

	if user, err := s.deps.Users.FindByID(ctx, id); err == nil {
		if res := s.deps.Email.Send(ctx, user.Email, email.KindPasswordChanged, email.Payload{}); !res.Success {
			log.Warn("password changed email failed", logger.Err(res.Err))
		}
	}
	audit.Log(ctx, audit.EventPasswordReset, map[string]any{"user_id": id})
	log.Info("password reset")
	return nil
}
