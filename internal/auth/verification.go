package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/credengine/internal/audit"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/email"
	"github.com/dropDatabas3/credengine/internal/identity"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"github.com/dropDatabas3/credengine/internal/otp"
)

// SendVerificationCode genera y envía un OTP. Responde igual exista o no la
// cuenta; sólo el throttle por email es visible.
func (s *service) SendVerificationCode(ctx context.Context, emailAddr string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.verification"),
		logger.Op("SendVerificationCode"),
	)

	emailAddr = identity.NormalizeEmail(emailAddr)
	if !strings.Contains(emailAddr, "@") {
		return errs.ErrInvalidInput
	}
	if err := s.throttle(ctx, ActionOTPSend, emailAddr, ""); err != nil {
		return err
	}

	user, err := s.deps.Users.FindByEmail(ctx, emailAddr)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		log.Debug("verification code skipped: unknown email")
		return nil
	case err != nil:
		log.Error("identity lookup failed", logger.Err(err))
		return err
	case user.Disabled || user.EmailVerified:
		return nil
	}

	code, err := s.deps.OTP.Generate()
	if err != nil {
		return errs.New(errs.Internal, "OTP_GENERATION", "could not generate code").WithCause(err)
	}
	if err := s.deps.OTP.Store(ctx, emailAddr, code, otp.Metadata{Purpose: "verify_email"}); err != nil {
		log.Error("otp store failed", logger.Err(err))
		return err
	}

	res := s.deps.Email.Send(ctx, emailAddr, email.KindVerificationCode, email.Payload{Code: code, TTL: s.deps.OTPTTL})
	if !res.Success {
		log.Warn("verification email failed", logger.UserID(user.ID), logger.Err(res.Err))
	}
	return nil
}

// VerifyEmail verifica el OTP y devuelve un verification token de un solo uso.
func (s *service) VerifyEmail(ctx context.Context, emailAddr, code string) (string, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.verification"),
		logger.Op("VerifyEmail"),
	)

	emailAddr = identity.NormalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" || code == "" {
		return "", errs.ErrInvalidInput
	}

	if err := s.deps.OTP.Verify(ctx, emailAddr, code); err != nil {
		log.Debug("otp rejected", logger.Email(emailAddr), logger.Code(errs.CodeOf(err)))
		if errors.Is(err, otp.ErrNotFoundOrExpired) || errors.Is(err, otp.ErrMismatch) || errors.Is(err, otp.ErrMaxAttempts) {
			return "", ErrInvalidCode.WithCause(err)
		}
		return "", err
	}

	user, err := s.deps.Users.FindByEmail(ctx, emailAddr)
	switch {
	case err == nil:
		if !user.EmailVerified {
			if err := s.deps.Users.MarkEmailVerified(ctx, user.ID); err != nil {
				log.Error("mark email verified failed", logger.UserID(user.ID), logger.Err(err))
				return "", err
			}
		}
		audit.Log(ctx, audit.EventEmailVerified, map[string]any{"user_id": user.ID})
	case errors.Is(err, identity.ErrNotFound):
		// la cuenta desapareció entre el envío y la verificación
		log.Warn("verified email without identity", logger.Email(emailAddr))
	default:
		return "", err
	}

	tok, err := s.deps.Verifier.Issue(ctx, emailAddr)
	if err != nil {
		log.Error("issue verification token failed", logger.Err(err))
		return "", err
	}
	return tok, nil
}

// RedeemVerification canjea el verification token emitido por VerifyEmail y
// devuelve el email verificado. Un token se canjea una sola vez.
func (s *service) RedeemVerification(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errs.ErrInvalidInput
	}
	emailAddr, err := s.deps.Verifier.Consume(ctx, token)
	if err != nil {
		logger.From(ctx).Debug("verification token rejected",
			logger.Layer("service"), logger.Component("auth.verification"),
			logger.Op("RedeemVerification"), logger.Code(errs.CodeOf(err)))
		return "", err
	}
	return emailAddr, nil
}
