package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/credengine/internal/audit"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/identity"
	"github.com/dropDatabas3/credengine/internal/oauthstate"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"github.com/dropDatabas3/credengine/internal/refresh"
)

// validReturnTo acepta vacío o un path relativo ("/x", no "//host").
func validReturnTo(s string) bool {
	if s == "" {
		return true
	}
	return strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") && !strings.Contains(s, `\`)
}

func (s *service) StartOAuth(ctx context.Context, fp oauthstate.Fingerprint, correlator, returnTo string) (OAuthStart, error) {
	if s.deps.Provider == nil {
		return OAuthStart{}, ErrOAuthDisabled
	}
	if !validReturnTo(returnTo) {
		return OAuthStart{}, ErrInvalidReturnTo
	}
	state, err := s.deps.State.Issue(ctx, fp, correlator, returnTo)
	if err != nil {
		logger.From(ctx).Error("issue oauth state failed",
			logger.Layer("service"), logger.Component("auth.oauth"), logger.Err(err))
		return OAuthStart{}, err
	}
	return OAuthStart{State: state, URL: s.deps.Provider.AuthURL(state)}, nil
}

// OAuthCallback consume el state antes de hablar con el proveedor: un state
// reusado o ajeno nunca llega al exchange.
func (s *service) OAuthCallback(ctx context.Context, state, code string, fp oauthstate.Fingerprint) (OAuthResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.oauth"),
		logger.Op("OAuthCallback"),
	)
	if s.deps.Provider == nil {
		return OAuthResult{}, ErrOAuthDisabled
	}

	ticket, err := s.deps.State.Consume(ctx, state, fp)
	if err != nil {
		log.Info("state rejected", logger.Code(errs.CodeOf(err)))
		return OAuthResult{}, err
	}
	// desde acá los errores llevan el return_to del ticket
	out := OAuthResult{ReturnTo: ticket.ReturnTo, Correlator: ticket.Correlator}
	if strings.TrimSpace(code) == "" {
		return out, errs.ErrInvalidInput
	}

	profile, err := s.deps.Provider.Exchange(ctx, code)
	if err != nil {
		log.Warn("provider exchange failed", logger.Err(err))
		return out, ErrOAuthExchange.WithCause(err)
	}
	if !profile.EmailVerified || profile.Email == "" {
		return out, ErrOAuthUnverified
	}

	emailAddr := identity.NormalizeEmail(profile.Email)
	user, err := s.deps.Users.FindByEmail(ctx, emailAddr)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		log.Info("no account for provider email", logger.Email(emailAddr))
		return out, ErrAccountNotFound
	case err != nil:
		return out, err
	case user.Disabled:
		return out, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		if err := s.deps.Users.MarkEmailVerified(ctx, user.ID); err != nil {
			log.Warn("mark email verified failed", logger.UserID(user.ID), logger.Err(err))
		}
	}

	pair, err := s.deps.Refresh.IssuePair(ctx, refresh.Identity{ID: user.ID, Role: user.Role})
	if err != nil {
		return out, err
	}
	audit.Log(ctx, audit.EventOAuthLogin, map[string]any{
		"user_id":  user.ID,
		"provider": profile.Provider,
		"ip":       fp.IP,
	})
	out.Tokens = s.tokens(pair)
	return out, nil
}
