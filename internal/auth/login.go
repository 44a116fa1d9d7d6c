package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/credengine/internal/audit"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/identity"
	"github.com/dropDatabas3/credengine/internal/jwt"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"github.com/dropDatabas3/credengine/internal/rate"
	"github.com/dropDatabas3/credengine/internal/refresh"
	"github.com/dropDatabas3/credengine/internal/security/password"
	"github.com/dropDatabas3/credengine/internal/util"
)

func (s *service) Login(ctx context.Context, in LoginInput) (Tokens, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.login"),
		logger.Op("Login"),
	)

	in.Email = identity.NormalizeEmail(in.Email)
	if in.Email == "" || in.Password == "" || !strings.Contains(in.Email, "@") {
		return Tokens{}, errs.ErrInvalidInput
	}
	log = log.With(logger.Email(in.Email))

	if err := s.throttle(ctx, ActionLogin, in.Email, ""); err != nil {
		return Tokens{}, err
	}
	if s.deps.Logins != nil {
		if locked, retry := s.deps.Logins.Locked(ctx, in.Email); locked {
			log.Info("login rejected: account locked")
			return Tokens{}, ErrAccountLocked.WithRetryAfter(retry)
		}
	}

	user, err := s.deps.Users.FindByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		log.Error("identity lookup failed", logger.Err(err))
		return Tokens{}, err
	}

	ok := false
	switch {
	case user == nil:
		// mismo costo que un verify real
		password.VerifyDummy(in.Password)
		log.Debug("login failed: unknown email")
	case user.Disabled:
		password.VerifyDummy(in.Password)
		log.Info("login failed: account disabled", logger.UserID(user.ID))
	default:
		ok = password.Verify(in.Password, user.PasswordHash)
		if !ok {
			log.Debug("login failed: wrong password", logger.UserID(user.ID))
		}
	}
	if !ok {
		s.recordFailure(ctx, in.Email, in.IP)
		return Tokens{}, ErrInvalidCredentials
	}

	if s.deps.Logins != nil {
		s.deps.Logins.Clear(ctx, in.Email)
	}
	pair, err := s.deps.Refresh.IssuePair(ctx, refresh.Identity{ID: user.ID, Role: user.Role})
	if err != nil {
		log.Error("issue pair failed", logger.Err(err))
		return Tokens{}, err
	}

	audit.Log(ctx, audit.EventLoginSucceeded, map[string]any{"user_id": user.ID, "ip": in.IP})
	log.Info("login ok", logger.UserID(user.ID))
	return s.tokens(pair), nil
}

func (s *service) recordFailure(ctx context.Context, emailAddr, ip string) {
	masked := util.MaskEmail(emailAddr)
	audit.Log(ctx, audit.EventLoginFailed, map[string]any{"email": masked, "ip": ip})
	if s.deps.Logins == nil {
		return
	}
	if n := s.deps.Logins.RecordFailure(ctx, emailAddr, ip); n == s.deps.Logins.MaxFailures {
		fields := map[string]any{"email": masked, "ip": ip}
		// el log de fallos acompaña el evento de lockout para soporte
		if recent, err := s.deps.Logins.Recent(ctx, emailAddr); err == nil {
			fields["recent_failures"] = len(recent)
			fields["recent_ips"] = distinctIPs(recent)
		} else {
			logger.From(ctx).Warn("failed-login log read failed", logger.Layer("service"), logger.Err(err))
		}
		audit.Log(ctx, audit.EventLoginLocked, fields)
	}
}

func distinctIPs(fs []rate.Failure) []string {
	seen := make(map[string]struct{}, len(fs))
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		if f.IP == "" {
			continue
		}
		if _, ok := seen[f.IP]; ok {
			continue
		}
		seen[f.IP] = struct{}{}
		out = append(out, f.IP)
	}
	return out
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.refresh"),
		logger.Op("Refresh"),
	)
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Tokens{}, errs.ErrInvalidInput
	}

	pair, err := s.deps.Refresh.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrMismatch) {
			audit.Log(ctx, audit.EventRefreshReplay, nil)
		}
		log.Debug("refresh rejected", logger.Code(errs.CodeOf(err)))
		return Tokens{}, err
	}
	audit.Log(ctx, audit.EventRefreshRotated, map[string]any{"user_id": pair.AccessClaims.Subject})
	return s.tokens(pair), nil
}

// Logout revoca el access (si sigue vivo) y el refresh presentado, y borra el
// RefreshRecord de la identidad.
func (s *service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.logout"),
		logger.Op("Logout"),
	)

	var subject string
	if accessToken != "" {
		ac, err := s.deps.Codec.VerifyKind(accessToken, jwt.KindAccess)
		switch {
		case err == nil:
			subject = ac.Subject
			if err := s.deps.Revocation.RevokeClaims(ctx, ac); err != nil {
				return err
			}
		case errs.Is(err, errs.Expired):
			// ya no sirve: nada que revocar
		default:
			return err
		}
	}

	if refreshToken != "" {
		rc, err := s.deps.Codec.VerifyKind(refreshToken, jwt.KindRefresh)
		if err == nil {
			if subject != "" && rc.Subject != subject {
				log.Warn("logout with credentials of different subjects")
				return ErrInvalidCredentials
			}
			subject = rc.Subject
			if err := s.deps.Revocation.RevokeClaims(ctx, rc); err != nil {
				return err
			}
		} else if !errs.Is(err, errs.Expired) {
			return err
		}
	}

	if subject == "" {
		return errs.ErrInvalidInput
	}
	if err := s.deps.Refresh.Invalidate(ctx, subject); err != nil {
		return err
	}
	audit.Log(ctx, audit.EventLogout, map[string]any{"user_id": subject})
	log.Info("logout", logger.UserID(subject))
	return nil
}

// Authenticate valida un access token: firma, expiración y revocación.
// La revocación falla cerrado.
func (s *service) Authenticate(ctx context.Context, accessToken string) (jwt.Claims, error) {
	c, err := s.deps.Codec.VerifyKind(accessToken, jwt.KindAccess)
	if err != nil {
		return jwt.Claims{}, err
	}
	revoked, err := s.deps.Revocation.IsRevoked(ctx, c.JTI)
	if err != nil {
		logger.From(ctx).Error("revocation check failed", logger.Layer("service"), logger.JTI(c.JTI), logger.Err(err))
		return jwt.Claims{}, err
	}
	if revoked {
		return jwt.Claims{}, ErrRevoked
	}
	return c, nil
}
