// Package auth orquesta los flows de credenciales sobre los managers del
// engine: login/refresh/logout, verificación de email por OTP, recuperación
// de contraseña y login social con state anti-CSRF.
//
// El servicio no guarda estado propio: todo vive en el TTL store a través de
// los managers, o en los colaboradores externos (identity, email, provider).
package auth

import (
	"context"
	"time"

	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/email"
	"github.com/dropDatabas3/credengine/internal/identity"
	"github.com/dropDatabas3/credengine/internal/jwt"
	"github.com/dropDatabas3/credengine/internal/oauthstate"
	"github.com/dropDatabas3/credengine/internal/oauthx"
	"github.com/dropDatabas3/credengine/internal/otp"
	"github.com/dropDatabas3/credengine/internal/rate"
	"github.com/dropDatabas3/credengine/internal/refresh"
	"github.com/dropDatabas3/credengine/internal/reset"
	"github.com/dropDatabas3/credengine/internal/revocation"
	"github.com/dropDatabas3/credengine/internal/security/password"
	"github.com/dropDatabas3/credengine/internal/session"
)

// Acciones del rate limiter usadas por los flows.
const (
	ActionLogin   = "login"
	ActionOTPSend = "otp_send"
	ActionForgot  = "forgot"
)

// Service es el contrato que consumen los controllers HTTP y el CLI.
type Service interface {
	Login(ctx context.Context, in LoginInput) (Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (jwt.Claims, error)

	SendVerificationCode(ctx context.Context, emailAddr string) error
	VerifyEmail(ctx context.Context, emailAddr, code string) (string, error)
	RedeemVerification(ctx context.Context, token string) (string, error)

	ForgotPassword(ctx context.Context, emailAddr, ip string) error
	ResetPassword(ctx context.Context, token, newPassword string) error

	StartOAuth(ctx context.Context, fp oauthstate.Fingerprint, correlator, returnTo string) (OAuthStart, error)
	OAuthCallback(ctx context.Context, state, code string, fp oauthstate.Fingerprint) (OAuthResult, error)
}

// Deps contiene las dependencias del servicio.
type Deps struct {
	Codec      *jwt.Codec
	Refresh    refresh.Manager
	Revocation revocation.Registry
	OTP        otp.Manager
	Limiter    rate.Limiter
	Logins     *rate.LoginAttempts
	State      oauthstate.Manager
	Reset      reset.Manager
	Verifier   session.Verifier

	Users    identity.Store
	Email    email.Sender
	Provider oauthx.Provider // nil = login social deshabilitado

	Policy      password.Policy
	HashParams  password.Params
	OTPTTL      time.Duration // sólo para el texto del email
	ResetTTL    time.Duration
	ResetLink   string // base del link de reset, ej "https://app/reset"
}

// Tokens es el par emitido al cliente.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"-"`
	UserID       string    `json:"-"`
	Role         string    `json:"-"`
}

// LoginInput del flow de login por contraseña.
type LoginInput struct {
	Email    string
	Password string
	IP       string
}

// OAuthStart es el resultado de iniciar el handshake.
type OAuthStart struct {
	State string
	URL   string
}

// OAuthResult es el resultado del callback. Si el ticket ya se leyó, ReturnTo
// y Correlator vienen cargados aunque haya error.
type OAuthResult struct {
	Tokens     Tokens
	ReturnTo   string
	Correlator string
}

// Errores de los flows. Los de los managers se devuelven tal cual.
var (
	ErrInvalidCredentials = errs.New(errs.Unauthenticated, "INVALID_CREDENTIALS", "invalid email or password")
	ErrAccountLocked      = errs.New(errs.RateLimited, "ACCOUNT_LOCKED", "too many failed attempts, try again later")
	ErrRevoked            = errs.New(errs.Revoked, "REVOKED", "credential has been revoked")
	ErrOAuthDisabled      = errs.New(errs.Validation, "OAUTH_DISABLED", "social login is not configured")
	ErrOAuthExchange      = errs.New(errs.Unauthenticated, "OAUTH_EXCHANGE_FAILED", "could not complete the provider handshake")
	ErrOAuthUnverified    = errs.New(errs.Unauthenticated, "OAUTH_EMAIL_UNVERIFIED", "provider email is not verified")
	ErrAccountNotFound    = errs.New(errs.NotFound, "ACCOUNT_NOT_FOUND", "no account is linked to this email")
	ErrInvalidReturnTo    = errs.New(errs.Validation, "INVALID_RETURN_TO", "return target must be a relative path")
	// sin código activo, código incorrecto o intentos agotados: mismo error,
	// así VerifyEmail no revela si la cuenta existe
	ErrInvalidCode        = errs.New(errs.Unauthenticated, "INVALID_CODE", "verification code is invalid or expired")
)

type service struct {
	deps Deps
}

// New crea el servicio de flows.
func New(deps Deps) Service {
	if deps.Email == nil {
		deps.Email = email.LogSender{}
	}
	if deps.HashParams == (password.Params{}) {
		deps.HashParams = password.Default
	}
	return &service{deps: deps}
}

func (s *service) tokens(p refresh.Pair) Tokens {
	return Tokens{
		AccessToken:  p.Access,
		RefreshToken: p.Refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(p.AccessClaims.ExpiresAt.Sub(p.AccessClaims.IssuedAt).Seconds()),
		ExpiresAt:    p.AccessClaims.ExpiresAt,
		UserID:       p.AccessClaims.Subject,
		Role:         p.AccessClaims.Role,
	}
}

// throttle aplica el limiter. El limiter ya falla abierto por su cuenta.
func (s *service) throttle(ctx context.Context, action, id, role string) error {
	if s.deps.Limiter == nil {
		return nil
	}
	res := s.deps.Limiter.Check(ctx, rate.Subject{ID: id, Role: role}, action)
	if !res.Allowed {
		return errs.ErrRateLimited.WithRetryAfter(res.RetryAfter)
	}
	return nil
}
