// Package auth contiene los controllers HTTP de los flows de credenciales.
package auth

import (
	svc "github.com/dropDatabas3/credengine/internal/auth"
	dto "github.com/dropDatabas3/credengine/internal/http/dto/auth"
	"github.com/dropDatabas3/credengine/internal/jwt"
)

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	Session      *SessionController
	Verification *VerificationController
	Password     *PasswordController
	OAuth        *OAuthController
	JWKS         *JWKSController
}

// NewControllers crea el agregador de controllers auth.
func NewControllers(s svc.Service, codec *jwt.Codec, redirect OAuthRedirect) *Controllers {
	return &Controllers{
		Session:      NewSessionController(s),
		Verification: NewVerificationController(s),
		Password:     NewPasswordController(s),
		OAuth:        NewOAuthController(s, redirect),
		JWKS:         NewJWKSController(codec),
	}
}

func tokenResponse(t svc.Tokens) dto.TokenResponse {
	return dto.TokenResponse{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
		RefreshToken: t.RefreshToken,
	}
}
