// Package auth contiene los DTOs de los endpoints de credenciales.
package auth

// LoginRequest es el body de POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse es la respuesta de login, refresh y callback OAuth.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"` // "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // segundos
	RefreshToken string `json:"refresh_token"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest: el access viaja en Authorization, el refresh en el body.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// MeResponse devuelve las claims del access token presentado.
type MeResponse struct {
	Subject   string `json:"sub"`
	Role      string `json:"role"`
	JTI       string `json:"jti"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

type SendCodeRequest struct {
	Email string `json:"email"`
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type VerifyEmailResponse struct {
	Verified          bool   `json:"verified"`
	VerificationToken string `json:"verification_token"`
}

type RedeemVerificationRequest struct {
	VerificationToken string `json:"verification_token"`
}

type RedeemVerificationResponse struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// AcceptedResponse es la respuesta genérica de los flows que no revelan
// si la cuenta existe.
type AcceptedResponse struct {
	Status string `json:"status"`
}
