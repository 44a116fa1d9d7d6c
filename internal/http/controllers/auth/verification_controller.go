package auth

import (
	"net/http"

	svc "github.com/dropDatabas3/credengine/internal/auth"
	dto "github.com/dropDatabas3/credengine/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/credengine/internal/http/errors"
	"github.com/dropDatabas3/credengine/internal/http/helpers"
)

// VerificationController maneja el envío y la verificación del OTP de email.
type VerificationController struct {
	service svc.Service
}

func NewVerificationController(s svc.Service) *VerificationController {
	return &VerificationController{service: s}
}

// Send maneja POST /v1/auth/verify/send. Siempre 202 salvo throttle.
func (c *VerificationController) Send(w http.ResponseWriter, r *http.Request) {
	var req dto.SendCodeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email is required"))
		return
	}
	if err := c.service.SendVerificationCode(r.Context(), req.Email); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, dto.AcceptedResponse{Status: "sent"})
}

// Verify maneja POST /v1/auth/verify
func (c *VerificationController) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyEmailRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Code == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email and code are required"))
		return
	}
	tok, err := c.service.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.VerifyEmailResponse{Verified: true, VerificationToken: tok})
}

// Redeem maneja POST /v1/auth/verify/redeem: canjea el verification token
// (un solo uso) por el email verificado.
func (c *VerificationController) Redeem(w http.ResponseWriter, r *http.Request) {
	var req dto.RedeemVerificationRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.VerificationToken == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("verification_token is required"))
		return
	}
	emailAddr, err := c.service.RedeemVerification(r.Context(), req.VerificationToken)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.RedeemVerificationResponse{Email: emailAddr, Verified: true})
}
