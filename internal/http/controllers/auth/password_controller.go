package auth

import (
	"net/http"

	svc "github.com/dropDatabas3/credengine/internal/auth"
	dto "github.com/dropDatabas3/credengine/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/credengine/internal/http/errors"
	"github.com/dropDatabas3/credengine/internal/http/helpers"
	mw "github.com/dropDatabas3/credengine/internal/http/middlewares"
)

// PasswordController maneja forgot/reset.
type PasswordController struct {
	service svc.Service
}

func NewPasswordController(s svc.Service) *PasswordController {
	return &PasswordController{service: s}
}

// Forgot maneja POST /v1/auth/password/forgot
func (c *PasswordController) Forgot(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email is required"))
		return
	}
	if err := c.service.ForgotPassword(r.Context(), req.Email, mw.ClientIP(r)); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, dto.AcceptedResponse{Status: "sent"})
}

// Reset maneja POST /v1/auth/password/reset
func (c *PasswordController) Reset(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("token and new_password are required"))
		return
	}
	if err := c.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
