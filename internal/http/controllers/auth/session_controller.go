package auth

import (
	"net/http"
	"strings"

	svc "github.com/dropDatabas3/credengine/internal/auth"
	dto "github.com/dropDatabas3/credengine/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/credengine/internal/http/errors"
	"github.com/dropDatabas3/credengine/internal/http/helpers"
	mw "github.com/dropDatabas3/credengine/internal/http/middlewares"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
)

// SessionController maneja login, refresh, logout y /me.
type SessionController struct {
	service svc.Service
}

func NewSessionController(s svc.Service) *SessionController {
	return &SessionController{service: s}
}

// Login maneja POST /v1/auth/login
func (c *SessionController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SessionController.Login"))

	var req dto.LoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email and password are required"))
		return
	}

	tok, err := c.service.Login(ctx, svc.LoginInput{Email: req.Email, Password: req.Password, IP: mw.ClientIP(r)})
	if err != nil {
		log.Debug("login failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, tokenResponse(tok))
}

// Refresh maneja POST /v1/auth/refresh
func (c *SessionController) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("refresh_token is required"))
		return
	}
	tok, err := c.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, tokenResponse(tok))
}

// Logout maneja POST /v1/auth/logout. El body es opcional.
func (c *SessionController) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	if r.ContentLength != 0 {
		if !helpers.ReadJSON(w, r, &req) {
			return
		}
	}
	access := mw.BearerToken(r)
	if access == "" && req.RefreshToken == "" {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	if err := c.service.Logout(r.Context(), access, req.RefreshToken); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me maneja GET /v1/auth/me (requiere RequireAuth).
func (c *SessionController) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.GetClaims(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.MeResponse{
		Subject:   claims.Subject,
		Role:      claims.Role,
		JTI:       claims.JTI,
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	})
}
