package auth

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	svc "github.com/dropDatabas3/credengine/internal/auth"
	dto "github.com/dropDatabas3/credengine/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/credengine/internal/http/errors"
	"github.com/dropDatabas3/credengine/internal/http/helpers"
	mw "github.com/dropDatabas3/credengine/internal/http/middlewares"
	"github.com/dropDatabas3/credengine/internal/oauthstate"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
)

var errProviderDenied = httperrors.New(http.StatusBadRequest, "OAUTH_DENIED", "El proveedor rechazó la autorización.")

// OAuthRedirect define a dónde vuelve el navegador después del callback.
type OAuthRedirect struct {
	// FrontendURL es la base absoluta del frontend. Vacío = paths relativos
	// al host del engine.
	FrontendURL string
	// ErrorPath recibe los fallos previos al ticket (state, denegación).
	ErrorPath string
}

// target arma base + path (+ query) (+ fragment). path ya viene validado
// como relativo por StartOAuth o por la config.
func (o OAuthRedirect) target(path string, query, fragment url.Values) string {
	if path == "" {
		path = "/"
	}
	u, err := url.Parse(path)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}
	if len(fragment) > 0 {
		u.Fragment = ""
	}
	out := strings.TrimRight(o.FrontendURL, "/") + u.String()
	if len(fragment) > 0 {
		out += "#" + fragment.Encode()
	}
	return out
}

// OAuthController maneja el login social.
type OAuthController struct {
	service  svc.Service
	redirect OAuthRedirect
}

func NewOAuthController(s svc.Service, redirect OAuthRedirect) *OAuthController {
	if redirect.ErrorPath == "" {
		redirect.ErrorPath = "/login"
	}
	return &OAuthController{service: s, redirect: redirect}
}

func fingerprint(r *http.Request) oauthstate.Fingerprint {
	return oauthstate.Fingerprint{IP: mw.ClientIP(r), UserAgent: r.UserAgent()}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// Start maneja GET /v1/auth/oauth/start?return_to=&correlator=
// Redirige al proveedor, o devuelve JSON si el cliente lo pide.
func (c *OAuthController) Start(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := c.service.StartOAuth(r.Context(), fingerprint(r), q.Get("correlator"), q.Get("return_to"))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if q.Get("mode") == "json" || wantsJSON(r) {
		helpers.WriteJSON(w, http.StatusOK, dto.OAuthStartResponse{AuthorizationURL: start.URL, State: start.State})
		return
	}
	http.Redirect(w, r, start.URL, http.StatusFound)
}

// Callback maneja GET /v1/auth/oauth/callback?state=&code=
// Todo fallo termina en un redirect con error=<CODE>: los de state van a
// ErrorPath, los posteriores al ticket vuelven al return_to. El éxito lleva
// los tokens en el fragment, que el navegador no manda a ningún server.
func (c *OAuthController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("OAuthController.Callback"))
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		log.Info("provider denied authorization", logger.String("error", e))
		if wantsJSON(r) {
			httperrors.WriteError(w, errProviderDenied.WithDetail(e))
			return
		}
		c.fail(w, r, c.redirect.ErrorPath, errProviderDenied.Code)
		return
	}

	res, err := c.service.OAuthCallback(ctx, q.Get("state"), q.Get("code"), fingerprint(r))
	if err != nil {
		if wantsJSON(r) {
			httperrors.WriteError(w, err)
			return
		}
		appErr := httperrors.FromError(err)
		log.Info("oauth callback failed", logger.Code(appErr.Code))
		dest := res.ReturnTo
		if dest == "" {
			dest = c.redirect.ErrorPath
		}
		c.fail(w, r, dest, appErr.Code)
		return
	}

	if wantsJSON(r) {
		helpers.WriteJSON(w, http.StatusOK, dto.OAuthCallbackResponse{
			TokenResponse: tokenResponse(res.Tokens),
			ReturnTo:      res.ReturnTo,
			Correlator:    res.Correlator,
		})
		return
	}
	frag := url.Values{}
	frag.Set("access_token", res.Tokens.AccessToken)
	frag.Set("refresh_token", res.Tokens.RefreshToken)
	frag.Set("token_type", res.Tokens.TokenType)
	frag.Set("expires_in", strconv.FormatInt(res.Tokens.ExpiresIn, 10))
	if res.Correlator != "" {
		frag.Set("correlator", res.Correlator)
	}
	http.Redirect(w, r, c.redirect.target(res.ReturnTo, nil, frag), http.StatusFound)
}

func (c *OAuthController) fail(w http.ResponseWriter, r *http.Request, path, code string) {
	http.Redirect(w, r, c.redirect.target(path, url.Values{"error": {code}}, nil), http.StatusFound)
}
