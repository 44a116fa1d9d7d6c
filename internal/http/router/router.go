// Package router arma el árbol de rutas HTTP sobre chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/credengine/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/credengine/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/credengine/internal/http/errors"
	mw "github.com/dropDatabas3/credengine/internal/http/middlewares"
	"github.com/dropDatabas3/credengine/internal/rate"
)

// Acciones del limiter a nivel HTTP (por IP o por identidad autenticada).
const (
	ActionRefresh = "refresh"
	ActionAPI     = "api"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Auth          *authctrl.Controllers
	Health        *healthctrl.HealthController
	Authenticator mw.Authenticator
	Limiter       rate.Limiter // nil = sin rate limiting HTTP
	CORSOrigins   []string
	Metrics       http.Handler // nil = sin /metrics
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
	)
	if len(d.CORSOrigins) > 0 {
		r.Use(mw.WithCORS(d.CORSOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// infra
	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.Get("/.well-known/jwks.json", d.Auth.JWKS.GetJWKS)

	requireAuth := mw.RequireAuth(d.Authenticator)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(mw.WithNoStore())

		// los throttles por email/acción viven en el service
		r.Post("/login", d.Auth.Session.Login)
		r.With(mw.WithRateLimit(d.Limiter, ActionRefresh, mw.IPSubject)).
			Post("/refresh", d.Auth.Session.Refresh)
		r.Post("/logout", d.Auth.Session.Logout)
		r.With(requireAuth, mw.WithRateLimit(d.Limiter, ActionAPI, mw.ClaimsSubject)).
			Get("/me", d.Auth.Session.Me)

		r.Post("/verify/send", d.Auth.Verification.Send)
		r.Post("/verify", d.Auth.Verification.Verify)
		r.Post("/verify/redeem", d.Auth.Verification.Redeem)

		r.Post("/password/forgot", d.Auth.Password.Forgot)
		r.Post("/password/reset", d.Auth.Password.Reset)

		r.Get("/oauth/start", d.Auth.OAuth.Start)
		r.Get("/oauth/callback", d.Auth.OAuth.Callback)
	})

	return r
}
