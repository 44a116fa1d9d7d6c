package middlewares

import (
	"context"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/credengine/internal/http/errors"
	"github.com/dropDatabas3/credengine/internal/jwt"
)

// Authenticator valida un access token (firma, expiración y revocación).
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (jwt.Claims, error)
}

// BearerToken extrae el token de "Authorization: Bearer <t>".
func BearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[7:])
}

// RequireAuth valida el bearer y guarda las claims en el contexto.
func RequireAuth(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				httperrors.WriteError(w, httperrors.ErrTokenMissing)
				return
			}
			claims, err := a.Authenticate(r.Context(), raw)
			if err != nil {
				httperrors.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole exige uno de los roles dados. Va después de RequireAuth.
func RequireRole(roles ...string) Middleware {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := GetClaims(r.Context())
			if !ok {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !allowed[c.Role] {
				httperrors.WriteError(w, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
