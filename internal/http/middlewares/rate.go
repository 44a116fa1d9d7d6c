package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	httperrors "github.com/dropDatabas3/credengine/internal/http/errors"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"github.com/dropDatabas3/credengine/internal/rate"
)

// ClientIP extrae la IP del cliente, considerando proxies.
func ClientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateSubjectFunc define a quién se le cuenta el request.
type RateSubjectFunc func(r *http.Request) rate.Subject

// IPSubject cuenta por IP, sin rol.
func IPSubject(r *http.Request) rate.Subject {
	return rate.Subject{ID: ClientIP(r)}
}

// ClaimsSubject cuenta por identidad autenticada (con su rol) y cae a IP
// cuando no hay claims. Debe ir después de RequireAuth.
func ClaimsSubject(r *http.Request) rate.Subject {
	if c, ok := GetClaims(r.Context()); ok && c.Subject != "" {
		return rate.Subject{ID: c.Subject, Role: c.Role}
	}
	return IPSubject(r)
}

// WithRateLimit aplica el limiter para la acción dada. El limiter falla
// abierto por su cuenta; acá sólo se traduce el resultado a headers.
func WithRateLimit(limiter rate.Limiter, action string, subject RateSubjectFunc) Middleware {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if subject == nil {
		subject = IPSubject
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Check(r.Context(), subject(r), action)

			h := w.Header()
			if !res.Unlimited && !res.FailOpen {
				h.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
				h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
				if !res.ResetAt.IsZero() {
					h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
				}
			}

			if !res.Allowed {
				logger.From(r.Context()).Info("rate limited",
					logger.Layer("middleware"), logger.Action(action), logger.ClientIP(ClientIP(r)))
				retry := res.RetryAfter
				if retry <= 0 {
					retry = time.Second
				}
				e := *httperrors.ErrRateLimitExceeded
				e.RetryAfter = retry
				httperrors.WriteError(w, &e)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
