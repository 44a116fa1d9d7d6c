package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/jwt"
	"github.com/dropDatabas3/credengine/internal/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	if got := ClientIP(r); got != "192.0.2.1" {
		t.Fatalf("remote: %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Fatalf("xff: %q", got)
	}
}

func TestWithRateLimit(t *testing.T) {
	store := cache.NewMemory("")
	lim := rate.NewFixedWindow(store, map[string]rate.Tier{
		"refresh": {Default: rate.Policy{Limit: 2, Window: time.Minute}},
	}, nil)
	h := Chain(okHandler(), WithRateLimit(lim, "refresh", IPSubject))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("limit header: %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}

type stubAuth struct {
	claims jwt.Claims
	err    error
}

func (s stubAuth) Authenticate(ctx context.Context, tok string) (jwt.Claims, error) {
	return s.claims, s.err
}

func TestRequireAuthAndRole(t *testing.T) {
	var seen jwt.Claims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetClaims(r.Context())
	})
	auth := stubAuth{claims: jwt.Claims{Subject: "u1", Role: "user"}}

	rec := httptest.NewRecorder()
	Chain(inner, RequireAuth(auth)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing bearer: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec = httptest.NewRecorder()
	Chain(inner, RequireAuth(auth)).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen.Subject != "u1" {
		t.Fatalf("authed: %d %+v", rec.Code, seen)
	}

	rec = httptest.NewRecorder()
	Chain(inner, RequireAuth(auth), RequireRole("admin")).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("role: %d", rec.Code)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var got string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}), WithRequestID())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got != "abc-123" || rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("request id: ctx=%q header=%q", got, rec.Header().Get("X-Request-ID"))
	}
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }), WithRecover())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
}
