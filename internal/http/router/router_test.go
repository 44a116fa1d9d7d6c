package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/credengine/internal/auth"
	"github.com/dropDatabas3/credengine/internal/cache"
	authctrl "github.com/dropDatabas3/credengine/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/credengine/internal/http/controllers/health"
	dto "github.com/dropDatabas3/credengine/internal/http/dto/auth"
	"github.com/dropDatabas3/credengine/internal/identity"
	"github.com/dropDatabas3/credengine/internal/jwt"
	"github.com/dropDatabas3/credengine/internal/oauthstate"
	"github.com/dropDatabas3/credengine/internal/oauthx"
	"github.com/dropDatabas3/credengine/internal/otp"
	"github.com/dropDatabas3/credengine/internal/rate"
	"github.com/dropDatabas3/credengine/internal/refresh"
	"github.com/dropDatabas3/credengine/internal/reset"
	"github.com/dropDatabas3/credengine/internal/revocation"
	"github.com/dropDatabas3/credengine/internal/security/password"
	"github.com/dropDatabas3/credengine/internal/session"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }
func (stubProvider) AuthURL(state string) string {
	return "https://idp.example/authorize?state=" + url.QueryEscape(state)
}
func (stubProvider) Exchange(_ context.Context, code string) (oauthx.Profile, error) {
	if code != "good" {
		return oauthx.Profile{}, errors.New("bad code")
	}
	return oauthx.Profile{Provider: "stub", Email: "ana@example.com", EmailVerified: true}, nil
}

type handlerOpts struct {
	provider oauthx.Provider
	redirect authctrl.OAuthRedirect
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	return newTestHandlerWith(t, handlerOpts{})
}

func newTestHandlerWith(t *testing.T, opts handlerOpts) http.Handler {
	t.Helper()
	store := cache.NewMemory("")
	ks, err := jwt.NewDevEd25519("")
	require.NoError(t, err)
	codec, err := jwt.NewCodec(jwt.Config{Issuer: "test", AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour, Keys: []*jwt.KeySet{ks}})
	require.NoError(t, err)

	params := password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16}
	hash, err := password.Hash(params, "Correct-horse-1")
	require.NoError(t, err)
	users := identity.NewMemory(
		identity.Record{ID: "u1", Email: "ana@example.com", Role: "user", EmailVerified: true, PasswordHash: hash},
		identity.Record{ID: "u2", Email: "ben@example.com", Role: "user", PasswordHash: hash},
	)

	rm := refresh.New(refresh.Deps{Store: store, Codec: codec})
	rv := revocation.New(revocation.Deps{Store: store, MaxTTL: codec.MaxTTL()})
	limiter := rate.NewFixedWindow(store, map[string]rate.Tier{
		ActionRefresh: {Default: rate.Policy{Limit: 2, Window: time.Minute}},
		ActionAPI:     {Default: rate.Policy{Limit: 100, Window: time.Minute}},
	}, nil)

	svc := auth.New(auth.Deps{
		Codec:      codec,
		Refresh:    rm,
		Revocation: rv,
		OTP:        otp.New(otp.Deps{Store: store}),
		Limiter:    limiter,
		Logins:     rate.NewLoginAttempts(store, 5, time.Hour, 24*time.Hour),
		State:      oauthstate.New(oauthstate.Deps{Store: store, StrictIP: true}),
		Reset:      reset.New(reset.Deps{Store: store, Refresh: rm, Revocation: rv}),
		Verifier:   session.NewVerifier(store, 0),
		Users:      users,
		Provider:   opts.provider,
		HashParams: params,
	})

	return New(Deps{
		Auth:          authctrl.NewControllers(svc, codec, opts.redirect),
		Health:        healthctrl.NewHealthController(map[string]healthctrl.Pinger{"store": store}, "test", codec.ActiveKID()),
		Authenticator: svc,
		Limiter:       limiter,
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestLoginMeLogout(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/v1/auth/login", dto.LoginRequest{Email: "ana@example.com", Password: "Correct-horse-1"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	tok := decode[dto.TokenResponse](t, rec)
	require.Equal(t, "Bearer", tok.TokenType)

	rec = do(t, h, http.MethodGet, "/v1/auth/me", nil, tok.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[dto.MeResponse](t, rec)
	require.Equal(t, "u1", me.Subject)
	require.Equal(t, "user", me.Role)

	rec = do(t, h, http.MethodPost, "/v1/auth/logout", dto.LogoutRequest{RefreshToken: tok.RefreshToken}, tok.AccessToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/auth/me", nil, tok.AccessToken)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "REVOKED", decode[map[string]any](t, rec)["code"])
}

func TestLoginErrorsAreIndistinguishable(t *testing.T) {
	h := newTestHandler(t)

	wrong := do(t, h, http.MethodPost, "/v1/auth/login", dto.LoginRequest{Email: "ana@example.com", Password: "nope"}, "")
	unknown := do(t, h, http.MethodPost, "/v1/auth/login", dto.LoginRequest{Email: "ghost@example.com", Password: "nope"}, "")

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, wrong.Code, unknown.Code)
	require.JSONEq(t, wrong.Body.String(), unknown.Body.String())
}

func TestRefreshRotationAndThrottle(t *testing.T) {
	h := newTestHandler(t)
	rec := do(t, h, http.MethodPost, "/v1/auth/login", dto.LoginRequest{Email: "ana@example.com", Password: "Correct-horse-1"}, "")
	tok := decode[dto.TokenResponse](t, rec)

	rec = do(t, h, http.MethodPost, "/v1/auth/refresh", dto.RefreshRequest{RefreshToken: tok.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/auth/refresh", dto.RefreshRequest{RefreshToken: tok.RefreshToken}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "MISMATCH", decode[map[string]any](t, rec)["code"])

	rec = do(t, h, http.MethodPost, "/v1/auth/refresh", dto.RefreshRequest{RefreshToken: tok.RefreshToken}, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestVerifySendUnknownEmailAccepted(t *testing.T) {
	h := newTestHandler(t)
	rec := do(t, h, http.MethodPost, "/v1/auth/verify/send", dto.SendCodeRequest{Email: "ghost@example.com"}, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestOAuthDisabled(t *testing.T) {
	h := newTestHandler(t)
	rec := do(t, h, http.MethodGet, "/v1/auth/oauth/start", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "OAUTH_DISABLED", decode[map[string]any](t, rec)["code"])
}

func TestInfraRoutes(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/.well-known/jwks.json", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	jwks := decode[struct {
		Keys []map[string]any `json:"keys"`
	}](t, rec)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0]["kty"])

	rec = do(t, h, http.MethodGet, "/readyz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-JWKS-KID"))

	rec = do(t, h, http.MethodGet, "/nope", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "ROUTE_NOT_FOUND", decode[map[string]any](t, rec)["code"])

	rec = do(t, h, http.MethodGet, "/v1/auth/login", nil, "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMissingContentType(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestVerifyEmailErrorsAreIndistinguishable(t *testing.T) {
	h := newTestHandler(t)
	for _, addr := range []string{"ben@example.com", "ghost@example.com"} {
		rec := do(t, h, http.MethodPost, "/v1/auth/verify/send", dto.SendCodeRequest{Email: addr}, "")
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	known := do(t, h, http.MethodPost, "/v1/auth/verify", dto.VerifyEmailRequest{Email: "ben@example.com", Code: "000000x"}, "")
	unknown := do(t, h, http.MethodPost, "/v1/auth/verify", dto.VerifyEmailRequest{Email: "ghost@example.com", Code: "000000x"}, "")

	require.Equal(t, http.StatusUnauthorized, known.Code)
	require.Equal(t, known.Code, unknown.Code)
	require.JSONEq(t, known.Body.String(), unknown.Body.String())
	require.Equal(t, "INVALID_CODE", decode[map[string]any](t, known)["code"])
}

func TestRedeemVerificationRejectsUnknownToken(t *testing.T) {
	h := newTestHandler(t)
	rec := do(t, h, http.MethodPost, "/v1/auth/verify/redeem", dto.RedeemVerificationRequest{VerificationToken: "vst_nope"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_VERIFICATION_TOKEN", decode[map[string]any](t, rec)["code"])
}

func TestOAuthCallbackRedirects(t *testing.T) {
	h := newTestHandlerWith(t, handlerOpts{
		provider: stubProvider{},
		redirect: authctrl.OAuthRedirect{FrontendURL: "https://app.example.com/"},
	})
	start := func(returnTo string) string {
		t.Helper()
		rec := do(t, h, http.MethodGet, "/v1/auth/oauth/start?mode=json&return_to="+url.QueryEscape(returnTo), nil, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[dto.OAuthStartResponse](t, rec).State
	}
	callback := func(query string, ip string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/v1/auth/oauth/callback?"+query, nil)
		if ip != "" {
			req.Header.Set("X-Forwarded-For", ip)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
		return rec
	}

	// éxito: vuelve al return_to con los tokens en el fragment
	state := start("/dashboard")
	loc := callback("state="+url.QueryEscape(state)+"&code=good", "").Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "https://app.example.com/dashboard#"), loc)
	u, err := url.Parse(loc)
	require.NoError(t, err)
	frag, err := url.ParseQuery(u.Fragment)
	require.NoError(t, err)
	require.NotEmpty(t, frag.Get("access_token"))
	require.NotEmpty(t, frag.Get("refresh_token"))
	require.Equal(t, "Bearer", frag.Get("token_type"))
	require.Empty(t, u.RawQuery)

	// replay del mismo state
	loc = callback("state="+url.QueryEscape(state)+"&code=good", "").Header().Get("Location")
	require.Equal(t, "https://app.example.com/login?error=INVALID_OR_EXPIRED_STATE", loc)

	loc = callback("code=good", "").Header().Get("Location")
	require.Equal(t, "https://app.example.com/login?error=MISSING_STATE", loc)

	state = start("/dashboard")
	loc = callback("state="+url.QueryEscape(state)+"&code=good", "198.51.100.7").Header().Get("Location")
	require.Equal(t, "https://app.example.com/login?error=FINGERPRINT_MISMATCH", loc)

	loc = callback("error=access_denied", "").Header().Get("Location")
	require.Equal(t, "https://app.example.com/login?error=OAUTH_DENIED", loc)

	// fallo después de leer el ticket: vuelve al return_to
	state = start("/settings")
	loc = callback("state="+url.QueryEscape(state)+"&code=bad", "").Header().Get("Location")
	require.Equal(t, "https://app.example.com/settings?error=OAUTH_EXCHANGE_FAILED", loc)
}

func TestOAuthCallbackJSONForAPIClients(t *testing.T) {
	h := newTestHandlerWith(t, handlerOpts{provider: stubProvider{}})
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/oauth/callback?state=nope&code=good", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_OR_EXPIRED_STATE", decode[map[string]any](t, rec)["code"])
}
