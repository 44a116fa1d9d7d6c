// Package app es la raíz de composición: arma store, managers, service y
// handler HTTP a partir de la config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/credengine/internal/audit"
	"github.com/dropDatabas3/credengine/internal/auth"
	"github.com/dropDatabas3/credengine/internal/bootstrap"
	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/config"
	"github.com/dropDatabas3/credengine/internal/email"
	authctrl "github.com/dropDatabas3/credengine/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/credengine/internal/http/controllers/health"
	"github.com/dropDatabas3/credengine/internal/http/router"
	"github.com/dropDatabas3/credengine/internal/identity"
	"github.com/dropDatabas3/credengine/internal/jwt"
	"github.com/dropDatabas3/credengine/internal/metrics"
	"github.com/dropDatabas3/credengine/internal/oauthstate"
	"github.com/dropDatabas3/credengine/internal/oauthx"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"github.com/dropDatabas3/credengine/internal/otp"
	"github.com/dropDatabas3/credengine/internal/refresh"
	"github.com/dropDatabas3/credengine/internal/reset"
	"github.com/dropDatabas3/credengine/internal/revocation"
	"github.com/dropDatabas3/credengine/internal/security/password"
	"github.com/dropDatabas3/credengine/internal/session"
)

// Deps permite inyectar piezas ya construidas (tests, embedding).
// Los campos nil se arman desde la config.
type Deps struct {
	Store    cache.Client
	Identity identity.Store
	Email    email.Sender
	Provider oauthx.Provider
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer
	// HashParams sobreescribe el costo de argon2id (tests).
	HashParams *password.Params
}

// App representa la aplicación cableada.
type App struct {
	Handler    http.Handler
	Store      cache.Client
	Codec      *jwt.Codec
	Auth       auth.Service
	Revocation revocation.Registry
	Identity   identity.Store

	closers []func() error
}

// Close libera store, pool de identidades y sink de auditoría, en orden inverso.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// New crea y cablea la aplicación.
func New(ctx context.Context, cfg *config.Config, deps Deps) (_ *App, err error) {
	log := logger.From(ctx).With(logger.Component("app"), logger.Op("New"))
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// 1. TTL store
	store := deps.Store
	if store == nil {
		store, err = OpenStore(cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
	}
	store = cache.Instrument(store)
	a.Store = store

	// 2. Codec
	codec, err := NewCodec(cfg)
	if err != nil {
		return nil, err
	}
	a.Codec = codec

	// 3. Managers
	revoc := NewRevocation(store, codec)
	a.Revocation = revoc
	refreshMgr := refresh.New(refresh.Deps{Store: store, Codec: codec})
	otpMgr := otp.New(otp.Deps{Store: store, Config: otp.Config{
		Digits:      cfg.OTP.Digits,
		TTL:         config.Dur(cfg.OTP.TTL),
		MaxAttempts: cfg.OTP.MaxAttempts,
	}})
	stateMgr := oauthstate.New(oauthstate.Deps{
		Store:    store,
		TTL:      config.Dur(cfg.OAuth.StateTTL),
		StrictIP: cfg.OAuth.StrictIP == nil || *cfg.OAuth.StrictIP,
	})
	resetMgr := reset.New(reset.Deps{
		Store:      store,
		TTL:        config.Dur(cfg.Reset.TTL),
		Refresh:    refreshMgr,
		Revocation: revoc,
	})
	verifier := session.NewVerifier(store, config.Dur(cfg.Verification.TTL))
	limiter := NewLimiter(cfg, store)
	logins := NewLoginAttempts(cfg, store)

	// 4. Password policy
	policy, err := NewPolicy(cfg)
	if err != nil {
		return nil, err
	}
	params := password.Default
	if deps.HashParams != nil {
		params = *deps.HashParams
	}

	// 5. Identidades
	users := deps.Identity
	if users == nil {
		users, err = a.openIdentity(ctx, cfg, policy, params)
		if err != nil {
			return nil, err
		}
	}
	a.Identity = users

	// 6. Email, proveedor OAuth y auditoría
	sender := deps.Email
	if sender == nil {
		sender = NewEmailSender(cfg)
	}
	provider := deps.Provider
	if provider == nil {
		provider, err = NewProvider(cfg)
		if err != nil {
			return nil, err
		}
	}
	if strings.EqualFold(cfg.Audit.Sink, "kafka") {
		sink := audit.NewKafkaSink(cfg.Audit.Brokers, cfg.Audit.Topic)
		prev := audit.SetSink(sink)
		a.closers = append(a.closers, func() error {
			audit.SetSink(prev)
			return sink.Close()
		})
	}

	// 7. Service
	svc := auth.New(auth.Deps{
		Codec:      codec,
		Refresh:    refreshMgr,
		Revocation: revoc,
		OTP:        otpMgr,
		Limiter:    limiter,
		Logins:     logins,
		State:      stateMgr,
		Reset:      resetMgr,
		Verifier:   verifier,
		Users:      users,
		Email:      sender,
		Provider:   provider,
		Policy:     policy,
		HashParams: params,
		OTPTTL:     config.Dur(cfg.OTP.TTL),
		ResetTTL:   config.Dur(cfg.Reset.TTL),
		ResetLink:  cfg.Reset.LinkBaseURL,
	})
	a.Auth = svc

	// 8. HTTP
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("app: register metrics: %w", err)
	}
	metricsHandler := promhttp.Handler()
	if deps.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})
	}

	health := healthctrl.NewHealthController(
		map[string]healthctrl.Pinger{"ttl_store": store},
		cfg.App.Version,
		codec.ActiveKID(),
	)
	ctrls := authctrl.NewControllers(svc, codec, authctrl.OAuthRedirect{
		FrontendURL: cfg.OAuth.FrontendURL,
		ErrorPath:   cfg.OAuth.ErrorPath,
	})
	a.Handler = router.New(router.Deps{
		Auth:          ctrls,
		Health:        health,
		Authenticator: svc,
		Limiter:       limiter,
		CORSOrigins:   cfg.Server.CORSAllowedOrigins,
		Metrics:       metricsHandler,
	})

	log.Info("app wired",
		logger.String("cache_driver", cfg.Cache.Driver),
		logger.String("identity_driver", cfg.Identity.Driver),
		logger.String("audit_sink", cfg.Audit.Sink),
		logger.Bool("rate_enabled", limiter != nil),
		logger.Bool("oauth_enabled", provider != nil),
		logger.String("kid", codec.ActiveKID()),
	)
	return a, nil
}

func (a *App) openIdentity(ctx context.Context, cfg *config.Config, policy password.Policy, params password.Params) (identity.Store, error) {
	switch cfg.Identity.Driver {
	case "postgres":
		pg, err := identity.NewPG(ctx, cfg.Identity.DSN)
		if err != nil {
			return nil, fmt.Errorf("app: identity store: %w", err)
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		if ttl := config.Dur(cfg.Identity.CacheTTL); ttl > 0 {
			return identity.NewCached(pg, ttl), nil
		}
		return pg, nil
	default:
		mem := identity.NewMemory()
		_, err := bootstrap.CheckAndCreateAdmin(ctx, bootstrap.AdminBootstrapConfig{
			Store:         mem,
			AdminEmail:    cfg.Identity.BootstrapAdmin.Email,
			AdminPassword: cfg.Identity.BootstrapAdmin.Password,
			Policy:        policy,
			Params:        params,
		})
		if err != nil {
			return nil, err
		}
		return mem, nil
	}
}
