package app

import (
	"fmt"
	"strings"

	"github.com/dropDatabas3/credengine/internal/auth"
	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/config"
	"github.com/dropDatabas3/credengine/internal/email"
	"github.com/dropDatabas3/credengine/internal/jwt"
	"github.com/dropDatabas3/credengine/internal/oauthx"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"github.com/dropDatabas3/credengine/internal/rate"
	"github.com/dropDatabas3/credengine/internal/revocation"
	"github.com/dropDatabas3/credengine/internal/security/password"
)

// OpenStore abre el TTL store configurado (memory o redis).
func OpenStore(cfg *config.Config) (cache.Client, error) {
	c, err := cache.New(cache.Config{
		Driver:    cfg.Cache.Driver,
		Addr:      cfg.Cache.Redis.Addr,
		Password:  cfg.Cache.Redis.Password,
		DB:        cfg.Cache.Redis.DB,
		Prefix:    cfg.Cache.Redis.Prefix,
		OpTimeout: config.Dur(cfg.Cache.Redis.OpTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("app: ttl store: %w", err)
	}
	return c, nil
}

// NewCodec arma el codec con la clave activa y las que se están retirando.
// Sin seed genera una clave efímera (Validate ya la prohíbe en prod).
func NewCodec(cfg *config.Config) (*jwt.Codec, error) {
	var keys []*jwt.KeySet
	if seed := strings.TrimSpace(cfg.JWT.SigningSeed); seed != "" {
		ks, err := jwt.KeySetFromSeed(seed, "")
		if err != nil {
			return nil, err
		}
		keys = append(keys, ks)
	} else {
		ks, err := jwt.NewDevEd25519("")
		if err != nil {
			return nil, err
		}
		logger.L().Warn("no signing seed configured, using an ephemeral key",
			logger.Component("app"), logger.String("kid", ks.KID))
		keys = append(keys, ks)
	}
	for i, seed := range cfg.JWT.RetiringSeeds {
		ks, err := jwt.KeySetFromSeed(seed, "")
		if err != nil {
			return nil, fmt.Errorf("jwt.retiring_seeds[%d]: %w", i, err)
		}
		keys = append(keys, ks)
	}
	return jwt.NewCodec(jwt.Config{
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  config.Dur(cfg.JWT.AccessTTL),
		RefreshTTL: config.Dur(cfg.JWT.RefreshTTL),
		Keys:       keys,
	})
}

// NewRevocation crea el registry con el clamp en la vida más larga emitida.
func NewRevocation(store cache.Client, codec *jwt.Codec) revocation.Registry {
	return revocation.New(revocation.Deps{Store: store, MaxTTL: codec.MaxTTL()})
}

// NewLimiter traduce rate.actions a limiters. Las acciones "sliding" y el
// reenvío de OTP van al sliding window; el resto al fixed window.
// Devuelve nil si el rate limiting está deshabilitado.
func NewLimiter(cfg *config.Config, store cache.Client) rate.Limiter {
	if cfg.Rate.Enabled != nil && !*cfg.Rate.Enabled {
		return nil
	}

	tiers := make(map[string]rate.Tier, len(cfg.Rate.Actions))
	sliding := map[string]rate.Policy{}
	for name, t := range cfg.Rate.Actions {
		def := policyOf(t.RatePolicy)
		if t.Strategy == "sliding" {
			sliding[name] = def
			continue
		}
		tier := rate.Tier{Default: def}
		if len(t.Roles) > 0 {
			tier.Roles = make(map[string]rate.Policy, len(t.Roles))
			for role, p := range t.Roles {
				tier.Roles[role] = policyOf(p)
			}
		}
		tiers[name] = tier
	}
	if _, ok := sliding[auth.ActionOTPSend]; !ok {
		sliding[auth.ActionOTPSend] = policyOf(cfg.OTP.Resend)
	}

	multi := rate.NewMulti(rate.NewFixedWindow(store, tiers, cfg.Rate.UnlimitedRoles))
	sw := rate.NewSlidingWindow(store, sliding)
	for name := range sliding {
		multi.Route(name, sw)
	}
	return multi
}

func policyOf(p config.RatePolicy) rate.Policy {
	return rate.Policy{Limit: int64(p.Limit), Window: config.Dur(p.Window)}
}

// NewLoginAttempts crea el registro de fallos de login.
func NewLoginAttempts(cfg *config.Config, store cache.Client) *rate.LoginAttempts {
	return rate.NewLoginAttempts(store,
		int64(cfg.Login.MaxFailures),
		config.Dur(cfg.Login.LockoutWindow),
		config.Dur(cfg.Login.Retention),
	)
}

// NewPolicy arma la política de passwords, con blacklist opcional.
func NewPolicy(cfg *config.Config) (password.Policy, error) {
	pp := cfg.Security.PasswordPolicy
	p := password.Policy{
		MinLength:     pp.MinLength,
		RequireUpper:  pp.RequireUpper,
		RequireLower:  pp.RequireLower,
		RequireDigit:  pp.RequireDigit,
		RequireSymbol: pp.RequireSymbol,
	}
	if path := strings.TrimSpace(cfg.Security.PasswordBlacklistPath); path != "" {
		bl, err := password.LoadBlacklist(path)
		if err != nil {
			return password.Policy{}, fmt.Errorf("app: password blacklist: %w", err)
		}
		p.Blacklist = bl
	}
	return p, nil
}

// NewEmailSender usa SMTP si hay host configurado; si no, loguea los envíos.
func NewEmailSender(cfg *config.Config) email.Sender {
	if strings.TrimSpace(cfg.SMTP.Host) == "" {
		return email.LogSender{}
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		Username:           cfg.SMTP.Username,
		Password:           cfg.SMTP.Password,
		FromEmail:          cfg.SMTP.From,
		TLSMode:            cfg.SMTP.TLS,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
	})
}

// NewProvider devuelve nil (sin error) cuando no hay proveedor configurado.
func NewProvider(cfg *config.Config) (oauthx.Provider, error) {
	pc := cfg.OAuth.Provider
	if strings.TrimSpace(pc.Name) == "" {
		return nil, nil
	}
	p, err := oauthx.New(oauthx.Config{
		Name:         pc.Name,
		ClientID:     pc.ClientID,
		ClientSecret: pc.ClientSecret,
		RedirectURL:  pc.RedirectURL,
		Scopes:       pc.Scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("app: oauth provider: %w", err)
	}
	return p, nil
}
