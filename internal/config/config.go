package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RatePolicy es un límite por ventana. Limit 0 = sin límite.
type RatePolicy struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

// RateTier es la política de una acción, con overrides por rol.
type RateTier struct {
	RatePolicy `yaml:",inline"`
	Strategy   string                `yaml:"strategy"` // fixed | sliding
	Roles      map[string]RatePolicy `yaml:"roles"`
}

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env     string `yaml:"app_env"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ShutdownTimeout    string   `yaml:"shutdown_timeout"`
		RequestTimeout     string   `yaml:"request_timeout"`
	} `yaml:"server"`

	Cache struct {
		Driver string `yaml:"driver"` // memory | redis
		Redis  struct {
			Addr      string `yaml:"addr"`
			Password  string `yaml:"password"`
			DB        int    `yaml:"db"`
			Prefix    string `yaml:"prefix"`
			OpTimeout string `yaml:"op_timeout"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
		// base64(32 bytes). Vacío => clave efímera (sólo dev).
		SigningSeed   string   `yaml:"signing_seed"`
		RetiringSeeds []string `yaml:"retiring_seeds"`
	} `yaml:"jwt"`

	OTP struct {
		Digits      int        `yaml:"digits"`
		TTL         string     `yaml:"ttl"`
		MaxAttempts int        `yaml:"max_attempts"`
		Resend      RatePolicy `yaml:"resend"`
	} `yaml:"otp"`

	Rate struct {
		Enabled        *bool               `yaml:"enabled"`
		UnlimitedRoles []string            `yaml:"unlimited_roles"`
		Actions        map[string]RateTier `yaml:"actions"`
	} `yaml:"rate"`

	Login struct {
		MaxFailures   int    `yaml:"max_failures"`
		LockoutWindow string `yaml:"lockout_window"`
		Retention     string `yaml:"retention"`
	} `yaml:"login"`

	Reset struct {
		TTL         string `yaml:"ttl"`
		LinkBaseURL string `yaml:"link_base_url"`
	} `yaml:"reset"`

	Verification struct {
		TTL string `yaml:"ttl"`
	} `yaml:"verification"`

	OAuth struct {
		StateTTL string `yaml:"state_ttl"`
		StrictIP *bool  `yaml:"strict_ip"`
		// destino de los redirects del callback. Vacío = paths relativos al host.
		FrontendURL string `yaml:"frontend_url"`
		ErrorPath   string `yaml:"error_path"`
		Provider struct {
			Name         string   `yaml:"name"` // google | github | "" (deshabilitado)
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			RedirectURL  string   `yaml:"redirect_url"`
			Scopes       []string `yaml:"scopes"`
		} `yaml:"provider"`
	} `yaml:"oauth"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Identity struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		CacheTTL string `yaml:"cache_ttl"`
		// Admin inicial para el driver memory (dev). Vacío = sin bootstrap.
		BootstrapAdmin struct {
			Email    string `yaml:"email"`
			Password string `yaml:"password"`
		} `yaml:"bootstrap_admin"`
	} `yaml:"identity"`

	Security struct {
		PasswordPolicy struct {
			MinLength     int  `yaml:"min_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
		PasswordBlacklistPath string `yaml:"password_blacklist_path"`
	} `yaml:"security"`

	Audit struct {
		Sink    string   `yaml:"sink"` // log | kafka
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"audit"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML, aplica defaults y overrides por env, y valida.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	// Normalizar ruta de blacklist (si relativa) respecto al directorio del YAML
	if p := strings.TrimSpace(c.Security.PasswordBlacklistPath); p != "" && !filepath.IsAbs(p) {
		c.Security.PasswordBlacklistPath = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}
	return c, nil
}

// Parse es Load sin archivo (tests, config embebida).
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default devuelve la config por defecto (dev, todo en memoria).
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	setStr := func(p *string, v string) {
		if strings.TrimSpace(*p) == "" {
			*p = v
		}
	}
	setInt := func(p *int, v int) {
		if *p == 0 {
			*p = v
		}
	}

	setStr(&c.App.Env, "dev")
	setStr(&c.Server.Addr, ":8080")
	setStr(&c.Server.ShutdownTimeout, "15s")
	setStr(&c.Server.RequestTimeout, "10s")

	setStr(&c.Cache.Driver, "memory")
	setStr(&c.Cache.Redis.Prefix, "credengine")
	setStr(&c.Cache.Redis.OpTimeout, "250ms")

	setStr(&c.JWT.Issuer, "credengine")
	setStr(&c.JWT.AccessTTL, "15m")
	setStr(&c.JWT.RefreshTTL, "168h") // 7d

	setInt(&c.OTP.Digits, 6)
	setStr(&c.OTP.TTL, "15m")
	setInt(&c.OTP.MaxAttempts, 5)
	setInt(&c.OTP.Resend.Limit, 3)
	setStr(&c.OTP.Resend.Window, "1h")

	if c.Rate.UnlimitedRoles == nil {
		c.Rate.UnlimitedRoles = []string{"admin"}
	}
	if c.Rate.Enabled == nil {
		enabled := true
		c.Rate.Enabled = &enabled
	}
	if c.Rate.Actions == nil {
		c.Rate.Actions = map[string]RateTier{
			"login":   {RatePolicy: RatePolicy{Limit: 10, Window: "1m"}},
			"refresh": {RatePolicy: RatePolicy{Limit: 30, Window: "1m"}},
			"forgot":  {RatePolicy: RatePolicy{Limit: 5, Window: "10m"}},
			"api": {
				RatePolicy: RatePolicy{Limit: 60, Window: "1m"},
				Roles:      map[string]RatePolicy{"premium": {Limit: 600, Window: "1m"}},
			},
		}
	}
	for name, t := range c.Rate.Actions {
		if t.Strategy == "" {
			t.Strategy = "fixed"
		}
		if t.Window == "" {
			t.Window = "1m"
		}
		c.Rate.Actions[name] = t
	}

	setInt(&c.Login.MaxFailures, 5)
	setStr(&c.Login.LockoutWindow, "1h")
	setStr(&c.Login.Retention, "24h")

	setStr(&c.Reset.TTL, "1h")
	setStr(&c.Verification.TTL, "10m")

	setStr(&c.OAuth.StateTTL, "10m")
	setStr(&c.OAuth.ErrorPath, "/login")
	if c.OAuth.StrictIP == nil {
		strict := true
		c.OAuth.StrictIP = &strict
	}

	setStr(&c.SMTP.TLS, "auto")
	setInt(&c.SMTP.Port, 587)

	setStr(&c.Identity.Driver, "memory")
	setStr(&c.Identity.CacheTTL, "30s")

	setInt(&c.Security.PasswordPolicy.MinLength, 10)

	setStr(&c.Audit.Sink, "log")
	setStr(&c.Audit.Topic, "credengine.audit")

	setStr(&c.Log.Level, "info")
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("CREDENGINE_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("CREDENGINE_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	// CACHE
	if v, ok := getEnvStr("CREDENGINE_CACHE_DRIVER"); ok {
		c.Cache.Driver = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
		// REDIS_ADDR sin driver explícito implica redis
		if _, explicit := getEnvStr("CREDENGINE_CACHE_DRIVER"); !explicit {
			c.Cache.Driver = "redis"
		}
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}
	if v, ok := getEnvStr("JWT_SIGNING_SEED"); ok {
		c.JWT.SigningSeed = strings.TrimSpace(v)
	}

	// OTP
	if v, ok := getEnvInt("CREDENGINE_OTP_MAX_ATTEMPTS"); ok {
		c.OTP.MaxAttempts = v
	}
	if v, ok := getEnvStr("CREDENGINE_OTP_TTL"); ok {
		c.OTP.TTL = v
	}

	// RATE
	if v, ok := getEnvBool("CREDENGINE_RATE_ENABLED"); ok {
		c.Rate.Enabled = &v
	}
	if v, ok := getEnvCSV("CREDENGINE_RATE_UNLIMITED_ROLES"); ok {
		c.Rate.UnlimitedRoles = v
	}

	// OAUTH
	if v, ok := getEnvBool("CREDENGINE_OAUTH_STRICT_IP"); ok {
		c.OAuth.StrictIP = &v
	}
	if v, ok := getEnvStr("CREDENGINE_OAUTH_FRONTEND_URL"); ok {
		c.OAuth.FrontendURL = v
	}
	if v, ok := getEnvStr("OAUTH_CLIENT_ID"); ok {
		c.OAuth.Provider.ClientID = v
	}
	if v, ok := getEnvStr("OAUTH_CLIENT_SECRET"); ok {
		c.OAuth.Provider.ClientSecret = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v) // auto|starttls|ssl|none
	}

	// IDENTITY
	if v, ok := getEnvStr("CREDENGINE_IDENTITY_DSN"); ok {
		c.Identity.DSN = v
		if _, explicit := getEnvStr("CREDENGINE_IDENTITY_DRIVER"); !explicit {
			c.Identity.Driver = "postgres"
		}
	}
	if v, ok := getEnvStr("CREDENGINE_IDENTITY_DRIVER"); ok {
		c.Identity.Driver = v
	}
	if v, ok := getEnvStr("CREDENGINE_BOOTSTRAP_ADMIN_EMAIL"); ok {
		c.Identity.BootstrapAdmin.Email = v
	}
	if v, ok := getEnvStr("CREDENGINE_BOOTSTRAP_ADMIN_PASSWORD"); ok {
		c.Identity.BootstrapAdmin.Password = v
	}

	// AUDIT
	if v, ok := getEnvStr("CREDENGINE_AUDIT_SINK"); ok {
		c.Audit.Sink = v
	}
	if v, ok := getEnvCSV("KAFKA_BROKERS"); ok {
		c.Audit.Brokers = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate chequea duraciones y combinaciones críticas.
func (c *Config) Validate() error {
	durs := map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"server.request_timeout":  c.Server.RequestTimeout,
		"cache.redis.op_timeout":  c.Cache.Redis.OpTimeout,
		"jwt.access_ttl":          c.JWT.AccessTTL,
		"jwt.refresh_ttl":         c.JWT.RefreshTTL,
		"otp.ttl":                 c.OTP.TTL,
		"otp.resend.window":       c.OTP.Resend.Window,
		"login.lockout_window":    c.Login.LockoutWindow,
		"login.retention":         c.Login.Retention,
		"reset.ttl":               c.Reset.TTL,
		"verification.ttl":        c.Verification.TTL,
		"oauth.state_ttl":         c.OAuth.StateTTL,
		"identity.cache_ttl":      c.Identity.CacheTTL,
	}
	for name, t := range c.Rate.Actions {
		durs["rate.actions."+name+".window"] = t.Window
		for role, p := range t.Roles {
			durs["rate.actions."+name+".roles."+role+".window"] = p.Window
		}
	}
	for field, v := range durs {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", field)
		}
	}

	if Dur(c.JWT.AccessTTL) > Dur(c.JWT.RefreshTTL) {
		return fmt.Errorf("config: jwt.access_ttl must not exceed jwt.refresh_ttl")
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache.driver %q", c.Cache.Driver)
	}
	if c.Cache.Driver == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("config: cache.redis.addr is required with the redis driver")
	}
	switch c.Identity.Driver {
	case "memory":
	case "postgres":
		if c.Identity.DSN == "" {
			return fmt.Errorf("config: identity.dsn is required with the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown identity.driver %q", c.Identity.Driver)
	}
	for name, t := range c.Rate.Actions {
		if t.Strategy != "fixed" && t.Strategy != "sliding" {
			return fmt.Errorf("config: rate.actions.%s.strategy must be fixed or sliding", name)
		}
	}
	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return fmt.Errorf("config: otp.digits must be between 4 and 10")
	}
	if fu := strings.TrimSpace(c.OAuth.FrontendURL); fu != "" {
		u, err := url.Parse(fu)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: oauth.frontend_url must be an absolute http(s) URL")
		}
	}
	if !strings.HasPrefix(c.OAuth.ErrorPath, "/") {
		return fmt.Errorf("config: oauth.error_path must start with /")
	}
	if c.Audit.Sink == "kafka" && len(c.Audit.Brokers) == 0 {
		return fmt.Errorf("config: audit.brokers is required with the kafka sink")
	}
	// Guardia dura: en prod NUNCA firmamos con una clave efímera.
	if c.IsProd() && c.JWT.SigningSeed == "" {
		return fmt.Errorf("config: jwt.signing_seed is required in prod")
	}
	return nil
}

func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod") || strings.EqualFold(c.App.Env, "production")
}

// Dur parsea una duración ya validada (0 si está vacía).
func Dur(s string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(s))
	return d
}
