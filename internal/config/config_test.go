package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("app:\n  app_env: dev\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if Dur(c.JWT.AccessTTL) != 15*time.Minute || Dur(c.JWT.RefreshTTL) != 7*24*time.Hour {
		t.Fatalf("jwt defaults: %s / %s", c.JWT.AccessTTL, c.JWT.RefreshTTL)
	}
	if c.OTP.MaxAttempts != 5 || c.OTP.Digits != 6 || Dur(c.OTP.TTL) != 15*time.Minute {
		t.Fatalf("otp defaults: %+v", c.OTP)
	}
	if !*c.OAuth.StrictIP {
		t.Fatal("strict ip must default to true")
	}
	if c.Rate.Actions["login"].Strategy != "fixed" || c.Rate.UnlimitedRoles[0] != "admin" {
		t.Fatalf("rate defaults: %+v", c.Rate)
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	if _, err := Parse([]byte("jwt:\n  access_ttl: banana\n")); err == nil {
		t.Fatal("expected duration error")
	}
	if _, err := Parse([]byte("jwt:\n  access_ttl: 48h\n  refresh_ttl: 1h\n")); err == nil {
		t.Fatal("access longer than refresh must fail")
	}
}

func TestProdRequiresSeed(t *testing.T) {
	if _, err := Parse([]byte("app:\n  app_env: prod\n")); err == nil {
		t.Fatal("prod without signing seed must fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CREDENGINE_OAUTH_STRICT_IP", "false")
	t.Setenv("JWT_ACCESS_TTL", "5m")

	c, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Cache.Driver != "redis" || c.Cache.Redis.Addr != "redis:6379" {
		t.Fatalf("redis override: %+v", c.Cache)
	}
	if *c.OAuth.StrictIP {
		t.Fatal("strict ip override ignored")
	}
	if Dur(c.JWT.AccessTTL) != 5*time.Minute {
		t.Fatalf("access ttl override: %s", c.JWT.AccessTTL)
	}
}

func TestLoadResolvesBlacklistPath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	yml := "rate:\n  actions:\n    otp_send:\n      strategy: sliding\n      limit: 3\n      window: 1h\nsecurity:\n  password_blacklist_path: common.txt\n"
	if err := os.WriteFile(p, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Security.PasswordBlacklistPath != filepath.Join(dir, "common.txt") {
		t.Fatalf("blacklist path: %s", c.Security.PasswordBlacklistPath)
	}
	if c.Rate.Actions["otp_send"].Strategy != "sliding" || c.Rate.Actions["otp_send"].Limit != 3 {
		t.Fatalf("custom actions: %+v", c.Rate.Actions)
	}
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	if err != nil {
		t.Fatalf("example config: %v", err)
	}
	if cfg.Cache.Driver != "redis" || cfg.Rate.Actions["forgot"].Strategy != "sliding" {
		t.Fatalf("unexpected example values: driver=%s forgot=%+v", cfg.Cache.Driver, cfg.Rate.Actions["forgot"])
	}
	if cfg.Rate.Actions["api"].Roles["premium"].Limit != 600 {
		t.Fatalf("premium tier not parsed: %+v", cfg.Rate.Actions["api"])
	}
}

func TestOAuthRedirectSettings(t *testing.T) {
	c, err := Parse([]byte("oauth:\n  frontend_url: https://app.example.com\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.OAuth.ErrorPath != "/login" {
		t.Fatalf("error_path default: %q", c.OAuth.ErrorPath)
	}
	if _, err := Parse([]byte("oauth:\n  frontend_url: app.example.com\n")); err == nil {
		t.Fatal("relative frontend_url must fail")
	}
	if _, err := Parse([]byte("oauth:\n  error_path: login\n")); err == nil {
		t.Fatal("error_path without leading slash must fail")
	}
}
