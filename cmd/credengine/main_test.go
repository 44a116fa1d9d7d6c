package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/dropDatabas3/credengine/internal/jwt"
	"github.com/dropDatabas3/credengine/internal/security/password"
	migrations "github.com/dropDatabas3/credengine/migrations/postgres"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Addr == "" || cfg.Cache.Driver != "memory" {
		t.Fatalf("defaults not applied: %+v", cfg.Server)
	}
}

func TestLoadConfigInvalidFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(p, []byte("jwt:\n  access_ttl: nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(p); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestKeygenPrintsSeed(t *testing.T) {
	cmd := keygenCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("keygen: %v", err)
	}
	seed := strings.TrimSpace(out.String())
	ks, err := jwt.KeySetFromSeed(seed, "")
	if err != nil {
		t.Fatalf("seed not usable: %v", err)
	}
	if !strings.Contains(errOut.String(), ks.KID) {
		t.Fatalf("kid not reported: %q", errOut.String())
	}
}

func TestHashPasswordFromStdin(t *testing.T) {
	cmd := hashPasswordCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("Correct-horse-1\n"))
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	phc := strings.TrimSpace(out.String())
	if !password.Verify("Correct-horse-1", phc) {
		t.Fatalf("hash does not verify: %q", phc)
	}
}

func TestPlanMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_roles_up.sql":   {Data: []byte("select 2")},
		"m/0001_users_up.sql":   {Data: []byte("select 1")},
		"m/0001_users_down.sql": {Data: []byte("select -1")},
		"m/0002_roles_down.sql": {Data: []byte("select -2")},
		"m/README.md":           {Data: []byte("x")},
	}
	up, err := planMigrations(fsys, "m", "up", 0)
	if err != nil || len(up) != 2 || up[0] != "m/0001_users_up.sql" {
		t.Fatalf("up: %v %v", up, err)
	}
	down, err := planMigrations(fsys, "m", "down", 1)
	if err != nil || len(down) != 1 || down[0] != "m/0002_roles_down.sql" {
		t.Fatalf("down: %v %v", down, err)
	}
	if _, err := planMigrations(fsys, "m", "sideways", 0); err == nil {
		t.Fatal("expected unknown action error")
	}
}

func TestEmbeddedIdentityMigrations(t *testing.T) {
	up, err := planMigrations(migrations.IdentityFS, migrations.IdentityDir, "up", 0)
	if err != nil || len(up) == 0 {
		t.Fatalf("embedded migrations: %v %v", up, err)
	}
}
