package logger

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"nope":    zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuildTestEnvIsNop(t *testing.T) {
	l := build(Config{Env: "test"})
	if l.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("test env must not log")
	}
}

func TestBuildProdHonorsLevel(t *testing.T) {
	out := filepath.Join(t.TempDir(), "log.json")
	l := build(Config{Env: "prod", Level: "warn", OutputPaths: []string{out}})
	if l.Core().Enabled(zapcore.InfoLevel) || !l.Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("prod logger must start at warn")
	}
}

func TestBaseFields(t *testing.T) {
	f := baseFields(Config{Version: "1.0.0"}, "dev")
	if f["service"] != defaultService || f["env"] != "dev" || f["version"] != "1.0.0" {
		t.Fatalf("unexpected base fields: %v", f)
	}
	if _, ok := baseFields(Config{ServiceName: "x"}, "")["env"]; ok {
		t.Fatal("empty env must be omitted")
	}
}
