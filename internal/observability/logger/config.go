package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultService = "credengine"

// Config configura el logger del engine.
type Config struct {
	// Env: "dev" (consola con colores), "prod" (JSON) o "test" (no-op).
	Env string
	// Level: debug | info | warn | error. Default info.
	Level       string
	ServiceName string
	Version     string
	// OutputPaths reemplaza stderr (ej: un archivo para el CLI).
	OutputPaths []string
}

func isProd(env string) bool { return env == "prod" || env == "production" }

// build arma el logger. Dev y prod comparten caller corto y campos base;
// sólo cambian encoder, formato de tiempo y stacktraces.
func build(cfg Config) *zap.Logger {
	env := strings.ToLower(strings.TrimSpace(cfg.Env))
	if env == "test" || env == "nop" {
		return zap.NewNop()
	}

	var zcfg zap.Config
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if isProd(env) {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	zcfg.InitialFields = baseFields(cfg, env)
	if len(cfg.OutputPaths) > 0 {
		zcfg.OutputPaths = cfg.OutputPaths
	}

	l, err := zcfg.Build(opts...)
	if err != nil {
		l, _ = zap.NewProduction()
	}
	return l
}

func baseFields(cfg Config, env string) map[string]any {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = defaultService
	}
	f := map[string]any{"service": name}
	if env != "" {
		f["env"] = env
	}
	if cfg.Version != "" {
		f["version"] = cfg.Version
	}
	return f
}

func parseLevel(lvl string) zapcore.Level {
	lvl = strings.ToLower(strings.TrimSpace(lvl))
	if lvl == "warning" {
		lvl = "warn"
	}
	l, err := zapcore.ParseLevel(lvl)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}
