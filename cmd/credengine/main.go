package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/credengine/internal/app"
	"github.com/dropDatabas3/credengine/internal/config"
	"github.com/dropDatabas3/credengine/internal/http/server"
	"github.com/dropDatabas3/credengine/internal/jwt"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"github.com/dropDatabas3/credengine/internal/security/password"
)

var version = "dev"

func main() {
	// .env es opcional: en contenedores todo viene del entorno
	_ = godotenv.Load()

	cfgPath := envOr("CREDENGINE_CONFIG", "config.yaml")

	root := &cobra.Command{
		Use:           "credengine",
		Short:         "Motor de credenciales: tokens, OTP, reset, OAuth y rate limiting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "Ruta del config YAML (env CREDENGINE_CONFIG)")

	root.AddCommand(
		serveCmd(&cfgPath),
		keygenCmd(),
		revokeCmd(&cfgPath),
		hashPasswordCmd(),
		migrateCmd(&cfgPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			initLogger(cfg)
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, app.Deps{})
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.L().Warn("shutdown cleanup", logger.Err(err))
				}
			}()

			srv := server.New(server.Config{
				Addr:            cfg.Server.Addr,
				ShutdownTimeout: config.Dur(cfg.Server.ShutdownTimeout),
				RequestTimeout:  config.Dur(cfg.Server.RequestTimeout),
			}, a.Handler)
			return srv.Run(ctx)
		},
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Genera un seed Ed25519 (base64) para jwt.signing_seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := jwt.NewSeed()
			if err != nil {
				return err
			}
			ks, err := jwt.KeySetFromSeed(seed, "")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), seed)
			fmt.Fprintf(cmd.ErrOrStderr(), "kid=%s\n", ks.KID)
			return nil
		},
	}
}

func revokeCmd(cfgPath *string) *cobra.Command {
	var (
		jti   string
		ttl   time.Duration
		token string
	)
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoca una credencial en el TTL store configurado",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jti == "" && token == "" {
				return errors.New("--jti o --token es requerido")
			}
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			initLogger(cfg)
			defer func() { _ = logger.Sync() }()

			store, err := app.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			codec, err := app.NewCodec(cfg)
			if err != nil {
				return err
			}
			reg := app.NewRevocation(store, codec)

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if token != "" {
				claims, err := codec.Verify(token)
				if err != nil {
					return fmt.Errorf("token inválido: %w", err)
				}
				jti = claims.JTI
				err = reg.RevokeClaims(ctx, claims)
				if err != nil {
					return err
				}
			} else {
				if ttl <= 0 {
					ttl = codec.MaxTTL()
				}
				if err := reg.Revoke(ctx, jti, ttl); err != nil {
					return err
				}
			}
			logger.S().Infow("credential revoked", "jti", jti)
			fmt.Fprintln(cmd.OutOrStdout(), "revoked", jti)
			return nil
		},
	}
	cmd.Flags().StringVar(&jti, "jti", "", "JTI a revocar")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Vida restante de la credencial (default: la vida máxima emitida)")
	cmd.Flags().StringVar(&token, "token", "", "Credencial completa; el jti y la vida restante salen de sus claims")
	return cmd
}

// hash-password lee la contraseña por stdin y escribe el PHC argon2id,
// para cargar usuarios en el identity store de postgres.
func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hashea una contraseña leída de stdin (argon2id PHC)",
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("leer stdin: %w", err)
			}
			plain := strings.TrimRight(line, "\r\n")
			phc, err := password.Hash(password.Default, plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), phc)
			return nil
		},
	}
}

// loadConfig lee el YAML si existe; si no, defaults + variables de entorno.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) {
	v := cfg.App.Version
	if v == "" {
		v = version
		cfg.App.Version = v
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "credengine",
		Version:     v,
	})
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
