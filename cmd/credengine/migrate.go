package main

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/credengine/internal/observability/logger"
	migrations "github.com/dropDatabas3/credengine/migrations/postgres"
)

// migrate aplica el schema de identidades embebido contra identity.dsn.
func migrateCmd(cfgPath *string) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Aplica el schema de la tabla users para el identity store postgres",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = strings.ToLower(args[0])
			}
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			initLogger(cfg)
			defer func() { _ = logger.Sync() }()
			if cfg.Identity.DSN == "" {
				return fmt.Errorf("identity.dsn es requerido (env CREDENGINE_IDENTITY_DSN)")
			}

			files, err := planMigrations(migrations.IdentityFS, migrations.IdentityDir, action, steps)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				logger.S().Infof("no %s migrations found, nothing to do", action)
				return nil
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Identity.DSN)
			if err != nil {
				return fmt.Errorf("pgxpool: %w", err)
			}
			defer pool.Close()

			logger.S().Infof("applying %d %s migration(s)", len(files), action)
			for _, f := range files {
				if err := execSQLFile(ctx, pool, migrations.IdentityFS, f); err != nil {
					return fmt.Errorf("exec %s: %w", f, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "Cantidad de migraciones a aplicar (0 = todas)")
	return cmd
}

// planMigrations lista los *_up.sql en orden ascendente o los *_down.sql en
// orden inverso, recortados a steps si es > 0.
func planMigrations(fsys fs.FS, dir, action string, steps int) ([]string, error) {
	var suffix string
	switch action {
	case "up":
		suffix = "_up.sql"
	case "down":
		suffix = "_down.sql"
	default:
		return nil, fmt.Errorf("unknown action %q. Use: up | down", action)
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	if action == "down" {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if steps > 0 && steps < len(out) {
		out = out[:steps]
	}
	return out, nil
}

func execSQLFile(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, name string) error {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	start := time.Now()
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	logger.S().Infof("OK %s (%s)", path.Base(name), time.Since(start).Truncate(time.Millisecond))
	return nil
}
