// Package bootstrap siembra identidades iniciales cuando el engine corre con
// el identity store en memoria (dev, demos, tests end-to-end).
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/credengine/internal/identity"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
	"github.com/dropDatabas3/credengine/internal/security/password"
)

// AdminBootstrapConfig holds configuration for admin bootstrap
type AdminBootstrapConfig struct {
	Store         *identity.Memory
	AdminEmail    string
	AdminPassword string
	Policy        password.Policy
	Params        password.Params
}

// CheckAndCreateAdmin crea el admin si todavía no existe.
// Sin email ni password no hace nada: el store arranca vacío.
func CheckAndCreateAdmin(ctx context.Context, cfg AdminBootstrapConfig) (*identity.Record, error) {
	log := logger.From(ctx).With(logger.Component("bootstrap"), logger.Op("CheckAndCreateAdmin"))

	email := identity.NormalizeEmail(cfg.AdminEmail)
	if email == "" && cfg.AdminPassword == "" {
		return nil, nil
	}
	if email == "" || cfg.AdminPassword == "" {
		return nil, fmt.Errorf("bootstrap: admin email and password are both required")
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("bootstrap: invalid admin email %q", cfg.AdminEmail)
	}

	if existing, err := cfg.Store.FindByEmail(ctx, email); err == nil {
		log.Info("admin already present, skipping bootstrap", logger.UserID(existing.ID))
		return existing, nil
	}

	if err := cfg.Policy.Check(cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("bootstrap: admin password rejected: %w", err)
	}
	params := cfg.Params
	if params.KeyLen == 0 {
		params = password.Default
	}
	hash, err := password.Hash(params, cfg.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: hash admin password: %w", err)
	}

	rec := identity.Record{
		ID:            uuid.NewString(),
		Email:         email,
		Role:          "admin",
		EmailVerified: true,
		PasswordHash:  hash,
	}
	cfg.Store.Put(rec)
	log.Info("admin created", logger.UserID(rec.ID), logger.Email(email))
	return &rec, nil
}
