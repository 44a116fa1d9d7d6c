package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG lee identidades de la tabla de usuarios del servicio dueño.
// Sólo escribe password_hash y email_verified.
type PG struct {
	pool *pgxpool.Pool
}

func NewPG(ctx context.Context, dsn string) (*PG, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("identity: pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("identity: pg ping: %w", err)
	}
	return &PG{pool: pool}, nil
}

func NewPGWithPool(pool *pgxpool.Pool) *PG { return &PG{pool: pool} }

func (p *PG) Close() { p.pool.Close() }

const selectUser = `
	SELECT u.id, u.email, COALESCE(u.role, 'user'), u.email_verified,
	       COALESCE(u.password_hash, ''), u.disabled_at IS NOT NULL
	FROM users u
`

func (p *PG) scanOne(ctx context.Context, query string, arg any) (*Record, error) {
	var r Record
	err := p.pool.QueryRow(ctx, query, arg).Scan(
		&r.ID, &r.Email, &r.Role, &r.EmailVerified, &r.PasswordHash, &r.Disabled,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *PG) FindByEmail(ctx context.Context, email string) (*Record, error) {
	return p.scanOne(ctx, selectUser+`WHERE lower(u.email) = $1`, NormalizeEmail(email))
}

func (p *PG) FindByID(ctx context.Context, id string) (*Record, error) {
	return p.scanOne(ctx, selectUser+`WHERE u.id = $1`, id)
}

func (p *PG) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	tag, err := p.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PG) MarkEmailVerified(ctx context.Context, id string) error {
	const query = `UPDATE users SET email_verified = true, updated_at = NOW() WHERE id = $1`
	tag, err := p.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
