package db

import (
	"context"
	"errors"

	"github.com/hrstack/authhub/internal/config"
	"github.com/hrstack/authhub/internal/domain/account"
	"github.com/hrstack/authhub/internal/security"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureHRAccount seeds the configured HR account at startup. Public
// registration refuses the HR role outright, so this is the only path that
// creates one. The seeded account is pre-verified; there is no inbox to
// prove ownership of during provisioning.
func EnsureHRAccount(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.HREmail == "" || cfg.HRPassword == "" {
		return nil
	}

	email := account.NormalizeEmail(cfg.HREmail)

	// check if the account exists

	var dummy int64

	err := pool.QueryRow(ctx, `SELECT id FROM accounts WHERE email = $1`, email).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.HRPassword)

	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO accounts (full_name, email, password_hash, role,
		                       is_verified, is_enabled, is_locked,
		                       created_at, updated_at)
		VALUES ($1,$2,$3,$4, TRUE, TRUE, FALSE, NOW(), NOW())
		ON CONFLICT (email) DO NOTHING
		`,
		cfg.HRName, email, hash, string(account.RoleHR),
	)

	return err
}
