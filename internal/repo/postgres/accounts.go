package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/hrstack/authhub/internal/domain/account"
	"github.com/hrstack/authhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAccountsRepo(pool *pgxpool.Pool, prom *observability.Prom) *AccountsRepo {
	return &AccountsRepo{pool: pool, prom: prom}
}

func (r *AccountsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func (r *AccountsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, pgx.TxOptions{})
}

const accountColumns = `id, full_name, email, password_hash, role,
       otp_code, otp_issued_at,
       is_verified, is_enabled, is_locked,
       created_at, updated_at`

func scanAccount(row pgx.Row) (account.Account, error) {
	var a account.Account
	var role string

	err := row.Scan(
		&a.ID,
		&a.FullName,
		&a.Email,
		&a.PasswordHash,
		&role,
		&a.OTPCode,
		&a.OTPIssuedAt,
		&a.Verified,
		&a.Enabled,
		&a.Locked,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	if err != nil {
		return account.Account{}, err
	}

	a.Role = account.Role(role)
	return a, nil
}

// CreateTx inserts a new account inside the caller's transaction. There is no
// pre-check for the email: the unique index on email is the arbiter, so with
// N concurrent identical registrations exactly one insert wins and the rest
// surface account.ErrDuplicateEmail.
func (r *AccountsRepo) CreateTx(ctx context.Context, tx pgx.Tx, a account.Account) (account.Account, error) {
	op := "accounts.create_tx"

	err := r.observe(op, func() error {
		return tx.QueryRow(ctx, `
		INSERT INTO accounts (full_name, email, password_hash, role,
		                      otp_code, otp_issued_at,
		                      is_verified, is_enabled, is_locked,
		                      created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, a.FullName, a.Email, a.PasswordHash, string(a.Role),
			a.OTPCode, a.OTPIssuedAt,
			a.Verified, a.Enabled, a.Locked,
			a.CreatedAt, a.UpdatedAt,
		).Scan(&a.ID)
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return account.Account{}, account.ErrDuplicateEmail
		}
		return account.Account{}, err
	}

	return a, nil
}

// Create is the single-statement variant for callers that do not need to
// couple the insert with other writes.
func (r *AccountsRepo) Create(ctx context.Context, a account.Account) (created account.Account, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	created, err = r.CreateTx(ctx, tx, a)

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	if err != nil {
		created = account.Account{}
	}

	return
}

func (r *AccountsRepo) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	var a account.Account
	var err error

	op := "accounts.get_by_email"

	err = r.observe(op, func() error {
		var scanErr error
		a, scanErr = scanAccount(r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = $1
	`, account.NormalizeEmail(email)))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, err
	}

	return a, nil
}

// UpdateOTP writes a fresh pending code. Code and timestamp move in one
// statement so the pair can never drift apart.
func (r *AccountsRepo) UpdateOTP(ctx context.Context, id int64, code string, issuedAt time.Time) error {
	var tag pgconn.CommandTag
	var err error

	op := "accounts.update_otp"

	err = r.observe(op, func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE accounts
		SET otp_code = $2,
		    otp_issued_at = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, code, issuedAt)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}

// MarkVerified flips the verified flag and consumes the pending code. The
// WHERE clause keeps the flip one-way.
func (r *AccountsRepo) MarkVerified(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag
	var err error

	op := "accounts.mark_verified"

	err = r.observe(op, func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE accounts
		SET is_verified = TRUE,
		    otp_code = NULL,
		    otp_issued_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND is_verified = FALSE
	`, id)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrAlreadyVerified
	}
	return nil
}

// UpdatePassword replaces the hash after a completed reset and consumes the
// OTP that authorized it.
func (r *AccountsRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	var tag pgconn.CommandTag
	var err error

	op := "accounts.update_password"

	err = r.observe(op, func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $2,
		    otp_code = NULL,
		    otp_issued_at = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id, hash)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}
