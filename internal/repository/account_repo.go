package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"go-account-service/internal/model"
)

// DBTX is the subset of pgxpool.Pool used by the repositories. pgxmock pools
// satisfy it as well.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, full_name, username, email, profile_picture, password_hash, is_verified,
	verification_token, reset_password_token, reset_password_expiry, created_at, updated_at`

type AccountRepository struct {
	pool DBTX
}

func NewAccountRepository(pool DBTX) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) Create(ctx context.Context, a model.Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.FullName, a.Username, a.Email, a.ProfilePicture, a.PasswordHash, a.IsVerified,
		a.VerificationToken, a.ResetPasswordToken, a.ResetPasswordExpiry, a.CreatedAt, a.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.Code("CONFLICT").
			With("constraint", pgErr.ConstraintName).
			Wrap(model.ErrConflict)
	}
	if err != nil {
		return oops.With("operation", "create account").Wrap(err)
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (model.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row, "find account by id")
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
	return scanAccount(row, "find account by email")
}

func (r *AccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE lower(email) = lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, oops.With("operation", "check email exists").Wrap(err)
	}
	return exists, nil
}

func (r *AccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE lower(username) = lower($1))`, username).Scan(&exists)
	if err != nil {
		return false, oops.With("operation", "check username exists").Wrap(err)
	}
	return exists, nil
}

// MarkVerified consumes the verification token. It only succeeds while the
// stored token still equals token, so a second use reports ErrTokenNotFound.
func (r *AccountRepository) MarkVerified(ctx context.Context, id string, token string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET is_verified = TRUE, verification_token = NULL, updated_at = $3
		 WHERE id = $1 AND verification_token = $2 AND is_verified = FALSE`,
		id, token, at)
	if err != nil {
		return oops.With("operation", "mark account verified").With("account_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("TOKEN_CONSUMED").With("account_id", id).Wrap(model.ErrTokenNotFound)
	}
	return nil
}

// SetResetToken overwrites any previous reset token; token and expiry are
// always written together.
func (r *AccountRepository) SetResetToken(ctx context.Context, id string, token string, expiry time.Time, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET reset_password_token = $2, reset_password_expiry = $3, updated_at = $4
		 WHERE id = $1`,
		id, token, expiry, at)
	if err != nil {
		return oops.With("operation", "set reset token").With("account_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("NOT_FOUND").With("account_id", id).Wrap(model.ErrNotFound)
	}
	return nil
}

func (r *AccountRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE reset_password_token = $1 AND reset_password_expiry > $2`, token, now)

	account, err := scanAccount(row, "find account by reset token")
	if errors.Is(err, model.ErrNotFound) {
		return model.Account{}, oops.Code("TOKEN_NOT_FOUND").Wrap(model.ErrTokenNotFound)
	}
	return account, err
}

// CompleteReset replaces the password hash and clears both reset fields in a
// single statement guarded by the token and its stored expiry.
func (r *AccountRepository) CompleteReset(ctx context.Context, id string, token string, passwordHash string, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts
		 SET password_hash = $3, reset_password_token = NULL, reset_password_expiry = NULL, updated_at = $4
		 WHERE id = $1 AND reset_password_token = $2 AND reset_password_expiry > $4`,
		id, token, passwordHash, now)
	if err != nil {
		return oops.With("operation", "complete password reset").With("account_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("TOKEN_CONSUMED").With("account_id", id).Wrap(model.ErrTokenNotFound)
	}
	return nil
}

func (r *AccountRepository) ClearExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET reset_password_token = NULL, reset_password_expiry = NULL, updated_at = $1
		 WHERE reset_password_expiry IS NOT NULL AND reset_password_expiry <= $1`, now)
	if err != nil {
		return 0, oops.With("operation", "clear expired resets").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func scanAccount(row pgx.Row, operation string) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.FullName, &a.Username, &a.Email, &a.ProfilePicture, &a.PasswordHash,
		&a.IsVerified, &a.VerificationToken, &a.ResetPasswordToken, &a.ResetPasswordExpiry,
		&a.CreatedAt, &a.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, oops.Code("NOT_FOUND").With("operation", operation).Wrap(model.ErrNotFound)
	}
	if err != nil {
		return model.Account{}, oops.With("operation", operation).Wrap(err)
	}
	return a, nil
}
