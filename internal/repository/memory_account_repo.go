package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"go-account-service/internal/model"
)

// MemoryAccountRepository keeps accounts in process memory. It mirrors the
// unique indexes and conditional updates of the Postgres schema and is used
// when no DATABASE_URL is configured.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: map[string]model.Account{}}
}

func (r *MemoryAccountRepository) Create(_ context.Context, a model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return oops.Code("CONFLICT").With("constraint", "accounts_email_lower_idx").Wrap(model.ErrConflict)
		}
		if strings.EqualFold(existing.Username, a.Username) {
			return oops.Code("CONFLICT").With("constraint", "accounts_username_lower_idx").Wrap(model.ErrConflict)
		}
	}
	if _, exists := r.accounts[a.ID]; exists {
		return oops.Code("CONFLICT").With("constraint", "accounts_pkey").Wrap(model.ErrConflict)
	}

	r.accounts[a.ID] = a
	return nil
}

func (r *MemoryAccountRepository) FindByID(_ context.Context, id string) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return model.Account{}, oops.Code("NOT_FOUND").With("account_id", id).Wrap(model.ErrNotFound)
	}
	return a, nil
}

func (r *MemoryAccountRepository) FindByEmail(_ context.Context, email string) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return model.Account{}, oops.Code("NOT_FOUND").Wrap(model.ErrNotFound)
}

func (r *MemoryAccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	return err == nil, nil
}

func (r *MemoryAccountRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if strings.EqualFold(a.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryAccountRepository) MarkVerified(_ context.Context, id string, token string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok || a.IsVerified || a.VerificationToken == nil || *a.VerificationToken != token {
		return oops.Code("TOKEN_CONSUMED").With("account_id", id).Wrap(model.ErrTokenNotFound)
	}

	a.IsVerified = true
	a.VerificationToken = nil
	a.UpdatedAt = at
	r.accounts[id] = a
	return nil
}

func (r *MemoryAccountRepository) SetResetToken(_ context.Context, id string, token string, expiry time.Time, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return oops.Code("NOT_FOUND").With("account_id", id).Wrap(model.ErrNotFound)
	}

	a.ResetPasswordToken = &token
	a.ResetPasswordExpiry = &expiry
	a.UpdatedAt = at
	r.accounts[id] = a
	return nil
}

func (r *MemoryAccountRepository) FindByResetToken(_ context.Context, token string, now time.Time) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if matchesReset(a, token, now) {
			return a, nil
		}
	}
	return model.Account{}, oops.Code("TOKEN_NOT_FOUND").Wrap(model.ErrTokenNotFound)
}

func (r *MemoryAccountRepository) CompleteReset(_ context.Context, id string, token string, passwordHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok || !matchesReset(a, token, now) {
		return oops.Code("TOKEN_CONSUMED").With("account_id", id).Wrap(model.ErrTokenNotFound)
	}

	a.PasswordHash = passwordHash
	a.ResetPasswordToken = nil
	a.ResetPasswordExpiry = nil
	a.UpdatedAt = now
	r.accounts[id] = a
	return nil
}

func (r *MemoryAccountRepository) ClearExpiredResets(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared int64
	for id, a := range r.accounts {
		if a.ResetPasswordExpiry == nil || a.ResetPasswordExpiry.After(now) {
			continue
		}
		a.ResetPasswordToken = nil
		a.ResetPasswordExpiry = nil
		a.UpdatedAt = now
		r.accounts[id] = a
		cleared++
	}
	return cleared, nil
}

func matchesReset(a model.Account, token string, now time.Time) bool {
	return a.ResetPasswordToken != nil && *a.ResetPasswordToken == token &&
		a.ResetPasswordExpiry != nil && a.ResetPasswordExpiry.After(now)
}
