package repository

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-account-service/internal/model"
)

func seedAccount(t *testing.T, repo *MemoryAccountRepository) model.Account {
	t.Helper()

	token := "verify-tok"
	account := model.Account{
		ID: "acc-1", FullName: "Ann", Username: "ann1", Email: "ann@x.com",
		PasswordHash: "hash", VerificationToken: &token,
		CreatedAt: repoTestTime, UpdatedAt: repoTestTime,
	}
	require.NoError(t, repo.Create(context.Background(), account))
	return account
}

func TestMemoryAccountRepository_Uniqueness(t *testing.T) {
	t.Parallel()

	repo := NewMemoryAccountRepository()
	seedAccount(t, repo)

	err := repo.Create(context.Background(), model.Account{ID: "acc-2", Username: "other", Email: "ANN@x.com"})
	require.ErrorIs(t, err, model.ErrConflict)

	err = repo.Create(context.Background(), model.Account{ID: "acc-3", Username: "ANN1", Email: "b@x.com"})
	require.ErrorIs(t, err, model.ErrConflict)

	exists, err := repo.ExistsByEmail(context.Background(), "Ann@X.com")
	require.NoError(t, err)
	require.True(t, exists)

	_, err = repo.FindByEmail(context.Background(), "nobody@x.com")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryAccountRepository_MarkVerifiedOnce(t *testing.T) {
	t.Parallel()

	repo := NewMemoryAccountRepository()
	seedAccount(t, repo)

	require.ErrorIs(t, repo.MarkVerified(context.Background(), "acc-1", "other", repoTestTime), model.ErrTokenNotFound)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for range 8 {
		wg.Go(func() {
			results <- repo.MarkVerified(context.Background(), "acc-1", "verify-tok", repoTestTime)
		})
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, model.ErrTokenNotFound)
	}
	require.Equal(t, 1, successes)

	account, err := repo.FindByID(context.Background(), "acc-1")
	require.NoError(t, err)
	require.True(t, account.IsVerified)
	require.Nil(t, account.VerificationToken)
}

func TestMemoryAccountRepository_ResetLifecycle(t *testing.T) {
	t.Parallel()

	repo := NewMemoryAccountRepository()
	seedAccount(t, repo)
	ctx := context.Background()
	expiry := repoTestTime.Add(time.Hour)

	require.NoError(t, repo.SetResetToken(ctx, "acc-1", "first", expiry, repoTestTime))
	require.NoError(t, repo.SetResetToken(ctx, "acc-1", "second", expiry, repoTestTime))

	_, err := repo.FindByResetToken(ctx, "first", repoTestTime)
	require.ErrorIs(t, err, model.ErrTokenNotFound)

	found, err := repo.FindByResetToken(ctx, "second", repoTestTime)
	require.NoError(t, err)
	require.Equal(t, "acc-1", found.ID)

	require.ErrorIs(t, repo.CompleteReset(ctx, "acc-1", "second", "new-hash", expiry), model.ErrTokenNotFound)

	require.NoError(t, repo.CompleteReset(ctx, "acc-1", "second", "new-hash", repoTestTime))
	account, err := repo.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, "new-hash", account.PasswordHash)
	require.Nil(t, account.ResetPasswordToken)
	require.Nil(t, account.ResetPasswordExpiry)

	require.ErrorIs(t, repo.CompleteReset(ctx, "acc-1", "second", "again", repoTestTime), model.ErrTokenNotFound)
}

func TestMemoryAccountRepository_ClearExpiredResets(t *testing.T) {
	t.Parallel()

	repo := NewMemoryAccountRepository()
	seedAccount(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.SetResetToken(ctx, "acc-1", "tok", repoTestTime.Add(time.Hour), repoTestTime))

	cleared, err := repo.ClearExpiredResets(ctx, repoTestTime.Add(30*time.Minute))
	require.NoError(t, err)
	require.Zero(t, cleared)

	cleared, err = repo.ClearExpiredResets(ctx, repoTestTime.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, cleared)

	account, err := repo.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	require.Nil(t, account.ResetPasswordToken)
	require.Nil(t, account.ResetPasswordExpiry)
}

func TestMemoryAuditRepository_Query(t *testing.T) {
	t.Parallel()

	repo := NewMemoryAuditRepository()
	ctx := context.Background()
	for i := range 5 {
		require.NoError(t, repo.Log(ctx, model.AuditEntry{
			Action: "account.login", AccountID: "acc-1", Status: "success",
			OccurredAt: repoTestTime.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Log(ctx, model.AuditEntry{Action: "account.login", AccountID: "acc-2", OccurredAt: repoTestTime}))

	entries, meta, err := repo.Query(ctx, model.AuditQuery{AccountID: "acc-1", Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 5, meta.Total)
	require.Equal(t, 3, meta.TotalPages)
	require.True(t, entries[0].OccurredAt.After(entries[1].OccurredAt))

	entries, _, err = repo.Query(ctx, model.AuditQuery{AccountID: "acc-1", Page: 4, Limit: 2})
	require.NoError(t, err)
	require.Empty(t, entries)

	t.Run("huge page is clamped and empty", func(t *testing.T) {
		entries, meta, err := repo.Query(ctx, model.AuditQuery{AccountID: "acc-1", Page: math.MaxInt64 / 100, Limit: 200})
		require.NoError(t, err)
		require.Empty(t, entries)
		require.Equal(t, maxAuditPage, meta.Page)
		require.Equal(t, 5, meta.Total)
	})
}
