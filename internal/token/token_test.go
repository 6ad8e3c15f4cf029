package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"go-account-service/internal/model"
)

const testSecret = "test-secret-test-secret-test-secret"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	manager, err := NewManager(Config{Secret: testSecret, Issuer: "accounts", Now: clock.Now})
	require.NoError(t, err)
	return manager, clock
}

func flipSignatureByte(t *testing.T, tokenString string) string {
	t.Helper()

	parts := strings.Split(tokenString, ".")
	require.Len(t, parts, 3)

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	signature[0] ^= 0xFF
	parts[2] = base64.RawURLEncoding.EncodeToString(signature)

	return strings.Join(parts, ".")
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	t.Run("session token carries account identity", func(t *testing.T) {
		signed, expiresAt, err := manager.IssueSession("acc-1", "ann1")
		require.NoError(t, err)
		require.Equal(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), expiresAt)

		claims, err := manager.Verify(signed, PurposeSession)
		require.NoError(t, err)
		require.Equal(t, "acc-1", claims.Subject)
		require.Equal(t, "ann1", claims.Username)
		require.Equal(t, "accounts", claims.Issuer)
		require.NotEmpty(t, claims.ID)

		session, err := manager.VerifySession(signed)
		require.NoError(t, err)
		require.Equal(t, "acc-1", session.AccountID)
		require.Equal(t, "ann1", session.Username)
	})

	t.Run("verification token carries email", func(t *testing.T) {
		signed, _, err := manager.IssueVerification("ann@x.com")
		require.NoError(t, err)

		claims, err := manager.Verify(signed, PurposeVerification)
		require.NoError(t, err)
		require.Equal(t, "ann@x.com", claims.Email)
	})

	t.Run("tokens are unique per issue", func(t *testing.T) {
		first, _, err := manager.IssueReset("ann@x.com")
		require.NoError(t, err)
		second, _, err := manager.IssueReset("ann@x.com")
		require.NoError(t, err)
		require.NotEqual(t, first, second)
	})
}

func TestVerifyExpiry(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		issue    func(m *Manager) (string, time.Time, error)
		purpose  Purpose
		lifetime time.Duration
	}{
		{"session", func(m *Manager) (string, time.Time, error) { return m.IssueSession("acc-1", "ann1") }, PurposeSession, 24 * time.Hour},
		{"verification", func(m *Manager) (string, time.Time, error) { return m.IssueVerification("ann@x.com") }, PurposeVerification, 15 * time.Minute},
		{"reset", func(m *Manager) (string, time.Time, error) { return m.IssueReset("ann@x.com") }, PurposeReset, time.Hour},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			manager, clock := newTestManager(t)
			signed, _, err := tc.issue(manager)
			require.NoError(t, err)

			clock.Advance(tc.lifetime - time.Second)
			_, err = manager.Verify(signed, tc.purpose)
			require.NoError(t, err)

			clock.Advance(2 * time.Second)
			_, err = manager.Verify(signed, tc.purpose)
			require.Error(t, err)
			require.Equal(t, Expired, KindOf(err))
			require.ErrorIs(t, err, model.ErrInvalidToken)
			require.ErrorIs(t, err, jwt.ErrTokenExpired)
		})
	}
}

func TestVerifyRejections(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	signed, _, err := manager.IssueVerification("ann@x.com")
	require.NoError(t, err)

	t.Run("tampered signature", func(t *testing.T) {
		_, err := manager.Verify(flipSignatureByte(t, signed), PurposeVerification)
		require.Equal(t, SignatureInvalid, KindOf(err))
		require.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("foreign secret", func(t *testing.T) {
		other, err := NewManager(Config{Secret: "another-secret-another-secret"})
		require.NoError(t, err)
		foreign, _, err := other.IssueVerification("ann@x.com")
		require.NoError(t, err)

		_, err = manager.Verify(foreign, PurposeVerification)
		require.Equal(t, SignatureInvalid, KindOf(err))
	})

	t.Run("unexpected algorithm", func(t *testing.T) {
		claims := Claims{
			Purpose: PurposeVerification,
			Email:   "ann@x.com",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
			},
		}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = manager.Verify(unsigned, PurposeVerification)
		require.Equal(t, SignatureInvalid, KindOf(err))
	})

	t.Run("malformed input", func(t *testing.T) {
		for _, raw := range []string{"", "   ", "not-a-token", "a.b.c"} {
			_, err := manager.Verify(raw, PurposeVerification)
			require.Equal(t, Malformed, KindOf(err), "input %q", raw)
		}
	})

	t.Run("wrong purpose", func(t *testing.T) {
		_, err := manager.Verify(signed, PurposeReset)
		require.Equal(t, Malformed, KindOf(err))

		_, err = manager.VerifySession(signed)
		require.ErrorIs(t, err, model.ErrInvalidToken)
	})
}

func TestNewManagerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewManager(Config{Secret: "  "})
	require.Error(t, err)

	_, err = NewManager(Config{Secret: testSecret, ResetTTL: -time.Minute})
	require.Error(t, err)

	manager, err := NewManager(Config{Secret: testSecret})
	require.NoError(t, err)
	require.Equal(t, DefaultSessionTTL, manager.SessionTTL())
	require.Equal(t, DefaultVerificationTTL, manager.VerificationTTL())
	require.Equal(t, DefaultResetTTL, manager.ResetTTL())
}
