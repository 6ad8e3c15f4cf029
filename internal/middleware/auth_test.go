package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-account-service/internal/model"
	"go-account-service/internal/token"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newGate(t *testing.T) (*AuthMiddleware, *token.Manager, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	manager, err := token.NewManager(token.Config{Secret: "gate-secret-gate-secret-gate", Now: clock.Now})
	require.NoError(t, err)
	return NewAuthMiddleware(manager), manager, clock
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *model.APIError {
	t.Helper()

	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.NotNil(t, body.Error)
	return body.Error
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	gate, manager, clock := newGate(t)

	var seen *model.SessionClaims
	protected := gate.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/own", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing carrier", func(t *testing.T) {
		for _, header := range []string{"", "Bearer", "Bearer    ", "Basic abc"} {
			rec := serve(header)
			require.Equal(t, http.StatusUnauthorized, rec.Code, header)
			require.Equal(t, "MISSING_TOKEN", decodeError(t, rec).Code, header)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := serve("Bearer not-a-token")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "INVALID_TOKEN", decodeError(t, rec).Code)
	})

	t.Run("verification token is not a session", func(t *testing.T) {
		signed, _, err := manager.IssueVerification("ann@x.com")
		require.NoError(t, err)

		rec := serve("Bearer " + signed)
		require.Equal(t, "INVALID_TOKEN", decodeError(t, rec).Code)
	})

	t.Run("valid session injects identity", func(t *testing.T) {
		signed, _, err := manager.IssueSession("acc-1", "ann1")
		require.NoError(t, err)

		rec := serve("bearer " + signed)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		require.Equal(t, "acc-1", seen.AccountID)
		require.Equal(t, "ann1", seen.Username)
	})

	t.Run("expired session is rejected with the generic message", func(t *testing.T) {
		signed, _, err := manager.IssueSession("acc-1", "ann1")
		require.NoError(t, err)
		clock.now = clock.now.Add(25 * time.Hour)

		rec := serve("Bearer " + signed)
		apiErr := decodeError(t, rec)
		require.Equal(t, "INVALID_TOKEN", apiErr.Code)
		require.Equal(t, "Invalid or expired token", apiErr.Message)
		require.Empty(t, apiErr.Details)
	})
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	handler := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
}
