package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"
	"github.com/stretchr/testify/require"

	"go-account-service/internal/middleware"
	"go-account-service/internal/model"
)

type stubAccountService struct {
	register      func(model.SignupRequest) (model.AccountProfile, error)
	verify        func(string) error
	login         func(model.LoginRequest) (model.SessionToken, error)
	requestReset  func(model.ResetRequest) error
	completeReset func(model.CompleteResetRequest) error
	profile       func(string) (model.AccountProfile, error)
}

func (s *stubAccountService) Register(_ context.Context, req model.SignupRequest) (model.AccountProfile, error) {
	return s.register(req)
}

func (s *stubAccountService) VerifyEmail(_ context.Context, token string) error {
	return s.verify(token)
}

func (s *stubAccountService) Login(_ context.Context, req model.LoginRequest) (model.SessionToken, error) {
	return s.login(req)
}

func (s *stubAccountService) RequestPasswordReset(_ context.Context, req model.ResetRequest) error {
	return s.requestReset(req)
}

func (s *stubAccountService) CompletePasswordReset(_ context.Context, req model.CompleteResetRequest) error {
	return s.completeReset(req)
}

func (s *stubAccountService) FetchOwnProfile(_ context.Context, accountID string) (model.AccountProfile, error) {
	return s.profile(accountID)
}

func newTestRouter(h *AccountHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/signup", h.Signup)
	r.Get("/verify-email/{token}", h.VerifyEmail)
	r.Post("/login", h.Login)
	r.Post("/request-reset", h.RequestReset)
	r.Post("/reset-password/{token}", h.ResetPassword)
	r.Get("/own", h.Own)
	return r
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, model.APIResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestAccountHandlerSignup(t *testing.T) {
	t.Parallel()

	var got model.SignupRequest
	router := newTestRouter(NewAccountHandler(&stubAccountService{
		register: func(req model.SignupRequest) (model.AccountProfile, error) {
			got = req
			return model.AccountProfile{ID: "acc-1"}, nil
		},
	}))

	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(
		`{"fullName":"Ann","username":"ann","email":"ann@x.com","password":"pw1"}`))
	rec, body := do(t, router, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, body.Success)
	require.Equal(t, "ann@x.com", got.Email)
	require.Nil(t, got.ProfilePicture)
	require.Contains(t, rec.Body.String(), "check your email")
}

func TestAccountHandlerRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	router := newTestRouter(NewAccountHandler(&stubAccountService{}))

	for _, path := range []string{"/signup", "/login", "/request-reset", "/reset-password/abc"} {
		t.Run(path, func(t *testing.T) {
			rec, body := do(t, router, httptest.NewRequest(http.MethodPost, path, strings.NewReader("{not json")))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "BAD_REQUEST", body.Error.Code)
		})
	}
}

func TestAccountHandlerErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", oops.With("field", "email").Wrapf(model.ErrValidation, "email is required"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", oops.Code("CONFLICT").Wrap(model.ErrConflict), http.StatusConflict, "CONFLICT"},
		{"invalid credentials", model.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"unverified", model.ErrUnverified, http.StatusUnauthorized, "UNVERIFIED"},
		{"unknown", context.DeadlineExceeded, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(NewAccountHandler(&stubAccountService{
				login: func(model.LoginRequest) (model.SessionToken, error) {
					return model.SessionToken{}, tc.err
				},
			}))

			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@x.com","password":"pw"}`))
			rec, body := do(t, router, req)

			require.Equal(t, tc.status, rec.Code)
			require.False(t, body.Success)
			require.Equal(t, tc.code, body.Error.Code)
			require.NotContains(t, rec.Body.String(), "deadline")
		})
	}
}

func TestAccountHandlerLogin(t *testing.T) {
	t.Parallel()

	expires := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	router := newTestRouter(NewAccountHandler(&stubAccountService{
		login: func(req model.LoginRequest) (model.SessionToken, error) {
			require.Equal(t, "ann@x.com", req.Email)
			return model.SessionToken{Token: "session-token", ExpiresAt: expires}, nil
		},
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"ann@x.com","password":"pw1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data model.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "session-token", body.Data.Token)
	require.True(t, expires.Equal(body.Data.ExpiresAt))
}

func TestAccountHandlerTokenRoutes(t *testing.T) {
	t.Parallel()

	var verified string
	var completed model.CompleteResetRequest
	var resetEmail string
	router := newTestRouter(NewAccountHandler(&stubAccountService{
		verify: func(token string) error {
			verified = token
			return nil
		},
		requestReset: func(req model.ResetRequest) error {
			resetEmail = req.Email
			return nil
		},
		completeReset: func(req model.CompleteResetRequest) error {
			completed = req
			return nil
		},
	}))

	rec, body := do(t, router, httptest.NewRequest(http.MethodGet, "/verify-email/verify-abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)
	require.Equal(t, "verify-abc", verified)

	rec, _ = do(t, router, httptest.NewRequest(http.MethodPost, "/request-reset", strings.NewReader(`{"email":"ann@x.com"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ann@x.com", resetEmail)

	// A token smuggled in the body is ignored in favour of the path.
	rec, _ = do(t, router, httptest.NewRequest(http.MethodPost, "/reset-password/reset-xyz",
		strings.NewReader(`{"password":"pw2","token":"other"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "reset-xyz", completed.Token)
	require.Equal(t, "pw2", completed.Password)
}

func TestAccountHandlerOwn(t *testing.T) {
	t.Parallel()

	router := newTestRouter(NewAccountHandler(&stubAccountService{
		profile: func(accountID string) (model.AccountProfile, error) {
			if accountID != "acc-1" {
				return model.AccountProfile{}, model.ErrNotFound
			}
			return model.AccountProfile{ID: "acc-1", Username: "ann", Email: "ann@x.com", IsVerified: true}, nil
		},
	}))

	t.Run("without claims", func(t *testing.T) {
		rec, body := do(t, router, httptest.NewRequest(http.MethodGet, "/own", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "MISSING_TOKEN", body.Error.Code)
	})

	t.Run("with claims", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/own", nil)
		req = req.WithContext(middleware.WithClaims(req.Context(), &model.SessionClaims{AccountID: "acc-1", Username: "ann"}))
		rec, body := do(t, router, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, body.Success)
		require.NotContains(t, rec.Body.String(), "password")
		require.Contains(t, rec.Body.String(), `"username":"ann"`)
	})

	t.Run("deleted account", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/own", nil)
		req = req.WithContext(middleware.WithClaims(req.Context(), &model.SessionClaims{AccountID: "gone"}))
		rec, body := do(t, router, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "NOT_FOUND", body.Error.Code)
	})
}
