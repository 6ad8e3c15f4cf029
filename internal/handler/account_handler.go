package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-account-service/internal/middleware"
	"go-account-service/internal/model"
	"go-account-service/pkg/apierror"
)

const maxBodyBytes = 1 << 20

type accountService interface {
	Register(ctx context.Context, req model.SignupRequest) (model.AccountProfile, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, req model.LoginRequest) (model.SessionToken, error)
	RequestPasswordReset(ctx context.Context, req model.ResetRequest) error
	CompletePasswordReset(ctx context.Context, req model.CompleteResetRequest) error
	FetchOwnProfile(ctx context.Context, accountID string) (model.AccountProfile, error)
}

type AccountHandler struct {
	service accountService
}

func NewAccountHandler(service accountService) *AccountHandler {
	return &AccountHandler{service: service}
}

func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload model.SignupRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	if _, err := h.service.Register(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, model.MessageResponse{
		Message: "Signup successful! Check your email to verify your account",
	}, nil)
}

func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.service.VerifyEmail(r.Context(), chi.URLParam(r, "token")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{
		Message: "Email verified successfully! You can now log in",
	}, nil)
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	session, err := h.service.Login(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.LoginResponse{
		Message:   "Login successful",
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}, nil)
}

func (h *AccountHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var payload model.ResetRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: "Password reset email sent!"}, nil)
}

func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.CompleteResetRequest
	if !decodeJSON(w, r, &payload) {
		return
	}
	payload.Token = chi.URLParam(r, "token")

	if err := h.service.CompletePasswordReset(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{
		Message: "Password reset successful! You can now log in",
	}, nil)
}

func (h *AccountHandler) Own(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrMissingToken)
		return
	}

	profile, err := h.service.FetchOwnProfile(r.Context(), claims.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile, nil)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(target); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return false
	}
	return true
}
