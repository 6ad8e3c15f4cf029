package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"go-account-service/internal/model"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

type classification struct {
	target  error
	code    string
	message string
	status  int
}

// Order matters: ErrTokenNotFound is reported as an invalid token so callers
// cannot distinguish a forged token from a consumed one.
var classifications = []classification{
	{model.ErrValidation, "VALIDATION_ERROR", "Invalid input", http.StatusBadRequest},
	{model.ErrConflict, "CONFLICT", "Account already exists", http.StatusConflict},
	{model.ErrNotFound, "NOT_FOUND", "Account not found", http.StatusNotFound},
	{model.ErrInvalidCredentials, "INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized},
	{model.ErrUnverified, "UNVERIFIED", "Email address not verified", http.StatusUnauthorized},
	{model.ErrMissingToken, "MISSING_TOKEN", "Authorization token required", http.StatusUnauthorized},
	{model.ErrInvalidToken, "INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized},
	{model.ErrTokenNotFound, "INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized},
	{model.ErrRateLimited, "RATE_LIMITED", "Too many requests", http.StatusTooManyRequests},
	{model.ErrDispatch, "DISPATCH_FAILED", "Notification could not be delivered", http.StatusBadGateway},
	{model.ErrInternal, "INTERNAL_ERROR", "Unexpected server error", http.StatusInternalServerError},
}

// Classify maps any error produced by the account subsystem onto the wire
// error. Unknown errors become a generic 500 and the second return is false
// so callers can log them.
func Classify(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	for _, c := range classifications {
		if errors.Is(err, c.target) {
			return New(c.code, c.message, details(err, c.target), c.status), true
		}
	}

	return New("INTERNAL_ERROR", "Unexpected server error", "", http.StatusInternalServerError), false
}

// details only exposes the message for validation failures; every other kind
// keeps its fixed wording.
func details(err error, target error) string {
	if target != model.ErrValidation {
		return ""
	}

	message := strings.TrimSuffix(err.Error(), ": "+target.Error())
	if oopsErr, ok := oops.AsOops(err); ok {
		if field, ok := oopsErr.Context()["field"].(string); ok && field != "" && !strings.HasPrefix(message, field) {
			return field + ": " + message
		}
	}

	return message
}
