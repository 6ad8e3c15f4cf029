package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-account-service/internal/model"
)

const defaultRequestTimeout = 30 * time.Second

// timeoutEnvelope is the body http.TimeoutHandler writes once a request
// runs past its deadline.
func timeoutEnvelope() string {
	body, _ := json.Marshal(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "REQUEST_TIMEOUT",
			Message: "account request timed out",
		},
	})
	return string(body)
}

// Timeout bounds each account request. The handler's context is canceled
// at the deadline so store and hasher calls stop early.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	message := timeoutEnvelope()

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
