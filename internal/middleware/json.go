package middleware

import (
	"encoding/json"
	"net/http"

	"go-account-service/internal/model"
	"go-account-service/pkg/apierror"
)

func jsonEncode(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

// writeError renders err in the standard envelope using the same
// classification as the handlers.
func writeError(w http.ResponseWriter, err error) {
	apiErr, _ := apierror.Classify(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}
