package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"go-account-service/internal/model"
	"go-account-service/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

// writeError maps err through apierror.Classify. Internal detail such as the
// token failure kind or oops context is logged, never written.
func writeError(w http.ResponseWriter, err error) {
	apiErr, known := apierror.Classify(err)
	if !known {
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	} else if apiErr.HTTPStatus >= http.StatusInternalServerError {
		slog.Error("request failed", "code", apiErr.Code, "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}
