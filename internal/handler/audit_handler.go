package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go-account-service/internal/middleware"
	"go-account-service/internal/model"
)

type auditQuerier interface {
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

type AuditHandler struct {
	service auditQuerier
}

func NewAuditHandler(service auditQuerier) *AuditHandler {
	return &AuditHandler{service: service}
}

// Activity lists the caller's own lifecycle history, newest first.
func (h *AuditHandler) Activity(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrMissingToken)
		return
	}

	query := r.URL.Query()
	entries, meta, err := h.service.Query(r.Context(), model.AuditQuery{
		AccountID: claims.AccountID,
		Page:      parseIntOrDefault(query.Get("page"), 1),
		Limit:     parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuditEntryList{Entries: entries}, &meta)
}

func parseIntOrDefault(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}
