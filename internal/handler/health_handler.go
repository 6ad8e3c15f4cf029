package handler

import (
	"context"
	"net/http"
	"time"
)

type pinger interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db pinger
}

// NewHealthHandler accepts a nil db when the service runs on the in-memory store.
func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "store": "memory"}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status["store"] = "postgres"
		if err := h.db.Health(ctx); err != nil {
			status["status"] = "degraded"
			writeSuccess(w, http.StatusServiceUnavailable, status, nil)
			return
		}
	}

	writeSuccess(w, http.StatusOK, status, nil)
}
