package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler reports liveness and, when Ping is set, whether the route
// list store answers.
type HealthHandler struct {
	Ping func(ctx context.Context) error
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			slog.Warn("health: store unreachable", "err", err)
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": "unreachable"})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
