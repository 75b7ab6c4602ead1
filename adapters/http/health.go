package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/artpar/samgate/ports"
)

// HealthHandler provides the liveness and readiness endpoints.
type HealthHandler struct {
	invoker ports.HealthChecker
}

// NewHealthHandler creates a new health handler. A nil invoker makes
// readiness equal to liveness.
func NewHealthHandler(invoker ports.HealthChecker) *HealthHandler {
	return &HealthHandler{invoker: invoker}
}

// Liveness reports the process is up.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Readiness additionally probes the configured function containers.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.invoker != nil {
		if err := h.invoker.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
