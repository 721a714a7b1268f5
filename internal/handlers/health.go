package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports "ok", or "degraded" with 503 when a checked
// backend does not answer.
type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	response := map[string]string{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			response[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		response[name] = "ok"
	}
	response["status"] = status

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}
