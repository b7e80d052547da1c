package gateway

import (
	"encoding/json"
	"net/http"
)

// Pinger reports storage liveness. The store module provides one.
type Pinger interface {
	Ping() error
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Store  string `json:"store,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the store answers, 503 when it does not.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if pinger, ok := serviceAs[Pinger](g.appCtx, "store.ping"); ok {
			if err := pinger.Ping(); err != nil {
				resp.Status = "degraded"
				resp.Store = err.Error()
			} else {
				resp.Store = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
