package gateway

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the chain check behind /health.
const healthCheckTimeout = 3 * time.Second

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Agents int    `json:"agents"`
	Tools  int    `json:"tools"`
	Chain  string `json:"chain,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 if the chain is reachable or not configured, 503 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status: "ok",
			Agents: g.pool.Len(),
			Tools:  g.registry.Len(),
		}

		if g.chain != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := g.chain.HealthCheck(ctx)
			cancel()
			if err != nil {
				g.logger.Warn("chain health check failed", "error", err)
				resp.Status = "degraded"
				resp.Chain = "unreachable"
			} else {
				resp.Chain = "ok"
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
