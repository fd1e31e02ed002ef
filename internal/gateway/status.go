package gateway

import (
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime      time.Duration   `json:"uptime_seconds"`
	Metrics     MetricsSnapshot `json:"metrics"`
	Agents      []string        `json:"agents"`
	Tools       []string        `json:"tools"`
	Subscribers int             `json:"event_subscribers"`
	Dropped     int64           `json:"events_dropped"`
	AuditErrors int64           `json:"audit_write_errors"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:  g.uptime(),
			Metrics: g.metrics.Snapshot(),
			Agents:  g.pool.IDs(),
			Tools:   g.registry.Names(),
		}
		if g.events != nil {
			resp.Subscribers = g.events.Subscribers()
			resp.Dropped = g.events.Dropped()
		}
		if g.audit != nil {
			resp.AuditErrors = g.audit.WriteErrors()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
