package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flemzord/chaingate/internal/agent"
	"github.com/flemzord/chaingate/internal/core"
	"github.com/flemzord/chaingate/internal/memory"
	"github.com/flemzord/chaingate/internal/security"
	"github.com/flemzord/chaingate/internal/tool"
)

// maxMemoryLimit bounds ?limit on the memory listing.
const maxMemoryLimit = 1000

// agentJSON is a serializable runtime snapshot.
type agentJSON struct {
	ID      string         `json:"id"`
	Status  agent.Status   `json:"status"`
	Stats   agent.Stats    `json:"stats"`
	Context map[string]any `json:"context,omitempty"`
}

// handleListAgents lists the live runtimes.
func (g *Gateway) handleListAgents() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ids := g.pool.IDs()
		agents := make([]agentJSON, 0, len(ids))
		for _, id := range ids {
			rt, ok := g.pool.Lookup(id)
			if !ok {
				continue
			}
			agents = append(agents, agentJSON{ID: id, Status: rt.Status(), Stats: rt.Stats()})
		}
		writeJSON(w, http.StatusOK, agents)
	}
}

// handleGetAgent returns one runtime with its accumulated context.
func (g *Gateway) handleGetAgent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := g.lookupAgent(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, agentJSON{
			ID:      rt.ID(),
			Status:  rt.Status(),
			Stats:   rt.Stats(),
			Context: g.redacted(rt.Context()),
		})
	}
}

// handleAgentMemory returns the newest records of a live agent, oldest
// first. Params are redacted before they leave the process.
func (g *Gateway) handleAgentMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeError(w, tool.Errorf(tool.CodeInvalidRequest, "limit must be a positive integer"))
				return
			}
			limit = min(n, maxMemoryLimit)
		}

		rt, ok := g.lookupAgent(w, r)
		if !ok {
			return
		}
		recs, err := rt.LoadMemory(r.Context(), limit)
		if err != nil {
			g.logger.Error("load agent memory failed", "agent_id", rt.ID(), "error", err)
			writeError(w, err)
			return
		}
		for i := range recs {
			recs[i].Params = g.redacted(recs[i].Params)
		}
		if recs == nil {
			recs = []memory.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// handleDeleteAgent shuts a runtime down and forgets it. Its memory stays.
func (g *Gateway) handleDeleteAgent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		found, err := g.pool.Remove(r.Context(), id)
		if !found {
			writeError(w, tool.Errorf(tool.CodeAgentNotFound, "agent %q is not running", id))
			return
		}
		g.audit.Log(security.AuditEvent{
			Type:       security.EventAgentRemove,
			RequestID:  middleware.GetReqID(r.Context()),
			RemoteAddr: r.RemoteAddr,
			AgentID:    id,
		})
		if err != nil {
			// The runtime is gone either way; only its shutdown record failed.
			g.logger.Warn("agent shutdown record not written", "agent_id", id, "error", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (g *Gateway) lookupAgent(w http.ResponseWriter, r *http.Request) (*agent.Runtime, bool) {
	id := chi.URLParam(r, "id")
	rt, ok := g.pool.Lookup(id)
	if !ok {
		writeError(w, tool.Errorf(tool.CodeAgentNotFound, "agent %q is not running", id))
		return nil, false
	}
	return rt, true
}

// redacted returns a deep copy of m with secrets masked. The source maps
// are shared with the runtime and the store and must not be mutated.
func (g *Gateway) redacted(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	var out map[string]any
	data, err := json.Marshal(m)
	if err != nil || json.Unmarshal(data, &out) != nil {
		return map[string]any{"error": "unrenderable"}
	}
	if g.redactor != nil {
		g.redactor.RedactMap(out)
	}
	return out
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleGetAllModules lists all compiled modules (for /api/modules).
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// uptime is the time since Start, truncated to seconds.
func (g *Gateway) uptime() time.Duration {
	return time.Since(g.startedAt).Truncate(time.Second)
}
