package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/flemzord/chaingate/internal/agent"
	"github.com/flemzord/chaingate/internal/security"
	"github.com/flemzord/chaingate/internal/tool"
)

// AgentHeader names the agent when the body does not.
const AgentHeader = "X-Agent-ID"

type callRequest struct {
	AgentID string         `json:"agent_id"`
	Tool    string         `json:"tool"`
	Params  map[string]any `json:"params"`
}

type callResponse struct {
	Result    any       `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

type batchRequest struct {
	AgentID string `json:"agent_id"`
	agent.Batch
}

type batchResponse struct {
	Results   []agent.OperationResult `json:"results"`
	Timestamp time.Time               `json:"timestamp"`
}

// handleCall serves POST /mcp.
func (g *Gateway) handleCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callRequest
		if err := g.decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if strings.TrimSpace(req.Tool) == "" {
			writeError(w, tool.Errorf(tool.CodeInvalidRequest, "tool is required"))
			return
		}
		agentID := agentIDFor(req.AgentID, r)

		// Unknown tools are refused before any runtime exists for the agent.
		if _, err := g.registry.Lookup(req.Tool); err != nil {
			writeError(w, tool.AsError(err))
			return
		}
		if !g.admit(w, r, agentID, 1) {
			return
		}

		rt, err := g.pool.Get(r.Context(), agentID)
		if err != nil {
			writeError(w, requestError(err))
			return
		}

		start := time.Now()
		result, err := rt.Execute(r.Context(), req.Tool, req.Params)
		g.metrics.RecordCall(err != nil, time.Since(start))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, callResponse{Result: result, Timestamp: time.Now().UTC()})
	}
}

// handleListTools serves GET /mcp/tools.
func (g *Gateway) handleListTools() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, g.registry.List())
	}
}

// handleBatch serves POST /mcp/batch. Per-operation failures are reported
// in their result slot with a 200; only a batch that cannot start fails
// as a whole.
func (g *Gateway) handleBatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := g.decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		switch n := len(req.Operations); {
		case n == 0:
			writeError(w, tool.Errorf(tool.CodeInvalidRequest, "operations must not be empty"))
			return
		case n > g.config.MaxBatchOps:
			writeError(w, tool.Errorf(tool.CodeInvalidRequest, "batch has %d operations, limit is %d", n, g.config.MaxBatchOps))
			return
		}
		if !req.Mode.Valid() {
			writeError(w, tool.Errorf(tool.CodeInvalidRequest, "unknown batch mode %q", req.Mode))
			return
		}
		agentID := agentIDFor(req.AgentID, r)
		if !g.admit(w, r, agentID, len(req.Operations)) {
			return
		}

		rt, err := g.pool.Get(r.Context(), agentID)
		if err != nil {
			writeError(w, requestError(err))
			return
		}

		g.metrics.RecordBatch()
		start := time.Now()
		results, err := rt.ExecuteBatch(r.Context(), req.Batch)
		if err != nil {
			writeError(w, err)
			return
		}
		elapsed := time.Since(start)
		for _, res := range results {
			if res.Error != nil && res.Error.Code == tool.CodeSkipped {
				continue
			}
			g.metrics.RecordCall(res.Failed(), elapsed/time.Duration(len(results)))
		}
		writeJSON(w, http.StatusOK, batchResponse{Results: results, Timestamp: time.Now().UTC()})
	}
}

// decode reads a bounded JSON body into v.
func (g *Gateway) decode(r *http.Request, v any) error {
	body, err := security.ReadPayload(r.Body, g.config.Payload)
	if err != nil {
		return requestError(err)
	}
	if len(body) == 0 {
		return tool.Errorf(tool.CodeInvalidRequest, "request body is empty")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &tool.Error{Code: tool.CodeInvalidRequest, Message: "malformed request body", Err: err}
	}
	return nil
}

// admit applies the rate limiter to n calls. On refusal it writes the 429
// and returns false.
func (g *Gateway) admit(w http.ResponseWriter, r *http.Request, agentID string, n int) bool {
	if err := g.limiter.AllowN(agentID, n); err != nil {
		g.metrics.RecordRateLimited()
		g.audit.Log(security.AuditEvent{
			Type:       security.EventRateLimit,
			RequestID:  middleware.GetReqID(r.Context()),
			RemoteAddr: r.RemoteAddr,
			AgentID:    agentID,
			Detail:     err.Error(),
		})
		writeError(w, tool.Errorf(tool.CodeRateLimited, "rate limit exceeded"))
		return false
	}
	return true
}

// agentIDFor picks the body's agent, then the header's, then the default.
func agentIDFor(fromBody string, r *http.Request) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.Header.Get(AgentHeader)); id != "" {
		return id
	}
	return agent.DefaultAgentID
}
