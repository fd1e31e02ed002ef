package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/chaingate/internal/agent"
	"github.com/flemzord/chaingate/internal/tool"
)

type mcpAgentKey struct{}

// mcpHandler exposes every registered tool over MCP streamable HTTP.
// Calls go through the same pool, limiter and runtime as POST /mcp. The
// agent comes from the X-Agent-ID header.
func (g *Gateway) mcpHandler() http.Handler {
	s := server.NewMCPServer("chaingate", g.version, server.WithToolCapabilities(false))
	for _, d := range g.registry.Descriptors() {
		schema := d.Schema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		s.AddTool(mcp.NewToolWithRawSchema(d.Name, d.Description, schema), g.mcpCall(d.Name))
	}

	return server.NewStreamableHTTPServer(s,
		server.WithStateLess(true),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return context.WithValue(ctx, mcpAgentKey{}, agentIDFor("", r))
		}),
	)
}

// mcpCall dispatches one MCP tool call. Tool failures are reported as
// error results so the client sees the code and message.
func (g *Gateway) mcpCall(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, _ := ctx.Value(mcpAgentKey{}).(string)
		if agentID == "" {
			agentID = agent.DefaultAgentID
		}

		if err := g.limiter.Allow(agentID); err != nil {
			g.metrics.RecordRateLimited()
			return mcpError(tool.Errorf(tool.CodeRateLimited, "rate limit exceeded")), nil
		}
		rt, err := g.pool.Get(ctx, agentID)
		if err != nil {
			return mcpError(requestError(err)), nil
		}

		start := time.Now()
		result, err := rt.Execute(ctx, name, req.GetArguments())
		g.metrics.RecordCall(err != nil, time.Since(start))
		if err != nil {
			return mcpError(tool.AsError(err)), nil
		}

		data, err := json.Marshal(result)
		if err != nil {
			return mcpError(tool.Wrap(tool.CodeInternal, err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func mcpError(te *tool.Error) *mcp.CallToolResult {
	data, _ := json.Marshal(errorBody{Error: te})
	return mcp.NewToolResultError(string(data))
}
