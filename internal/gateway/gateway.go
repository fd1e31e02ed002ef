// Package gateway is the HTTP front of chaingate. It accepts tool calls and
// batches, lists tools, exposes agent state and memory, streams runtime
// events over WebSocket, bridges the tool set to MCP clients, and serves
// health, status and Prometheus metrics. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/chaingate/internal/agent"
	"github.com/flemzord/chaingate/internal/core"
	"github.com/flemzord/chaingate/internal/security"
	"github.com/flemzord/chaingate/internal/telemetry"
	"github.com/flemzord/chaingate/internal/tool"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// HealthChecker is implemented by collaborators whose reachability is
// reported on /health, such as the chain client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Gateway is the HTTP gateway module. It is a leaf module; nothing
// imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	version   string
	startedAt time.Time
	done      chan struct{}

	audit     *security.AuditLogger
	redactor  *security.Redactor
	limiter   *security.RateLimiter
	telemetry *telemetry.Metrics

	// Resolved at Start() from the service registry.
	registry *tool.Registry
	pool     *agent.Pool
	events   *agent.Broadcaster
	chain    HealthChecker
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = &Metrics{}
	ctx.RegisterService("gateway.metrics", g.metrics)

	g.version = "dev"
	if v, ok := core.ServiceAs[string](ctx, "app.version"); ok && v != "" {
		g.version = v
	}

	g.audit, _ = core.ServiceAs[*security.AuditLogger](ctx, "security.audit")
	g.redactor, _ = core.ServiceAs[*security.Redactor](ctx, "security.redactor")
	g.telemetry, _ = core.ServiceAs[*telemetry.Metrics](ctx, "telemetry.metrics")

	if g.config.RateLimit.Enabled() {
		g.limiter = security.NewRateLimiter(g.config.RateLimit)
	} else {
		g.limiter, _ = core.ServiceAs[*security.RateLimiter](ctx, "security.ratelimiter")
	}

	// The token is a secret like any other: keep it out of logs.
	if creds, ok := core.ServiceAs[*security.CredentialStore](ctx, "security.credentials"); ok {
		if g.config.Auth.BearerToken != "" {
			creds.Set("gateway.bearer_token", g.config.Auth.BearerToken)
		}
		if g.config.Auth.BasicPass != "" {
			creds.Set("gateway.basic_pass", g.config.Auth.BasicPass)
		}
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", g.config.Bind, err)
	}
	if g.config.Auth.ProtectTools && !g.config.Auth.IsConfigured() {
		return errors.New("gateway: auth.protect_tools requires bearer_token or basic credentials")
	}
	if g.config.RateLimit.ToolCallsPerMin < 0 || g.config.RateLimit.AgentCallsPerMin < 0 {
		return errors.New("gateway: rate limits must be non-negative")
	}
	return nil
}

// Start implements core.Starter. It resolves the agent services and starts
// the HTTP server.
func (g *Gateway) Start() error {
	if err := g.resolveServices(); err != nil {
		return err
	}
	g.startedAt = time.Now()
	g.done = make(chan struct{})

	g.server = &http.Server{
		Addr:              g.config.Bind,
		Handler:           g.buildRouter(),
		ReadHeaderTimeout: g.config.ReadTimeout,
		ReadTimeout:       g.config.ReadTimeout,
		WriteTimeout:      g.config.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String(), "tools", g.registry.Len())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	// Hijacked event streams are not tracked by Shutdown.
	close(g.done)
	return g.server.Shutdown(shutdownCtx)
}

// resolveServices binds the agent module's services. The registry and
// pool are required; the rest degrade gracefully.
func (g *Gateway) resolveServices() error {
	var ok bool
	if g.registry, ok = core.ServiceAs[*tool.Registry](g.appCtx, "tool.registry"); !ok {
		return errors.New("gateway: no tool.registry service; is agent.runtime configured?")
	}
	if g.pool, ok = core.ServiceAs[*agent.Pool](g.appCtx, "agent.pool"); !ok {
		return errors.New("gateway: no agent.pool service; is agent.runtime configured?")
	}
	g.events, _ = core.ServiceAs[*agent.Broadcaster](g.appCtx, "agent.events")
	if hc, ok := core.ServiceAs[HealthChecker](g.appCtx, "chain.client"); ok {
		g.chain = hc
	}
	return nil
}
