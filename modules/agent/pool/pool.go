// Package pool is the agent runtime module. It assembles the tool registry
// from the chain services, owns the agent pool and its idle sweeper, and
// publishes them for the gateway.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/chaingate/internal/agent"
	"github.com/flemzord/chaingate/internal/chain"
	"github.com/flemzord/chaingate/internal/core"
	"github.com/flemzord/chaingate/internal/cron"
	"github.com/flemzord/chaingate/internal/memory"
	"github.com/flemzord/chaingate/internal/security"
	"github.com/flemzord/chaingate/internal/telemetry"
	"github.com/flemzord/chaingate/internal/tool"
	"github.com/flemzord/chaingate/internal/tools"
	"gopkg.in/yaml.v3"
)

// Service names published by the module.
const (
	ServiceRegistry = "tool.registry"
	ServicePool     = "agent.pool"
	ServiceEvents   = "agent.events"
)

const (
	defaultIdleTimeout = 30 * time.Minute
	defaultMaxAgents   = 1024
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Config holds the agent runtime module configuration.
type Config struct {
	// Timeout bounds each tool action, e.g. "30s".
	Timeout string `yaml:"timeout"`

	// SimulateFirst dry-runs tools that support it. Defaults to true.
	SimulateFirst *bool `yaml:"simulate_first"`

	// MaxMemoryItems is the default memory page size.
	MaxMemoryItems int `yaml:"max_memory_items"`

	// RecordValidationFailures also persists schema rejections.
	RecordValidationFailures bool `yaml:"record_validation_failures"`

	// MaxAgents caps live runtimes. Zero selects the default; negative
	// means unlimited.
	MaxAgents int `yaml:"max_agents"`

	// IdleTimeout evicts runtimes unused for this long, e.g. "30m".
	// "0" disables the sweeper.
	IdleTimeout string `yaml:"idle_timeout"`

	// SweepSchedule is the cron expression for the idle sweep.
	SweepSchedule string `yaml:"sweep_schedule"`
}

func (c *Config) runtimeConfig() (agent.Config, error) {
	cfg := agent.DefaultConfig()
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return cfg, fmt.Errorf("agent.runtime: invalid timeout %q: %w", c.Timeout, err)
		}
		if d <= 0 {
			return cfg, fmt.Errorf("agent.runtime: timeout must be positive, got %s", d)
		}
		cfg.Timeout = d
	}
	if c.SimulateFirst != nil {
		cfg.SimulateFirst = *c.SimulateFirst
	}
	if c.MaxMemoryItems > 0 {
		cfg.MaxMemoryItems = c.MaxMemoryItems
	}
	cfg.RecordValidationFailures = c.RecordValidationFailures
	return cfg, nil
}

func (c *Config) idleTimeout() (time.Duration, error) {
	if c.IdleTimeout == "" {
		return defaultIdleTimeout, nil
	}
	d, err := time.ParseDuration(c.IdleTimeout)
	if err != nil {
		return 0, fmt.Errorf("agent.runtime: invalid idle_timeout %q: %w", c.IdleTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("agent.runtime: idle_timeout must not be negative, got %s", d)
	}
	return d, nil
}

func (c *Config) maxAgents() int {
	switch {
	case c.MaxAgents == 0:
		return defaultMaxAgents
	case c.MaxAgents < 0:
		return 0
	default:
		return c.MaxAgents
	}
}

// Module wires the registry, memory store and pool together.
type Module struct {
	config   Config
	logger   *slog.Logger
	registry *tool.Registry
	events   *agent.Broadcaster
	pool     *agent.Pool
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "agent.runtime",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("agent.runtime: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger

	rtCfg, err := m.config.runtimeConfig()
	if err != nil {
		return err
	}
	idle, err := m.config.idleTimeout()
	if err != nil {
		return err
	}

	store, ok := core.ServiceAs[memory.Store](ctx, "memory.store")
	if !ok {
		return errors.New("agent.runtime: no memory.store service; configure memory.file or memory.sqlite")
	}

	m.registry = tool.NewRegistry()
	if err := tools.Register(m.registry, chainDeps(ctx)); err != nil {
		return err
	}
	m.registry.Close()

	m.events = &agent.Broadcaster{}
	opts := agent.Options{
		Registry: m.registry,
		Store:    store,
		Config:   rtCfg,
		Logger:   m.logger,
		Events:   m.events,
	}
	metrics, _ := core.ServiceAs[*telemetry.Metrics](ctx, "telemetry.metrics")
	if metrics != nil {
		opts.Metrics = metrics
	}
	if audit, ok := core.ServiceAs[*security.AuditLogger](ctx, "security.audit"); ok {
		opts.Audit = audit
	}

	m.pool, err = agent.NewPool(opts, m.config.maxAgents())
	if err != nil {
		return fmt.Errorf("agent.runtime: %w", err)
	}

	if metrics != nil {
		pool := m.pool
		if err := metrics.RegisterGauge("agents_live", "Live agent runtimes.", func() float64 {
			return float64(pool.Len())
		}); err != nil {
			m.logger.Warn("agent gauge not registered", "error", err)
		}
	}

	if idle > 0 {
		if err := m.registerSweep(ctx, idle); err != nil {
			return err
		}
	}

	ctx.RegisterService(ServiceRegistry, m.registry)
	ctx.RegisterService(ServicePool, m.pool)
	ctx.RegisterService(ServiceEvents, m.events)

	m.logger.Info("agent runtime provisioned",
		"tools", m.registry.Len(),
		"timeout", rtCfg.Timeout,
		"simulate_first", rtCfg.SimulateFirst,
		"idle_timeout", idle,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.MaxMemoryItems < 0 {
		return fmt.Errorf("agent.runtime: max_memory_items must be non-negative, got %d", m.config.MaxMemoryItems)
	}
	return nil
}

// Stop implements core.Stopper. Every live runtime writes its shutdown
// record before the memory store closes.
func (m *Module) Stop(ctx context.Context) error {
	if m.pool == nil {
		return nil
	}
	return m.pool.Close(ctx)
}

// Pool returns the agent pool.
func (m *Module) Pool() *agent.Pool { return m.pool }

// Registry returns the closed tool registry.
func (m *Module) Registry() *tool.Registry { return m.registry }

func (m *Module) registerSweep(ctx *core.AppContext, idle time.Duration) error {
	sched, ok := core.ServiceAs[*cron.Scheduler](ctx, "cron.scheduler")
	if !ok {
		m.logger.Warn("agent.runtime: no scheduler available, idle sweep disabled")
		return nil
	}
	return sched.RegisterJob(&cron.IdleAgentSweepJob{
		Pool:         m.pool,
		MaxIdle:      idle,
		Logger:       m.logger,
		ScheduleExpr: m.config.SweepSchedule,
	})
}

// chainDeps collects the chain services. Without a chain module only the
// offline tools are registered.
func chainDeps(ctx *core.AppContext) tools.Deps {
	var deps tools.Deps
	if c, ok := core.ServiceAs[chain.Client](ctx, "chain.client"); ok {
		deps.Client = c
	}
	if pc, ok := core.ServiceAs[chain.ProgramClient](ctx, "chain.client"); ok {
		deps.Programs = pc
	}
	if ids, ok := core.ServiceAs[chain.Programs](ctx, "chain.programs"); ok {
		deps.ProgramIDs = ids
	}
	return deps
}
