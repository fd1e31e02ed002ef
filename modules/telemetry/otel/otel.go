// Package otel is the tracing module. It installs the global OpenTelemetry
// tracer provider used by the agent runtime and the gateway, and flushes it
// on shutdown.
package otel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/chaingate/internal/core"
	"github.com/flemzord/chaingate/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// ServiceVersion is the service name under which the application publishes
// its build version.
const ServiceVersion = "app.version"

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

// Module configures trace export.
type Module struct {
	config   telemetry.TracingConfig
	logger   *slog.Logger
	shutdown telemetry.ShutdownFunc
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telemetry.otel",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("telemetry.otel: decode config: %w", err)
	}
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.Validate()
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	version, _ := core.ServiceAs[string](ctx, ServiceVersion)

	shutdown, err := telemetry.SetupTracing(context.Background(), m.config, version)
	if err != nil {
		return err
	}
	m.shutdown = shutdown

	m.logger.Info("tracing configured",
		"exporter", m.config.Exporter,
		"endpoint", m.config.Endpoint,
	)
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.shutdown == nil {
		return nil
	}
	if err := m.shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry.otel: shutdown: %w", err)
	}
	return nil
}
