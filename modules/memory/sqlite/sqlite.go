// Package sqlite implements a persistent SQLite-backed memory module. It uses
// modernc.org/sqlite (pure Go, no CGO) in WAL mode with a single connection.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/flemzord/chaingate/internal/core"
	"github.com/flemzord/chaingate/internal/cron"
	"github.com/flemzord/chaingate/internal/memory"
	"gopkg.in/yaml.v3"
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

// Module publishes a SQLite record store as the "memory.store" service.
type Module struct {
	config Config
	logger *slog.Logger
	store  *Store
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, dbFileName)
	}

	store, err := Open(context.TODO(), m.config)
	if err != nil {
		return err
	}
	m.store = store
	ctx.RegisterService("memory.store", memory.Store(store))

	if m.config.MaxRecordsPerAgent > 0 {
		if sched, ok := core.ServiceAs[*cron.Scheduler](ctx, "cron.scheduler"); ok {
			if err := sched.RegisterJob(&cron.MemoryCompactionJob{
				Store:        store,
				MaxPerAgent:  m.config.MaxRecordsPerAgent,
				Logger:       m.logger,
				ScheduleExpr: m.config.CompactSchedule,
			}); err != nil {
				return err
			}
		}
	}

	m.logger.Info("sqlite memory module provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"synchronous", m.config.Synchronous,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.store.DB().PingContext(context.TODO()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.store == nil {
		return nil
	}
	m.logger.Info("sqlite memory module stopping")
	return m.store.Close()
}

// Store returns the record store.
func (m *Module) Store() *Store { return m.store }
