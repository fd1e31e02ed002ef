// Package file implements the default memory module: every agent's log in a
// single JSON document owned by one writer goroutine.
package file

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

const defaultFileName = "memory.json"

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

// Config holds the file memory module configuration.
type Config struct {
	// Path is the document location. Defaults to {DataDir}/memory.json.
	Path string `yaml:"path"`

	// MaxRecordsPerAgent enables compaction when positive.
	MaxRecordsPerAgent int `yaml:"max_records_per_agent"`

	// CompactSchedule is the cron expression for compaction. Defaults to hourly.
	CompactSchedule string `yaml:"compact_schedule"`
}

// Module publishes a memory.FileStore as the "memory.store" service.
type Module struct {
	config Config
	logger *slog.Logger
	store  *memory.FileStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.file",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("memory.file: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultFileName)
	}

	store, err := memory.OpenFileStore(m.config.Path, m.logger)
	if err != nil {
		return err
	}
	m.store = store
	ctx.RegisterService("memory.store", memory.Store(store))

	if m.config.MaxRecordsPerAgent > 0 {
		if err := registerCompaction(ctx, store, m.config.MaxRecordsPerAgent, m.config.CompactSchedule); err != nil {
			return err
		}
	}

	m.logger.Info("file memory module provisioned",
		"path", m.config.Path,
		"max_records_per_agent", m.config.MaxRecordsPerAgent,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.MaxRecordsPerAgent < 0 {
		return fmt.Errorf("memory.file: max_records_per_agent must be non-negative, got %d", m.config.MaxRecordsPerAgent)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// Store returns the underlying store.
func (m *Module) Store() *memory.FileStore { return m.store }

// registerCompaction schedules a compaction job when a scheduler service
// is available.
func registerCompaction(ctx *core.AppContext, store memory.Compactor, maxPerAgent int, schedule string) error {
	sched, ok := core.ServiceAs[*cron.Scheduler](ctx, "cron.scheduler")
	if !ok {
		ctx.Logger.Warn("memory.file: no scheduler available, compaction disabled")
		return nil
	}
	return sched.RegisterJob(&cron.MemoryCompactionJob{
		Store:        store,
		MaxPerAgent:  maxPerAgent,
		Logger:       ctx.Logger,
		ScheduleExpr: schedule,
	})
}
