package agent

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/flemzord/chaingate/internal/memory"
	"github.com/flemzord/chaingate/internal/security"
	"github.com/flemzord/chaingate/internal/tool"
)

// Recorder receives one observation per execution attempt that reached the
// pipeline. code is empty on success.
type Recorder interface {
	ObserveExecution(toolName string, code tool.Code, d time.Duration)
}

// Options holds the collaborators of a Runtime.
type Options struct {
	Registry *tool.Registry
	Store    memory.Store
	Config   Config

	// Optional.
	Logger  *slog.Logger
	Events  *Broadcaster
	Metrics Recorder
	Audit   *security.AuditLogger
}

// Runtime executes tools on behalf of one agent. It owns the agent's
// accumulated context and counters and runs at most one Execute at a time;
// an overlapping call fails with AGENT_NOT_READY.
type Runtime struct {
	id       string
	registry *tool.Registry
	store    memory.Store
	cfg      Config
	logger   *slog.Logger
	events   *Broadcaster
	metrics  Recorder
	audit    *security.AuditLogger

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time

	mu      sync.Mutex
	status  Status
	context map[string]any
	stats   Stats
}

// NewRuntime creates a runtime in the initializing state. Call Init before
// executing tools.
func NewRuntime(agentID string, opts Options) (*Runtime, error) {
	if agentID == "" {
		return nil, ErrEmptyAgentID
	}
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		id:       agentID,
		registry: opts.Registry,
		store:    opts.Store,
		cfg:      opts.Config.withDefaults(),
		logger:   logger.With("agent_id", agentID),
		events:   opts.Events,
		metrics:  opts.Metrics,
		audit:    opts.Audit,
		now:      time.Now,
		status:   StatusInitializing,
		context:  make(map[string]any),
	}, nil
}

// Init checks that the agent's log is readable and moves the runtime to
// ready. Calling Init on a runtime that is not initializing is a no-op.
func (r *Runtime) Init(ctx context.Context) error {
	r.mu.Lock()
	if r.status != StatusInitializing {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	recs, err := r.store.Get(ctx, r.id, r.cfg.MaxMemoryItems)
	if err != nil {
		return fmt.Errorf("agent %s: load memory: %w", r.id, err)
	}

	r.mu.Lock()
	r.status = StatusReady
	r.stats.LastActivity = r.now()
	r.mu.Unlock()

	r.logger.Debug("agent runtime ready", "records", len(recs))
	return nil
}

// ID returns the agent ID.
func (r *Runtime) ID() string { return r.id }

// Status returns the current lifecycle state.
func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Stats returns a snapshot of the counters.
func (r *Runtime) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Context returns a copy of the accumulated execution context.
func (r *Runtime) Context() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.context)
}

// Execute runs toolName with params through the full pipeline: permission
// gate, schema validation, optional simulation and a time-bounded action.
// The outcome is appended to the agent's memory except when the runtime
// is not ready or the tool does not exist. Returned errors are *tool.Error.
func (r *Runtime) Execute(ctx context.Context, toolName string, params map[string]any) (any, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}

	d, err := r.registry.Lookup(toolName)
	if err != nil {
		r.release(false)
		return nil, tool.AsError(err)
	}

	result, err := r.run(ctx, d, params)
	r.release(err != nil)
	return result, err
}

// LoadMemory returns the agent's newest limit records, oldest first. A
// limit <= 0 uses the configured MaxMemoryItems.
func (r *Runtime) LoadMemory(ctx context.Context, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = r.cfg.MaxMemoryItems
	}
	recs, err := r.store.Get(ctx, r.id, limit)
	if err != nil {
		return nil, fmt.Errorf("agent %s: load memory: %w", r.id, err)
	}
	return recs, nil
}

// Shutdown persists a shutdown record carrying the final stats and moves
// the runtime to terminated. It waits for nothing: an in-flight Execute
// keeps running but later calls fail with AGENT_NOT_READY. A second
// Shutdown is a no-op.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	switch r.status {
	case StatusShuttingDown, StatusTerminated:
		r.mu.Unlock()
		return nil
	}
	r.status = StatusShuttingDown
	snapshot := r.stats
	r.mu.Unlock()

	rec := memory.Record{
		Kind:      memory.KindShutdown,
		Result:    snapshot.statsMap(),
		Timestamp: r.now().UTC(),
	}
	err := r.store.Save(ctx, r.id, rec)

	r.mu.Lock()
	r.status = StatusTerminated
	r.mu.Unlock()

	r.events.Publish(Event{
		Type:      EventAgentShutdown,
		AgentID:   r.id,
		Timestamp: rec.Timestamp,
	})

	if err != nil {
		r.logger.Error("agent shutdown record not saved", "error", err)
		return fmt.Errorf("agent %s: save shutdown record: %w", r.id, err)
	}
	r.logger.Info("agent runtime terminated",
		"tools_executed", snapshot.ToolsExecuted,
		"errors", snapshot.Errors,
	)
	return nil
}

// acquire moves ready to executing or reports AGENT_NOT_READY.
func (r *Runtime) acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusReady {
		return tool.Errorf(tool.CodeAgentNotReady, "agent %s is %s", r.id, r.status)
	}
	r.status = StatusExecuting
	return nil
}

// release returns an executing runtime to ready, passing through error
// when the call failed. A runtime shut down mid-call stays terminated.
func (r *Runtime) release(failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusExecuting {
		return
	}
	if failed {
		r.status = StatusError
	}
	r.status = StatusReady
}

// touch marks the runtime active at t so SweepIdle keeps it.
func (r *Runtime) touch(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.After(r.stats.LastActivity) {
		r.stats.LastActivity = t
	}
}

// idleSince reports when the runtime last did anything, and whether it is
// idle (ready and not executing).
func (r *Runtime) idleSince() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats.LastActivity, r.status == StatusReady || r.status == StatusInitializing
}
