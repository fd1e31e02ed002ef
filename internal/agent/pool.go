package agent

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultAgentID is used when a request names no agent.
const DefaultAgentID = "default"

// Pool owns one Runtime per agent ID. Runtimes are created lazily on
// first use and evicted by SweepIdle.
type Pool struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	runtimes map[string]*Runtime
	closed   bool

	// maxAgents limits the number of live runtimes. Zero means unlimited.
	maxAgents int

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewPool creates a pool whose runtimes share opts.
func NewPool(opts Options, maxAgents int) (*Pool, error) {
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
	return &Pool{
		opts:      opts,
		logger:    logger,
		runtimes:  make(map[string]*Runtime),
		maxAgents: maxAgents,
		now:       time.Now,
	}, nil
}

// Get returns the runtime for agentID, creating and initializing it when
// needed. An empty agentID selects DefaultAgentID. Handing out a runtime
// counts as activity, so a sweep cannot evict one a caller just received.
func (p *Pool) Get(ctx context.Context, agentID string) (*Runtime, error) {
	if agentID == "" {
		agentID = DefaultAgentID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if rt, ok := p.runtimes[agentID]; ok {
		rt.touch(p.now())
		return rt, nil
	}
	if p.maxAgents > 0 && len(p.runtimes) >= p.maxAgents {
		return nil, ErrPoolFull
	}

	rt, err := NewRuntime(agentID, p.opts)
	if err != nil {
		return nil, err
	}
	rt.now = p.now
	if err := rt.Init(ctx); err != nil {
		return nil, err
	}
	p.runtimes[agentID] = rt
	p.logger.Debug("agent runtime created", "agent_id", agentID)
	return rt, nil
}

// Lookup returns the live runtime for agentID without creating one.
func (p *Pool) Lookup(agentID string) (*Runtime, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rt, ok := p.runtimes[agentID]
	return rt, ok
}

// Remove shuts down and forgets the runtime for agentID. It reports
// whether a runtime existed.
func (p *Pool) Remove(ctx context.Context, agentID string) (bool, error) {
	p.mu.Lock()
	rt, ok := p.runtimes[agentID]
	delete(p.runtimes, agentID)
	p.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, rt.Shutdown(ctx)
}

// IDs returns the live agent IDs, sorted.
func (p *Pool) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.runtimes))
	for id := range p.runtimes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of live runtimes.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runtimes)
}

// SweepIdle shuts down runtimes that have been idle longer than maxIdle and
// returns how many were removed. Executing runtimes are never evicted.
func (p *Pool) SweepIdle(ctx context.Context, maxIdle time.Duration) int {
	now := p.now()

	p.mu.Lock()
	var idle []*Runtime
	for id, rt := range p.runtimes {
		last, ok := rt.idleSince()
		if ok && now.Sub(last) > maxIdle {
			idle = append(idle, rt)
			delete(p.runtimes, id)
		}
	}
	p.mu.Unlock()

	for _, rt := range idle {
		if err := rt.Shutdown(ctx); err != nil {
			p.logger.Warn("idle agent shutdown failed", "agent_id", rt.ID(), "error", err)
		}
	}
	return len(idle)
}

// Close shuts down every runtime. Later Get calls fail with ErrPoolClosed.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	runtimes := p.runtimes
	p.runtimes = make(map[string]*Runtime)
	p.mu.Unlock()

	var errs []error
	for _, rt := range runtimes {
		if err := rt.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
