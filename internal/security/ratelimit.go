package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a call exceeds a rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig holds per-minute tool call limits. Zero disables a limit.
type RateLimitConfig struct {
	// ToolCallsPerMin caps tool calls across every agent.
	ToolCallsPerMin int `yaml:"tool_calls_per_min"`

	// AgentCallsPerMin caps tool calls of a single agent.
	AgentCallsPerMin int `yaml:"agent_calls_per_min"`
}

// Enabled reports whether any limit is set.
func (c RateLimitConfig) Enabled() bool {
	return c.ToolCallsPerMin > 0 || c.AgentCallsPerMin > 0
}

// RateLimiter applies sliding one-minute windows to tool calls, globally
// and per agent. A batch counts one call per operation.
type RateLimiter struct {
	mu     sync.Mutex
	global *window
	agents map[string]*window
	config RateLimitConfig
	now    func() time.Time
}

type window struct {
	limit  int
	events []time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config: cfg,
		agents: make(map[string]*window),
		now:    time.Now,
	}
	if cfg.ToolCallsPerMin > 0 {
		rl.global = &window{limit: cfg.ToolCallsPerMin}
	}
	return rl
}

// Allow admits one tool call for agentID.
func (rl *RateLimiter) Allow(agentID string) error {
	return rl.AllowN(agentID, 1)
}

// AllowN admits n tool calls for agentID, or none of them. A nil
// RateLimiter admits everything.
func (rl *RateLimiter) AllowN(agentID string, n int) error {
	if rl == nil || n <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	var agent *window
	if rl.config.AgentCallsPerMin > 0 {
		agent = rl.agents[agentID]
		if agent == nil {
			agent = &window{limit: rl.config.AgentCallsPerMin}
			rl.agents[agentID] = agent
		}
	}

	for _, w := range []*window{rl.global, agent} {
		if w == nil {
			continue
		}
		w.evict(now)
		if len(w.events)+n > w.limit {
			return ErrRateLimited
		}
	}
	for _, w := range []*window{rl.global, agent} {
		if w == nil {
			continue
		}
		for range n {
			w.events = append(w.events, now)
		}
	}
	return nil
}

// Prune forgets agents with no calls in the current window and returns
// how many were dropped.
func (rl *RateLimiter) Prune() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	dropped := 0
	for id, w := range rl.agents {
		w.evict(now)
		if len(w.events) == 0 {
			delete(rl.agents, id)
			dropped++
		}
	}
	return dropped
}

// evict removes events older than one minute. Events are in order.
func (w *window) evict(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.events = w.events[i:]
	}
}
