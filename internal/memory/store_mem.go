package memory

import (
	"context"
	"slices"
	"sync"
)

// InMemoryStore is a thread-safe, in-memory implementation of Store.
// Records do not survive a restart.
type InMemoryStore struct {
	mu   sync.RWMutex
	logs map[string][]Record
}

// NewInMemoryStore creates a new empty memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		logs: make(map[string][]Record),
	}
}

// Compile-time interface checks.
var (
	_ Store     = (*InMemoryStore)(nil)
	_ Compactor = (*InMemoryStore)(nil)
)

// Save appends a record to the agent's log.
func (s *InMemoryStore) Save(ctx context.Context, agentID string, rec Record) error {
	if agentID == "" {
		return ErrEmptyAgentID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[agentID]
	s.logs[agentID] = append(log, stampAfter(log, rec))
	return nil
}

// Get returns the newest limit records for an agent, oldest first.
func (s *InMemoryStore) Get(_ context.Context, agentID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tail(s.logs[agentID], limit), nil
}

// Agents returns every agent with stored records.
func (s *InMemoryStore) Agents(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.logs))
	for id := range s.logs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Compact drops the oldest records beyond maxPerAgent for every agent.
func (s *InMemoryStore) Compact(_ context.Context, maxPerAgent int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return trim(s.logs, maxPerAgent), nil
}
