// Package memorytest provides test doubles and a shared behavioural suite
// for memory.Store implementations.
package memorytest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/chaingate/internal/memory"
)

// FailingStore is a memory.Store whose Save always fails with Err.
// Reads delegate to an embedded in-memory store.
type FailingStore struct {
	*memory.InMemoryStore
	Err error

	mu        sync.Mutex
	saveCalls int
}

// NewFailingStore returns a store that rejects every Save with err.
func NewFailingStore(err error) *FailingStore {
	return &FailingStore{InMemoryStore: memory.NewInMemoryStore(), Err: err}
}

// Save implements memory.Store.
func (f *FailingStore) Save(context.Context, string, memory.Record) error {
	f.mu.Lock()
	f.saveCalls++
	f.mu.Unlock()
	return f.Err
}

// SaveCalls returns the number of Save attempts.
func (f *FailingStore) SaveCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveCalls
}

var _ memory.Store = (*FailingStore)(nil)

// Record returns an execution record for tool with a distinct timestamp.
func Record(tool string, seq int) memory.Record {
	return memory.Record{
		Kind:      memory.KindExecution,
		Tool:      tool,
		Params:    map[string]any{"seq": float64(seq)},
		Result:    fmt.Sprintf("result-%d", seq),
		Timestamp: time.Date(2026, 1, 1, 0, 0, seq, 0, time.UTC),
	}
}

// RunStoreSuite exercises the behaviour every memory.Store must share.
// newStore must return an empty store.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) memory.Store) {
	t.Helper()

	t.Run("unknown agent is empty", func(t *testing.T) {
		s := newStore(t)
		recs, err := s.Get(context.Background(), "nobody", 10)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("Get = %d records, want 0", len(recs))
		}
	})

	t.Run("save fills defaults", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Save(ctx, "a1", memory.Record{Tool: "echo"}); err != nil {
			t.Fatalf("Save: %v", err)
		}
		recs, err := s.Get(ctx, "a1", 0)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("Get = %d records, want 1", len(recs))
		}
		if recs[0].ID == "" {
			t.Error("ID should be generated")
		}
		if recs[0].Timestamp.IsZero() {
			t.Error("Timestamp should be set")
		}
		if recs[0].Kind != memory.KindExecution {
			t.Errorf("Kind = %q, want execution", recs[0].Kind)
		}
	})

	t.Run("concurrent saves are stamped in insertion order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Save(ctx, "a1", memory.Record{Tool: fmt.Sprintf("t%d", i)}); err != nil {
					t.Errorf("Save: %v", err)
				}
			}()
		}
		wg.Wait()

		recs, err := s.Get(ctx, "a1", 0)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(recs) != 16 {
			t.Fatalf("Get = %d records, want 16", len(recs))
		}
		for i := 1; i < len(recs); i++ {
			if recs[i].Timestamp.Before(recs[i-1].Timestamp) {
				t.Fatalf("timestamps decrease at %d: %v then %v", i, recs[i-1].Timestamp, recs[i].Timestamp)
			}
		}
	})

	t.Run("stamp never precedes the last record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ahead := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
		if err := s.Save(ctx, "a1", memory.Record{Tool: "first", Timestamp: ahead}); err != nil {
			t.Fatal(err)
		}
		if err := s.Save(ctx, "a1", memory.Record{Tool: "second"}); err != nil {
			t.Fatal(err)
		}
		recs, _ := s.Get(ctx, "a1", 0)
		if len(recs) != 2 || recs[1].Timestamp.Before(recs[0].Timestamp) {
			t.Errorf("records = %+v, want second stamped no earlier than first", recs)
		}
	})

	t.Run("empty agent id rejected", func(t *testing.T) {
		s := newStore(t)
		if err := s.Save(context.Background(), "", Record("echo", 1)); err == nil {
			t.Fatal("expected error for empty agent id")
		}
	})

	t.Run("limit returns newest in order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 1; i <= 5; i++ {
			if err := s.Save(ctx, "a1", Record("echo", i)); err != nil {
				t.Fatalf("Save %d: %v", i, err)
			}
		}

		recs, err := s.Get(ctx, "a1", 3)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(recs) != 3 {
			t.Fatalf("Get(3) = %d records", len(recs))
		}
		for i, want := range []string{"result-3", "result-4", "result-5"} {
			if recs[i].Result != want {
				t.Errorf("recs[%d].Result = %v, want %s", i, recs[i].Result, want)
			}
		}

		all, _ := s.Get(ctx, "a1", 0)
		if len(all) != 5 {
			t.Errorf("Get(0) = %d records, want 5", len(all))
		}
		over, _ := s.Get(ctx, "a1", 50)
		if len(over) != 5 {
			t.Errorf("Get(50) = %d records, want 5", len(over))
		}
	})

	t.Run("agents are isolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.Save(ctx, "b", Record("echo", 1))
		_ = s.Save(ctx, "a", Record("echo", 2))
		_ = s.Save(ctx, "a", Record("echo", 3))

		ids, err := s.Agents(ctx)
		if err != nil {
			t.Fatalf("Agents: %v", err)
		}
		if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
			t.Errorf("Agents = %v, want [a b]", ids)
		}
		recs, _ := s.Get(ctx, "b", 0)
		if len(recs) != 1 {
			t.Errorf("agent b has %d records, want 1", len(recs))
		}
	})

	t.Run("failure records round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := memory.Record{
			Tool:  "transfer_sol",
			Error: &memory.ErrorInfo{Code: "TIMEOUT", Message: "exceeded 30s"},
		}
		if err := s.Save(ctx, "a1", rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
		recs, _ := s.Get(ctx, "a1", 1)
		if len(recs) != 1 || !recs[0].Failed() || recs[0].Error.Code != "TIMEOUT" {
			t.Errorf("unexpected record: %+v", recs)
		}
	})

	t.Run("concurrent saves are all kept", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const n = 25
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Save(ctx, "shared", Record("echo", i)); err != nil {
					t.Errorf("Save %d: %v", i, err)
				}
			}()
		}
		wg.Wait()

		recs, _ := s.Get(ctx, "shared", 0)
		if len(recs) != n {
			t.Errorf("got %d records, want %d", len(recs), n)
		}
	})

	t.Run("compact keeps newest", func(t *testing.T) {
		s := newStore(t)
		c, ok := s.(memory.Compactor)
		if !ok {
			t.Skip("store does not support compaction")
		}
		ctx := context.Background()
		for i := 1; i <= 4; i++ {
			_ = s.Save(ctx, "a1", Record("echo", i))
		}
		_ = s.Save(ctx, "a2", Record("echo", 9))

		dropped, err := c.Compact(ctx, 2)
		if err != nil {
			t.Fatalf("Compact: %v", err)
		}
		if dropped != 2 {
			t.Errorf("dropped = %d, want 2", dropped)
		}
		recs, _ := s.Get(ctx, "a1", 0)
		if len(recs) != 2 || recs[0].Result != "result-3" {
			t.Errorf("after compaction: %+v", recs)
		}
		other, _ := s.Get(ctx, "a2", 0)
		if len(other) != 1 {
			t.Errorf("a2 should be untouched, got %d records", len(other))
		}
	})
}
