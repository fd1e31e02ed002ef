package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flemzord/chaingate/internal/memory"
	"github.com/flemzord/chaingate/internal/tool"
	"github.com/flemzord/chaingate/internal/tool/tooltest"
)

func newTestPool(t *testing.T, maxAgents int) (*Pool, *memory.InMemoryStore) {
	t.Helper()
	reg := tool.NewRegistry()
	reg.MustRegister(tooltest.Echo())
	store := memory.NewInMemoryStore()
	p, err := NewPool(Options{Registry: reg, Store: store, Config: DefaultConfig()}, maxAgents)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return p, store
}

func TestPool_GetIsLazyAndStable(t *testing.T) {
	t.Parallel()

	p, _ := newTestPool(t, 0)
	if p.Len() != 0 {
		t.Fatalf("Len = %d, want 0", p.Len())
	}

	a, err := p.Get(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := p.Get(context.Background(), "alice")
	if a != again {
		t.Error("Get must return the same runtime for an agent")
	}
	if a.Status() != StatusReady {
		t.Errorf("status = %s, want ready", a.Status())
	}

	def, err := p.Get(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if def.ID() != DefaultAgentID {
		t.Errorf("empty id resolved to %q", def.ID())
	}
	if got := p.IDs(); len(got) != 2 || got[0] != "alice" || got[1] != "default" {
		t.Errorf("IDs = %v", got)
	}
}

func TestPool_MaxAgents(t *testing.T) {
	t.Parallel()

	p, _ := newTestPool(t, 1)
	if _, err := p.Get(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Get(context.Background(), "b"); !errors.Is(err, ErrPoolFull) {
		t.Errorf("err = %v, want ErrPoolFull", err)
	}
}

func TestPool_SweepIdle(t *testing.T) {
	t.Parallel()

	p, store := newTestPool(t, 0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	stale, _ := p.Get(context.Background(), "stale")
	now = now.Add(10 * time.Minute)
	fresh, _ := p.Get(context.Background(), "fresh")

	if n := p.SweepIdle(context.Background(), 5*time.Minute); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, ok := p.Lookup("stale"); ok {
		t.Error("stale runtime still pooled")
	}
	if _, ok := p.Lookup("fresh"); !ok {
		t.Error("fresh runtime evicted")
	}
	if stale.Status() != StatusTerminated || fresh.Status() != StatusReady {
		t.Errorf("statuses = %s, %s", stale.Status(), fresh.Status())
	}

	recs, _ := store.Get(context.Background(), "stale", 0)
	if len(recs) != 1 || recs[0].Kind != memory.KindShutdown {
		t.Errorf("stale records = %+v, want one shutdown record", recs)
	}
}

func TestPool_GetKeepsRuntimeAlive(t *testing.T) {
	t.Parallel()

	p, _ := newTestPool(t, 0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	first, _ := p.Get(context.Background(), "alice")
	now = now.Add(10 * time.Minute)
	again, err := p.Get(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Fatal("Get returned a new runtime")
	}
	if got := again.Stats().LastActivity; !got.Equal(now) {
		t.Errorf("LastActivity = %v, want %v", got, now)
	}

	if n := p.SweepIdle(context.Background(), 5*time.Minute); n != 0 {
		t.Fatalf("swept %d, want 0", n)
	}
	if again.Status() != StatusReady {
		t.Errorf("status = %s, want ready", again.Status())
	}
	if _, err := again.Execute(context.Background(), "echo", map[string]any{"message": "hi"}); err != nil {
		t.Errorf("Execute after Get: %v", err)
	}
}

func TestPool_SweepSkipsExecuting(t *testing.T) {
	t.Parallel()

	p, _ := newTestPool(t, 0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	rt, _ := p.Get(context.Background(), "busy")
	if err := rt.acquire(); err != nil {
		t.Fatal(err)
	}
	defer rt.release(false)

	now = now.Add(time.Hour)
	if n := p.SweepIdle(context.Background(), time.Minute); n != 0 {
		t.Errorf("swept %d executing runtimes", n)
	}
}

func TestPool_RemoveAndClose(t *testing.T) {
	t.Parallel()

	p, _ := newTestPool(t, 0)
	rt, _ := p.Get(context.Background(), "a")
	_, _ = p.Get(context.Background(), "b")

	removed, err := p.Remove(context.Background(), "a")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if rt.Status() != StatusTerminated {
		t.Errorf("status = %s, want terminated", rt.Status())
	}
	if removed, _ := p.Remove(context.Background(), "a"); removed {
		t.Error("second Remove reported a runtime")
	}

	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d after Close", p.Len())
	}
	if _, err := p.Get(context.Background(), "c"); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("err = %v, want ErrPoolClosed", err)
	}
}
