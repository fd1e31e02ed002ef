package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/chaingate/internal/memory"
	"github.com/flemzord/chaingate/internal/memory/memorytest"
	"github.com/flemzord/chaingate/internal/tool"
	"github.com/flemzord/chaingate/internal/tool/tooltest"
)

type recorderCall struct {
	tool string
	code tool.Code
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recorderCall
}

func (f *fakeRecorder) ObserveExecution(toolName string, code tool.Code, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recorderCall{toolName, code})
}

func (f *fakeRecorder) snapshot() []recorderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorderCall(nil), f.calls...)
}

func newTestRuntime(t *testing.T, cfg Config, descs ...tool.Descriptor) (*Runtime, *memory.InMemoryStore) {
	t.Helper()
	store := memory.NewInMemoryStore()
	return newRuntimeWithStore(t, cfg, store, descs...), store
}

func newRuntimeWithStore(t *testing.T, cfg Config, store memory.Store, descs ...tool.Descriptor) *Runtime {
	t.Helper()
	reg := tool.NewRegistry()
	for _, d := range descs {
		reg.MustRegister(d)
	}
	reg.Close()

	rt, err := NewRuntime("agent-1", Options{Registry: reg, Store: store, Config: cfg})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	if err := rt.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return rt
}

func records(t *testing.T, store memory.Store) []memory.Record {
	t.Helper()
	recs, err := store.Get(context.Background(), "agent-1", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return recs
}

func wantCode(t *testing.T, err error, code tool.Code) *tool.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil error", code)
	}
	var te *tool.Error
	if !errors.As(err, &te) {
		t.Fatalf("error %v is not a *tool.Error", err)
	}
	if te.Code != code {
		t.Fatalf("code = %s, want %s (%v)", te.Code, code, err)
	}
	return te
}

func TestNewRuntime_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryStore()
	reg := tool.NewRegistry()

	tests := []struct {
		name string
		id   string
		opts Options
		want error
	}{
		{"empty id", "", Options{Registry: reg, Store: store}, ErrEmptyAgentID},
		{"no registry", "a", Options{Store: store}, ErrNoRegistry},
		{"no store", "a", Options{Registry: reg}, ErrNoStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewRuntime(tt.id, tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRuntime_StartsInitializing(t *testing.T) {
	t.Parallel()

	rt, err := NewRuntime("a", Options{Registry: tool.NewRegistry(), Store: memory.NewInMemoryStore()})
	if err != nil {
		t.Fatal(err)
	}
	if rt.Status() != StatusInitializing {
		t.Fatalf("status = %s, want initializing", rt.Status())
	}
	_, err = rt.Execute(context.Background(), "echo", nil)
	wantCode(t, err, tool.CodeAgentNotReady)

	if err := rt.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rt.Status() != StatusReady {
		t.Fatalf("status = %s, want ready", rt.Status())
	}
}

func TestExecute_Echo(t *testing.T) {
	t.Parallel()

	rt, store := newTestRuntime(t, DefaultConfig(), tooltest.Echo())

	res, err := rt.Execute(context.Background(), "echo", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got, ok := res.(map[string]any)
	if !ok || got["echoed"] != "hi" {
		t.Fatalf("result = %#v, want echoed=hi", res)
	}

	recs := records(t, store)
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Tool != "echo" || rec.Failed() || rec.Kind != memory.KindExecution {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.DurationMS < 0 {
		t.Errorf("DurationMS = %d, want >= 0", rec.DurationMS)
	}
	if rec.Timestamp.IsZero() {
		t.Error("record timestamp not set")
	}

	if rt.Context()["last_message"] != "hi" {
		t.Errorf("context = %v, want last_message=hi", rt.Context())
	}
	stats := rt.Stats()
	if stats.ToolsExecuted != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if rt.Status() != StatusReady {
		t.Errorf("status = %s, want ready", rt.Status())
	}
}

func TestExecute_UnknownToolWritesNothing(t *testing.T) {
	t.Parallel()

	rt, store := newTestRuntime(t, DefaultConfig())

	_, err := rt.Execute(context.Background(), "ghost", map[string]any{})
	wantCode(t, err, tool.CodeToolNotFound)

	if n := len(records(t, store)); n != 0 {
		t.Errorf("records = %d, want 0", n)
	}
	if rt.Status() != StatusReady {
		t.Errorf("status = %s, want ready", rt.Status())
	}
	if rt.Stats().Errors != 0 {
		t.Error("a lookup miss must not count as an execution error")
	}
}

func TestExecute_ValidationNeverInvokesAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		record      bool
		wantRecords int
	}{
		{"not recorded by default", false, 0},
		{"recorded when configured", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spy := &tooltest.Spy{}
			cfg := DefaultConfig()
			cfg.RecordValidationFailures = tt.record
			rt, store := newTestRuntime(t, cfg, spy.Descriptor("spy", tooltest.EchoSchema))

			_, err := rt.Execute(context.Background(), "spy", map[string]any{"message": 42})
			te := wantCode(t, err, tool.CodeValidation)
			if te.Fields["message"] == "" {
				t.Errorf("fields = %v, want detail for message", te.Fields)
			}

			if spy.Actions() != 0 {
				t.Errorf("action ran %d times on invalid params", spy.Actions())
			}
			if n := len(records(t, store)); n != tt.wantRecords {
				t.Errorf("records = %d, want %d", n, tt.wantRecords)
			}
			if rt.Stats().Errors != 1 {
				t.Errorf("errors = %d, want 1", rt.Stats().Errors)
			}
		})
	}
}

func TestExecute_LateValidationErrorIsRecorded(t *testing.T) {
	t.Parallel()

	badAddr := tool.Errorf(tool.CodeValidation, "invalid address from chain")
	tests := []struct {
		name       string
		spy        *tooltest.Spy
		wantAction int
	}{
		{"from action", &tooltest.Spy{ActionFunc: tooltest.Failing(badAddr)}, 1},
		{"from simulator", &tooltest.Spy{SimulateErr: badAddr}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Validation failures are not recorded by default, but this one
			// comes after the schema check passed.
			rt, store := newTestRuntime(t, DefaultConfig(), tt.spy.Descriptor("lookup", nil))

			_, err := rt.Execute(context.Background(), "lookup", map[string]any{"address": "0OIl"})
			wantCode(t, err, tool.CodeValidation)

			if got := tt.spy.Actions(); got != tt.wantAction {
				t.Errorf("actions = %d, want %d", got, tt.wantAction)
			}
			recs := records(t, store)
			if len(recs) != 1 {
				t.Fatalf("records = %d, want 1", len(recs))
			}
			if recs[0].Error == nil || recs[0].Error.Code != string(tool.CodeValidation) {
				t.Errorf("record = %+v, want VALIDATION_ERROR", recs[0])
			}
		})
	}
}

func TestExecute_NonPublicAlwaysDenied(t *testing.T) {
	t.Parallel()

	for _, perm := range []tool.Permission{tool.PermissionAuthenticated, tool.PermissionAdmin} {
		t.Run(string(perm), func(t *testing.T) {
			t.Parallel()

			spy := &tooltest.Spy{}
			rt, store := newTestRuntime(t, DefaultConfig(), spy.Descriptor("guarded", nil, perm))

			_, err := rt.Execute(context.Background(), "guarded", map[string]any{})
			wantCode(t, err, tool.CodePermissionDenied)

			if spy.Actions() != 0 {
				t.Error("action ran despite permission denial")
			}
			recs := records(t, store)
			if len(recs) != 1 || recs[0].Error == nil || recs[0].Error.Code != string(tool.CodePermissionDenied) {
				t.Errorf("records = %+v, want one PERMISSION_DENIED record", recs)
			}
		})
	}
}

func TestExecute_Simulation(t *testing.T) {
	t.Parallel()

	t.Run("failure blocks action", func(t *testing.T) {
		t.Parallel()

		spy := &tooltest.Spy{SimulateResult: &tool.SimulationResult{Success: false, Reason: "would overdraw"}}
		rt, store := newTestRuntime(t, DefaultConfig(), spy.Descriptor("sim", nil))

		_, err := rt.Execute(context.Background(), "sim", nil)
		te := wantCode(t, err, tool.CodeSimulationFailed)
		if te.Message != "would overdraw" {
			t.Errorf("message = %q", te.Message)
		}
		if spy.Actions() != 0 {
			t.Error("action ran after failed simulation")
		}
		if n := len(records(t, store)); n != 1 {
			t.Errorf("records = %d, want 1", n)
		}
	})

	t.Run("success proceeds", func(t *testing.T) {
		t.Parallel()

		spy := &tooltest.Spy{SimulateResult: &tool.SimulationResult{Success: true}}
		rt, _ := newTestRuntime(t, DefaultConfig(), spy.Descriptor("sim", nil))

		if _, err := rt.Execute(context.Background(), "sim", nil); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if spy.Simulations() != 1 || spy.Actions() != 1 {
			t.Errorf("simulations = %d, actions = %d", spy.Simulations(), spy.Actions())
		}
	})

	t.Run("simulator error", func(t *testing.T) {
		t.Parallel()

		spy := &tooltest.Spy{SimulateErr: errors.New("node unreachable")}
		rt, _ := newTestRuntime(t, DefaultConfig(), spy.Descriptor("sim", nil))

		_, err := rt.Execute(context.Background(), "sim", nil)
		wantCode(t, err, tool.CodeSimulationFailed)
	})

	t.Run("skipped when disabled", func(t *testing.T) {
		t.Parallel()

		spy := &tooltest.Spy{SimulateResult: &tool.SimulationResult{Success: false}}
		cfg := DefaultConfig()
		cfg.SimulateFirst = false
		rt, _ := newTestRuntime(t, cfg, spy.Descriptor("sim", nil))

		if _, err := rt.Execute(context.Background(), "sim", nil); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if spy.Simulations() != 0 {
			t.Error("simulator ran with SimulateFirst disabled")
		}
	})
}

func TestExecute_Timeout(t *testing.T) {
	t.Parallel()

	slow, cancelled := tooltest.Slow(10 * time.Second)
	var calls atomic.Int32
	spy := &tooltest.Spy{ActionFunc: func(ctx context.Context, p tool.Params, ec tool.Context) (any, error) {
		if calls.Add(1) == 1 {
			return slow(ctx, p, ec)
		}
		return "fast", nil
	}}
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	rt, store := newTestRuntime(t, cfg, spy.Descriptor("slow", nil))

	start := time.Now()
	_, err := rt.Execute(context.Background(), "slow", nil)
	elapsed := time.Since(start)

	wantCode(t, err, tool.CodeTimeout)
	if elapsed > 2*time.Second {
		t.Errorf("timeout took %v, want about %v", elapsed, cfg.Timeout)
	}

	select {
	case err := <-cancelled:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("action saw %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("action context was not cancelled")
	}

	if rt.Status() != StatusReady {
		t.Errorf("status = %s, want ready after timeout", rt.Status())
	}
	recs := records(t, store)
	if len(recs) != 1 || recs[0].Error.Code != string(tool.CodeTimeout) {
		t.Errorf("records = %+v, want one TIMEOUT record", recs)
	}

	// The agent keeps serving after a timeout.
	res, err := rt.Execute(context.Background(), "slow", nil)
	if err != nil || res != "fast" {
		t.Fatalf("follow-up Execute = %v, %v; want fast", res, err)
	}
	recs = records(t, store)
	if len(recs) != 2 || recs[1].Failed() {
		t.Errorf("records = %+v, want TIMEOUT then success", recs)
	}
}

func TestExecute_ActionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action tool.Action
		want   tool.Code
	}{
		{"plain error", tooltest.Failing(errors.New("boom")), tool.CodeExecution},
		{"typed error", tooltest.Failing(tool.Errorf(tool.CodeInsufficientFunds, "need more")), tool.CodeInsufficientFunds},
		{"panic", func(context.Context, tool.Params, tool.Context) (any, error) { panic("kaboom") }, tool.CodeExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spy := &tooltest.Spy{ActionFunc: tt.action}
			rt, store := newTestRuntime(t, DefaultConfig(), spy.Descriptor("bad", nil))

			_, err := rt.Execute(context.Background(), "bad", nil)
			wantCode(t, err, tt.want)

			if rt.Status() != StatusReady {
				t.Errorf("status = %s, want ready", rt.Status())
			}
			if n := len(records(t, store)); n != 1 {
				t.Errorf("records = %d, want 1", n)
			}
			if rt.Stats().Errors != 1 || rt.Stats().ToolsExecuted != 0 {
				t.Errorf("stats = %+v", rt.Stats())
			}
		})
	}
}

func TestExecute_OverlappingCallIsRejected(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	spy := &tooltest.Spy{ActionFunc: func(context.Context, tool.Params, tool.Context) (any, error) {
		close(started)
		<-release
		return "ok", nil
	}}
	rt, _ := newTestRuntime(t, DefaultConfig(), spy.Descriptor("block", nil))

	done := make(chan error, 1)
	go func() {
		_, err := rt.Execute(context.Background(), "block", nil)
		done <- err
	}()
	<-started

	if rt.Status() != StatusExecuting {
		t.Errorf("status = %s, want executing", rt.Status())
	}
	_, err := rt.Execute(context.Background(), "block", nil)
	wantCode(t, err, tool.CodeAgentNotReady)

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first call: %v", err)
	}
	if spy.Actions() != 1 {
		t.Errorf("actions = %d, want 1", spy.Actions())
	}
}

func TestLoadMemory_NewestInOrder(t *testing.T) {
	t.Parallel()

	rt, _ := newTestRuntime(t, DefaultConfig(), tooltest.Echo())
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		if _, err := rt.Execute(context.Background(), "echo", map[string]any{"message": msg}); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := rt.LoadMemory(context.Background(), 3)
	if err != nil {
		t.Fatalf("LoadMemory: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	for i, want := range []string{"c", "d", "e"} {
		if recs[i].Params["message"] != want {
			t.Errorf("recs[%d].message = %v, want %s", i, recs[i].Params["message"], want)
		}
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Timestamp.Before(recs[i-1].Timestamp) {
			t.Errorf("timestamps decrease at %d", i)
		}
	}

	all, err := rt.LoadMemory(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("LoadMemory(0) = %d records, want all 5 under the default cap", len(all))
	}
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	rt, store := newTestRuntime(t, DefaultConfig(), tooltest.Echo())
	if _, err := rt.Execute(context.Background(), "echo", map[string]any{"message": "x"}); err != nil {
		t.Fatal(err)
	}

	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if rt.Status() != StatusTerminated {
		t.Errorf("status = %s, want terminated", rt.Status())
	}

	recs := records(t, store)
	if len(recs) != 2 {
		t.Fatalf("records = %d, want execution + one shutdown", len(recs))
	}
	last := recs[1]
	if last.Kind != memory.KindShutdown {
		t.Errorf("kind = %s, want shutdown", last.Kind)
	}
	stats, ok := last.Result.(map[string]any)
	if !ok || stats["tools_executed"] != int64(1) {
		t.Errorf("shutdown stats = %#v", last.Result)
	}

	_, err := rt.Execute(context.Background(), "echo", map[string]any{"message": "y"})
	wantCode(t, err, tool.CodeAgentNotReady)
}

func TestExecute_EventsAndMetrics(t *testing.T) {
	t.Parallel()

	events := NewBroadcaster()
	ch, cancel := events.Subscribe(8)
	defer cancel()
	rec := &fakeRecorder{}

	reg := tool.NewRegistry()
	reg.MustRegister(tooltest.Echo())
	rt, err := NewRuntime("agent-1", Options{
		Registry: reg,
		Store:    memory.NewInMemoryStore(),
		Config:   DefaultConfig(),
		Events:   events,
		Metrics:  rec,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := rt.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := rt.Execute(context.Background(), "echo", map[string]any{"message": "hi"}); err != nil {
		t.Fatal(err)
	}
	_, _ = rt.Execute(context.Background(), "echo", map[string]any{})

	first, second := <-ch, <-ch
	if first.Type != EventExecutionCompleted || first.Tool != "echo" || first.AgentID != "agent-1" {
		t.Errorf("first event = %+v", first)
	}
	if second.Type != EventExecutionFailed || second.Code != tool.CodeValidation {
		t.Errorf("second event = %+v", second)
	}

	calls := rec.snapshot()
	if len(calls) != 2 || calls[0].code != "" || calls[1].code != tool.CodeValidation {
		t.Errorf("recorder calls = %+v", calls)
	}
}

func TestExecute_StoreFailureKeepsResult(t *testing.T) {
	t.Parallel()

	store := memorytest.NewFailingStore(errors.New("disk full"))
	rt := newRuntimeWithStore(t, DefaultConfig(), store, tooltest.Echo())

	res, err := rt.Execute(context.Background(), "echo", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res == nil {
		t.Error("result dropped on store failure")
	}
	if store.SaveCalls() != 1 {
		t.Errorf("save calls = %d, want 1", store.SaveCalls())
	}
}

func TestExecute_CancelledCallerStillRecords(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	spy := &tooltest.Spy{ActionFunc: func(context.Context, tool.Params, tool.Context) (any, error) {
		cancel()
		return "done", nil
	}}
	rt, store := newTestRuntime(t, DefaultConfig(), spy.Descriptor("cancel", nil))

	_, _ = rt.Execute(ctx, "cancel", nil)
	if n := len(records(t, store)); n != 1 {
		t.Errorf("records = %d, want 1", n)
	}
}
