package gateway

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/flemzord/chaingate/internal/agent"
	"github.com/flemzord/chaingate/internal/tool"
)

func dialEvents(t *testing.T, f *fixture, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/events" + query
	conn, _, err := websocket.Dial(t.Context(), url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })

	// Wait until the subscription exists so no event is missed.
	deadline := time.Now().Add(2 * time.Second)
	for f.gw.events.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) agent.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	var ev agent.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestEvents_StreamsExecutions(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	conn := dialEvents(t, f, "")

	f.do(t, http.MethodPost, "/mcp", `{"agent_id":"a1","tool":"echo","params":{"message":"x"}}`, nil)
	f.do(t, http.MethodPost, "/mcp", `{"agent_id":"a1","tool":"admin_only"}`, nil)

	ev := readEvent(t, conn)
	if ev.Type != agent.EventExecutionCompleted || ev.AgentID != "a1" || ev.Tool != "echo" {
		t.Errorf("first event = %+v", ev)
	}
	ev = readEvent(t, conn)
	if ev.Type != agent.EventExecutionFailed || ev.Code != tool.CodePermissionDenied {
		t.Errorf("second event = %+v", ev)
	}
}

func TestEvents_FilterByAgent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	conn := dialEvents(t, f, "?agent_id=wanted")

	f.do(t, http.MethodPost, "/mcp", `{"agent_id":"other","tool":"spy"}`, nil)
	f.do(t, http.MethodPost, "/mcp", `{"agent_id":"wanted","tool":"spy"}`, nil)

	if ev := readEvent(t, conn); ev.AgentID != "wanted" {
		t.Errorf("event = %+v, want agent wanted", ev)
	}
}

func TestEvents_ClosedOnShutdown(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	conn := dialEvents(t, f, "")

	close(f.gw.done)

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Errorf("read error = %v, want going away close", err)
	}
}
