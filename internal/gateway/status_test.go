package gateway

import (
	"encoding/json"
	"net/http"
	"slices"
	"testing"
	"time"
)

func TestStatus_NotMountedWithoutAuth(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	for _, path := range []string{"/status", "/api/modules"} {
		code, _ := f.do(t, http.MethodGet, path, "", nil)
		if code != http.StatusNotFound && code != http.StatusMethodNotAllowed {
			t.Errorf("%s = %d, want 404 or 405 (not mounted)", path, code)
		}
	}
}

func TestStatus_RequiresAuth(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *Config) {
		c.Auth = AuthConfig{BearerToken: "test-token"}
	})

	code, body := f.do(t, http.MethodGet, "/status", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("no-auth status = %d, want 401", code)
	}
	if te := decodeError(t, body); te.Code != "UNAUTHORIZED" {
		t.Errorf("code = %s", te.Code)
	}

	code, _ = f.do(t, http.MethodGet, "/status", "", bearer("test-token"))
	if code != http.StatusOK {
		t.Errorf("auth status = %d, want 200", code)
	}
}

func TestStatus_ReturnsMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *Config) {
		c.Auth = AuthConfig{BearerToken: "test-token"}
	})
	f.gw.startedAt = time.Now().Add(-5 * time.Minute)

	f.do(t, http.MethodPost, "/mcp", `{"agent_id":"a1","tool":"echo","params":{"message":"x"}}`, nil)
	f.do(t, http.MethodPost, "/mcp", `{"agent_id":"a2","tool":"echo","params":{}}`, nil)
	_, cancel := f.gw.events.Subscribe(1)
	defer cancel()

	code, body := f.do(t, http.MethodGet, "/status", "", bearer("test-token"))
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Uptime < 5*time.Minute {
		t.Errorf("uptime = %v, want >= 5m", resp.Uptime)
	}
	if resp.Metrics.Calls != 2 || resp.Metrics.Failures != 1 {
		t.Errorf("metrics = %+v, want 2 calls, 1 failure", resp.Metrics)
	}
	if !slices.Equal(resp.Agents, []string{"a1", "a2"}) {
		t.Errorf("agents = %v", resp.Agents)
	}
	if len(resp.Tools) != 5 {
		t.Errorf("tools = %v", resp.Tools)
	}
	if resp.Subscribers != 1 {
		t.Errorf("subscribers = %d, want 1", resp.Subscribers)
	}
}
