package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/flemzord/chaingate/internal/config"
	"github.com/flemzord/chaingate/internal/core"
	"github.com/flemzord/chaingate/internal/security"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chaingate.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `version: "1"
modules:
  memory.file: {}
  agent.runtime:
    timeout: 5s
`

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOpenAudit_Disabled(t *testing.T) {
	t.Parallel()

	audit, f, err := openAudit(nil, t.TempDir(), security.NewRedactor())
	if err != nil {
		t.Fatalf("openAudit: %v", err)
	}
	if f != nil {
		t.Error("disabled audit opened a file")
	}
	audit.Log(security.AuditEvent{Type: security.EventToolCall})
	if audit.WriteErrors() != 0 {
		t.Error("disabled audit counted write errors")
	}
}

func TestOpenAudit_DefaultPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sec := &config.SecurityConfig{Audit: config.AuditConfig{Enabled: true}}
	audit, f, err := openAudit(sec, dir, security.NewRedactor())
	if err != nil {
		t.Fatalf("openAudit: %v", err)
	}
	audit.Log(security.AuditEvent{Type: security.EventToolCall, ToolName: "echo"})
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	var ev security.AuditEvent
	if err := json.Unmarshal(bytes.TrimSpace(data), &ev); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	if ev.Type != security.EventToolCall || ev.ToolName != "echo" {
		t.Errorf("event = %+v", ev)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "version: \"2\"\nmodules:\n  memory.file: {}\n")
	if _, err := Load(RunParams{ConfigPath: path, DataDir: t.TempDir()}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_BadLogLevelOverride(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, minimalConfig)
	_, err := Load(RunParams{ConfigPath: path, DataDir: t.TempDir(), LogLevel: "loud"})
	if err == nil || !strings.Contains(err.Error(), "loud") {
		t.Fatalf("err = %v, want unknown level", err)
	}
}

func TestLoad_RegistersServicesAndTools(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, minimalConfig+`security:
  rate_limits:
    tool_calls_per_min: 10
`)
	var logs bytes.Buffer
	in, err := Load(RunParams{
		ConfigPath: path,
		DataDir:    t.TempDir(),
		Version:    "1.2.3",
		LogOutput:  &logs,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(in.Stop)

	want := []string{"memory.file", "agent.runtime"}
	if !slices.Equal(in.ModuleIDs, want) {
		t.Errorf("ModuleIDs = %v, want %v", in.ModuleIDs, want)
	}
	if v, _ := core.ServiceAs[string](in.Context, "app.version"); v != "1.2.3" {
		t.Errorf("app.version = %q", v)
	}
	if _, ok := core.ServiceAs[*security.RateLimiter](in.Context, "security.ratelimiter"); !ok {
		t.Error("rate limiter not registered")
	}
	if !slices.Contains(in.scheduler.Jobs(), "ratelimit_prune") {
		t.Errorf("jobs = %v, want ratelimit_prune", in.scheduler.Jobs())
	}

	tools, err := in.Tools()
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	found := false
	for _, ti := range tools {
		if ti.Name == "echo" {
			found = true
		}
	}
	if !found {
		t.Errorf("echo missing from %+v", tools)
	}
	if !strings.Contains(logs.String(), "agent runtime provisioned") {
		t.Errorf("log output = %q", logs.String())
	}
}

func TestLoad_NoRateLimiterByDefault(t *testing.T) {
	t.Parallel()

	in, err := Load(RunParams{ConfigPath: writeConfig(t, minimalConfig), DataDir: t.TempDir(), LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(in.Stop)

	if _, ok := in.Context.Service("security.ratelimiter"); ok {
		t.Error("rate limiter registered without limits")
	}
}

func TestInstance_StartStop(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	in, err := Load(RunParams{ConfigPath: writeConfig(t, minimalConfig), DataDir: dataDir, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := in.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !in.started {
		t.Error("instance not marked started")
	}
	in.Stop()
	if in.started {
		t.Error("instance still marked started")
	}
	// A second Stop is harmless.
	in.Stop()
}

func TestRun_InvalidConfigPath(t *testing.T) {
	t.Parallel()

	if err := Run(t.Context(), RunParams{ConfigPath: "/nonexistent/config.yaml"}); err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestRun_InvalidConfigContent(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "not: valid: yaml: [")
	if err := Run(t.Context(), RunParams{ConfigPath: path}); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
