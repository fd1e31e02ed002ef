package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/flemzord/chaingate/internal/tool"
)

func TestTracingConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     TracingConfig
		wantErr bool
	}{
		{name: "zero value", cfg: TracingConfig{}},
		{name: "otlp", cfg: TracingConfig{Exporter: ExporterOTLP, SampleRatio: 0.5}},
		{name: "unknown exporter", cfg: TracingConfig{Exporter: "jaeger"}, wantErr: true},
		{name: "negative ratio", cfg: TracingConfig{SampleRatio: -0.1}, wantErr: true},
		{name: "ratio above one", cfg: TracingConfig{SampleRatio: 1.5}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := (TracingConfig{Exporter: "jaeger"}).Validate(); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("error = %v, want ErrUnknownExporter", err)
	}
}

func TestSetupTracing_None(t *testing.T) {
	t.Parallel()

	shutdown, err := SetupTracing(context.Background(), TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNewProvider_RecordsSpans(t *testing.T) {
	t.Parallel()

	res, err := newResource(context.Background(), "", "1.2.3")
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	exp := tracetest.NewInMemoryExporter()
	tp := newProvider(res, exp, 1)

	_, span := tp.Tracer("test").Start(context.Background(), "agent.execute")
	span.End()
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "agent.execute" {
		t.Fatalf("spans = %+v, want one agent.execute span", spans)
	}
	var name string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			name = kv.Value.AsString()
		}
	}
	if name != DefaultServiceName {
		t.Errorf("service.name = %q, want %q", name, DefaultServiceName)
	}
	_ = tp.Shutdown(context.Background())
}

func TestMetrics_ObserveExecution(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveExecution("echo", "", 10*time.Millisecond)
	m.ObserveExecution("echo", "", 20*time.Millisecond)
	m.ObserveExecution("transfer_sol", tool.CodeSimulationFailed, time.Millisecond)

	if got := testutil.ToFloat64(m.executions.WithLabelValues("echo", CodeOK)); got != 2 {
		t.Errorf("echo OK = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.executions.WithLabelValues("transfer_sol", "SIMULATION_FAILED")); got != 1 {
		t.Errorf("transfer_sol SIMULATION_FAILED = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveExecution("echo", "", time.Millisecond)
	m.ObserveRequest("/mcp", http.StatusNotFound)
	if err := m.RegisterGauge("agents_live", "Live agent runtimes.", func() float64 { return 3 }); err != nil {
		t.Fatalf("RegisterGauge: %v", err)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`chaingate_tool_executions_total{code="OK",tool="echo"} 1`,
		`chaingate_http_requests_total{route="/mcp",status="404"} 1`,
		`chaingate_agents_live 3`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_RegisterGaugeTwice(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	fn := func() float64 { return 0 }
	if err := m.RegisterGauge("agents_live", "Live agent runtimes.", fn); err != nil {
		t.Fatalf("first RegisterGauge: %v", err)
	}
	if err := m.RegisterGauge("agents_live", "Live agent runtimes.", fn); err == nil {
		t.Error("second RegisterGauge should fail")
	}
}
