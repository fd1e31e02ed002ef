package agent

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/chaingate/internal/memory"
	"github.com/flemzord/chaingate/internal/security"
	"github.com/flemzord/chaingate/internal/tool"
)

const tracerName = "github.com/flemzord/chaingate/internal/agent"

// run executes one resolved tool through the gated pipeline and records
// the outcome. It does not touch the runtime status, so the batch executor
// can call it from several goroutines under a single acquire.
func (r *Runtime) run(ctx context.Context, d *tool.Descriptor, raw map[string]any) (any, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "agent.execute",
		trace.WithAttributes(
			attribute.String("agent.id", r.id),
			attribute.String("tool.name", d.Name),
		),
	)
	defer span.End()

	r.auditf(security.EventToolCall, d.Name, "")
	start := time.Now()

	result, params, st, err := r.dispatch(ctx, d, raw)
	elapsed := time.Since(start)

	if err != nil {
		te := tool.AsError(err)
		span.RecordError(te)
		span.SetStatus(codes.Error, string(te.Code))
		r.fail(ctx, d, raw, st, te, elapsed)
		return nil, te
	}

	span.SetStatus(codes.Ok, "")
	r.succeed(ctx, d, params, result, elapsed)
	return result, nil
}

// stage names the pipeline step a call stopped at.
type stage int

const (
	stagePermission stage = iota
	stageSchema
	stageSimulate
	stageAction
)

// dispatch performs the gated steps and returns the validated params along
// with the action result and the last stage reached.
func (r *Runtime) dispatch(ctx context.Context, d *tool.Descriptor, raw map[string]any) (any, tool.Params, stage, error) {
	if !d.Public() {
		return nil, nil, stagePermission, tool.Errorf(tool.CodePermissionDenied,
			"tool %s requires %s", d.Name, joinPermissions(d.Permissions))
	}

	params, err := d.Validate(raw)
	if err != nil {
		return nil, nil, stageSchema, err
	}

	execCtx := tool.Context(r.Context())

	if r.cfg.SimulateFirst && d.Simulate != nil {
		if err := r.simulate(ctx, d, params, execCtx); err != nil {
			return nil, params, stageSimulate, err
		}
	}

	result, err := r.invoke(ctx, d, params, execCtx)
	return result, params, stageAction, err
}

func (r *Runtime) simulate(ctx context.Context, d *tool.Descriptor, params tool.Params, execCtx tool.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "agent.simulate")
	defer span.End()

	sim, err := d.Simulate(ctx, params, execCtx)
	if err != nil {
		var te *tool.Error
		if errors.As(err, &te) {
			return te
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return tool.Errorf(tool.CodeTimeout, "simulation of %s exceeded %s", d.Name, r.cfg.Timeout)
		}
		return &tool.Error{Code: tool.CodeSimulationFailed, Message: err.Error(), Err: err}
	}
	if !sim.Success {
		reason := sim.Reason
		if reason == "" {
			reason = "simulation reported failure"
		}
		return tool.Errorf(tool.CodeSimulationFailed, "%s", reason)
	}
	return nil
}

type reply struct {
	result any
	err    error
}

// invoke runs the action against a deadline. When the deadline fires first
// the action's context is cancelled and whatever it returns later is
// discarded. Panics are recovered and reported as execution errors.
func (r *Runtime) invoke(ctx context.Context, d *tool.Descriptor, params tool.Params, execCtx tool.Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	done := make(chan reply, 1)
	go func() {
		var rep reply
		defer func() {
			if p := recover(); p != nil {
				rep = reply{err: tool.Errorf(tool.CodeExecution, "tool %s panicked: %v", d.Name, p)}
			}
			done <- rep
		}()
		rep.result, rep.err = d.Action(ctx, params, execCtx)
	}()

	select {
	case rep := <-done:
		if rep.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, r.timeoutError(d.Name)
		}
		return rep.result, rep.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, r.timeoutError(d.Name)
		}
		return nil, tool.Wrap(tool.CodeExecution, ctx.Err())
	}
}

func (r *Runtime) timeoutError(name string) *tool.Error {
	return &tool.Error{
		Code:    tool.CodeTimeout,
		Message: fmt.Sprintf("tool %s exceeded %s", name, r.cfg.Timeout),
		Err:     context.DeadlineExceeded,
	}
}

func (r *Runtime) succeed(ctx context.Context, d *tool.Descriptor, params tool.Params, result any, elapsed time.Duration) {
	r.save(ctx, memory.Record{
		Kind:       memory.KindExecution,
		Tool:       d.Name,
		Params:     params,
		Result:     result,
		DurationMS: elapsed.Milliseconds(),
	})

	var patch map[string]any
	if d.UpdateContext != nil {
		patch = d.UpdateContext(result, params)
	}

	r.mu.Lock()
	r.stats.ToolsExecuted++
	r.stats.TotalExecutionTime += elapsed
	r.stats.LastActivity = r.now()
	maps.Copy(r.context, patch)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ObserveExecution(d.Name, "", elapsed)
	}
	r.events.Publish(Event{
		Type:       EventExecutionCompleted,
		AgentID:    r.id,
		Tool:       d.Name,
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  r.now().UTC(),
	})
	r.auditf(security.EventToolResult, d.Name, "ok")
	r.logger.Debug("tool executed", "tool", d.Name, "duration", elapsed)
}

func (r *Runtime) fail(ctx context.Context, d *tool.Descriptor, raw map[string]any, st stage, te *tool.Error, elapsed time.Duration) {
	// Only a schema rejection may go unrecorded. A VALIDATION_ERROR raised
	// by a simulator or action is an attempt like any other.
	if st != stageSchema || r.cfg.RecordValidationFailures {
		r.save(ctx, memory.Record{
			Kind:   memory.KindExecution,
			Tool:   d.Name,
			Params: raw,
			Error: &memory.ErrorInfo{
				Code:    string(te.Code),
				Message: te.Message,
				Fields:  te.Fields,
			},
			DurationMS: elapsed.Milliseconds(),
		})
	}

	r.mu.Lock()
	r.stats.Errors++
	r.stats.LastActivity = r.now()
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ObserveExecution(d.Name, te.Code, elapsed)
	}
	r.events.Publish(Event{
		Type:       EventExecutionFailed,
		AgentID:    r.id,
		Tool:       d.Name,
		Code:       te.Code,
		Message:    te.Message,
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  r.now().UTC(),
	})
	r.auditf(security.EventToolResult, d.Name, string(te.Code))
	r.logger.Warn("tool execution failed", "tool", d.Name, "code", te.Code, "error", te.Message)
}

// save appends rec even if the caller's context was cancelled after the
// action finished. A failed write is logged; the call's outcome stands.
// The store stamps the record when it appends it, so that insertion order
// and timestamps agree under concurrent saves.
func (r *Runtime) save(ctx context.Context, rec memory.Record) {
	if err := r.store.Save(context.WithoutCancel(ctx), r.id, rec); err != nil {
		r.logger.Error("memory record not saved", "tool", rec.Tool, "error", err)
	}
}

func (r *Runtime) auditf(kind security.EventType, toolName, detail string) {
	if r.audit == nil {
		return
	}
	r.audit.Log(security.AuditEvent{
		Type:     kind,
		AgentID:  r.id,
		ToolName: toolName,
		Detail:   detail,
	})
}

func joinPermissions(perms []tool.Permission) string {
	s := make([]string, len(perms))
	for i, p := range perms {
		s[i] = string(p)
	}
	return strings.Join(s, ", ")
}
