// Package tooltest provides test helpers and mock descriptors for the tool package.
package tooltest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/flemzord/chaingate/internal/tool"
)

// EchoSchema requires a string "message" field.
var EchoSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"message": {"type": "string"}},
	"required": ["message"]
}`)

// Echo returns a public descriptor that echoes its "message" param back.
func Echo() tool.Descriptor {
	return tool.Descriptor{
		Name:        "echo",
		Description: "Echo a message back",
		Permissions: []tool.Permission{tool.PermissionPublic},
		Schema:      EchoSchema,
		Action: func(_ context.Context, params tool.Params, _ tool.Context) (any, error) {
			return map[string]any{"echoed": params["message"]}, nil
		},
		UpdateContext: func(_ any, params tool.Params) map[string]any {
			return map[string]any{"last_message": params["message"]}
		},
	}
}

// Spy wraps a descriptor and counts how often each hook runs.
type Spy struct {
	mu             sync.Mutex
	ActionCalls    int
	SimulateCalls  int
	LastParams     tool.Params
	LastExecCtx    tool.Context
	ActionFunc     tool.Action
	SimulateResult *tool.SimulationResult
	SimulateErr    error
}

// Descriptor returns a descriptor named name whose hooks record into s.
// When SimulateResult or SimulateErr is set a simulator is attached.
func (s *Spy) Descriptor(name string, schema json.RawMessage, perms ...tool.Permission) tool.Descriptor {
	d := tool.Descriptor{
		Name:        name,
		Description: "spy tool: " + name,
		Permissions: perms,
		Schema:      schema,
		Action: func(ctx context.Context, params tool.Params, execCtx tool.Context) (any, error) {
			s.mu.Lock()
			s.ActionCalls++
			s.LastParams = params
			s.LastExecCtx = execCtx
			fn := s.ActionFunc
			s.mu.Unlock()

			if fn != nil {
				return fn(ctx, params, execCtx)
			}
			return "ok", nil
		},
	}
	if s.SimulateResult != nil || s.SimulateErr != nil {
		d.Simulate = func(context.Context, tool.Params, tool.Context) (tool.SimulationResult, error) {
			s.mu.Lock()
			s.SimulateCalls++
			s.mu.Unlock()

			if s.SimulateErr != nil {
				return tool.SimulationResult{}, s.SimulateErr
			}
			return *s.SimulateResult, nil
		}
	}
	return d
}

// Actions returns the number of action invocations.
func (s *Spy) Actions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ActionCalls
}

// Simulations returns the number of simulator invocations.
func (s *Spy) Simulations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SimulateCalls
}

// Slow returns an action that waits for d or ctx cancellation. The returned
// channel receives ctx.Err() when the action observed cancellation.
func Slow(d time.Duration) (tool.Action, <-chan error) {
	cancelled := make(chan error, 1)
	action := func(ctx context.Context, _ tool.Params, _ tool.Context) (any, error) {
		select {
		case <-time.After(d):
			return "done", nil
		case <-ctx.Done():
			cancelled <- ctx.Err()
			return nil, ctx.Err()
		}
	}
	return action, cancelled
}

// Failing returns an action that always returns err.
func Failing(err error) tool.Action {
	return func(context.Context, tool.Params, tool.Context) (any, error) {
		return nil, err
	}
}
