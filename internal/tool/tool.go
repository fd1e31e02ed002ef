// Package tool defines tool descriptors, the registry that holds them, and
// the error taxonomy shared by every layer that dispatches tools. A tool is a
// named, schema-validated, permission-tagged unit of work exposed to callers.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Permission is a capability tag declared by a tool.
type Permission string

// Permission values. Only PermissionPublic is honored; any other tag makes
// the runtime reject the call. There is no identity model behind these tags.
const (
	PermissionPublic        Permission = "public"
	PermissionAuthenticated Permission = "authenticated"
	PermissionAdmin         Permission = "admin"
)

func (p Permission) valid() bool {
	switch p {
	case PermissionPublic, PermissionAuthenticated, PermissionAdmin:
		return true
	default:
		return false
	}
}

// Params are validated, normalized tool parameters.
type Params map[string]any

// Decode converts params into a typed struct through their JSON form.
func (p Params) Decode(v any) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("tool: encode params: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("tool: decode params: %w", err)
	}
	return nil
}

// Context is a read-only snapshot of an agent's execution context handed to
// actions. Mutating it has no effect on the agent.
type Context map[string]any

// Clone returns a shallow copy of the context.
func (c Context) Clone() Context {
	if c == nil {
		return Context{}
	}
	return maps.Clone(c)
}

// Action performs the tool's work. ctx is cancelled when the runtime's
// execution timeout fires; actions should observe it and return promptly.
type Action func(ctx context.Context, params Params, execCtx Context) (any, error)

// Simulator is a pre-flight check that predicts whether Action would succeed
// without committing side effects.
type Simulator func(ctx context.Context, params Params, execCtx Context) (SimulationResult, error)

// ContextUpdater derives a patch merged into the agent context after a
// successful execution. It must not have side effects.
type ContextUpdater func(result any, params Params) map[string]any

// SimulationResult is the outcome of a Simulator.
type SimulationResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Descriptor is the static declaration of one tool. A Descriptor is
// immutable once registered.
type Descriptor struct {
	Name        string
	Description string

	// Permissions lists the capability tags the tool requires. An empty
	// list, or one containing PermissionPublic, means unrestricted.
	Permissions []Permission

	// Schema is a JSON Schema describing the parameters. Nil means any object.
	Schema json.RawMessage

	Action        Action
	Simulate      Simulator
	UpdateContext ContextUpdater

	validator *validator
}

// Public reports whether the tool can be invoked without any capability.
func (d *Descriptor) Public() bool {
	return len(d.Permissions) == 0 || slices.Contains(d.Permissions, PermissionPublic)
}

// Validate checks raw params against the descriptor's schema and returns a
// normalized copy with schema defaults applied. Failures are *Error values
// with CodeValidation and per-field detail.
func (d *Descriptor) Validate(params map[string]any) (Params, error) {
	if d.validator == nil {
		v, err := compileSchema(d.Schema)
		if err != nil {
			return nil, err
		}
		d.validator = v
	}
	return d.validator.validate(params)
}

// Info is the public listing of a tool. Schema and action are omitted.
type Info struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// Info returns the public listing for the descriptor.
func (d *Descriptor) Info() Info {
	perms := d.Permissions
	if len(perms) == 0 {
		perms = []Permission{PermissionPublic}
	}
	return Info{
		Name:        d.Name,
		Description: d.Description,
		Permissions: slices.Clone(perms),
	}
}
