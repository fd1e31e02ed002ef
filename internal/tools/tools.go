// Package tools provides the built-in tool set: a diagnostic echo, wallet
// and account queries, SOL transfers, and the game program instructions.
package tools

import (
	"errors"
	"fmt"

	"github.com/flemzord/chaingate/internal/chain"
	"github.com/flemzord/chaingate/internal/tool"
)

// Deps are the collaborators chain tools need. A nil Client registers only
// the tools that work offline.
type Deps struct {
	Client   chain.Client
	Programs chain.ProgramClient

	// ProgramIDs addresses the game programs. Tools for a program with an
	// empty ID are still registered and fail with a clear error.
	ProgramIDs chain.Programs
}

// Register adds every built-in tool that deps can support to reg.
func Register(reg *tool.Registry, deps Deps) error {
	descs := []tool.Descriptor{Echo(), AdminSetRPC()}

	if deps.Client != nil {
		descs = append(descs,
			GetBalance(deps.Client),
			GetAccountInfo(deps.Client),
			EstimateFee(deps.Client),
			TransferSOL(deps.Client),
			RequestAirdrop(deps.Client),
		)
	}
	if deps.Programs != nil {
		descs = append(descs,
			DerivePDA(deps.Programs, deps.ProgramIDs),
			MintItem(deps.Programs, deps.ProgramIDs.Asset),
			RegisterPlayer(deps.Programs, deps.ProgramIDs.State),
			UpdateLevel(deps.Programs, deps.ProgramIDs.State),
			Attack(deps.Programs, deps.ProgramIDs.Behavior),
			GetPlayerState(deps.Programs),
		)
	}

	for _, d := range descs {
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("tools: register %s: %w", d.Name, err)
		}
	}
	return nil
}

// classify turns a collaborator error into a typed tool error. Address
// errors become validation failures, attributed to field when known.
func classify(field string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chain.ErrInvalidAddress):
		te := &tool.Error{Code: tool.CodeValidation, Message: err.Error(), Err: err}
		if field != "" {
			te.Fields = map[string]string{field: "not a base58 public key"}
		}
		return te
	default:
		return chain.Classify(err)
	}
}

// simulation converts a chain dry run into the runtime's verdict.
func simulation(sim *chain.Simulation, err error) (tool.SimulationResult, error) {
	if err != nil {
		return tool.SimulationResult{}, chain.Classify(err)
	}
	return tool.SimulationResult{Success: sim.Success, Reason: sim.Err}, nil
}

// uintParam reads an integer parameter that the schema has already
// bounded to [0, 2^53-1], where the float64 conversion is exact.
func uintParam(p tool.Params, key string) uint64 {
	f, _ := p[key].(float64)
	return uint64(f)
}

func str(p tool.Params, key string) string {
	s, _ := p[key].(string)
	return s
}

// orContext returns p[key], falling back to execCtx[ctxKey].
func orContext(p tool.Params, key string, execCtx tool.Context, ctxKey string) string {
	if s := str(p, key); s != "" {
		return s
	}
	s, _ := execCtx[ctxKey].(string)
	return s
}

// resultField reads key from a map result produced by this package.
func resultField(result any, key string) any {
	m, ok := result.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}
