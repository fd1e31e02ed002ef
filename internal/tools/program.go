package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flemzord/chaingate/internal/chain"
	"github.com/flemzord/chaingate/internal/tool"
)

// MaxPlayerNameLen is the longest name the state program's account
// (32 bytes reserved for the borsh string) can hold.
const MaxPlayerNameLen = 28

const pdaSchema = `{
	"type": "object",
	"properties": {
		"program_id": {"type": "string", "description": "Program address; overrides program"},
		"program": {"type": "string", "enum": ["asset", "state", "behavior"]},
		"seeds": {"type": "array", "items": {"type": "string", "maxLength": 32}, "minItems": 1, "maxItems": 16}
	},
	"required": ["seeds"]
}`

// DerivePDA computes a program derived address from UTF-8 seeds.
func DerivePDA(pc chain.ProgramClient, ids chain.Programs) tool.Descriptor {
	return tool.Descriptor{
		Name:        "derive_pda",
		Description: "Derive a program address and bump from string seeds.",
		Schema:      json.RawMessage(pdaSchema),
		Action: func(_ context.Context, p tool.Params, _ tool.Context) (any, error) {
			program := str(p, "program_id")
			if program == "" {
				program = programByName(ids, str(p, "program"))
			}
			if program == "" {
				return nil, &tool.Error{
					Code:    tool.CodeValidation,
					Message: "program_id or a configured program is required",
					Fields:  map[string]string{"program_id": "required"},
				}
			}

			raw, _ := p["seeds"].([]any)
			seeds := make([][]byte, 0, len(raw))
			for _, s := range raw {
				seed, _ := s.(string)
				seeds = append(seeds, []byte(seed))
			}

			addr, bump, err := pc.FindProgramAddress(seeds, program)
			if err != nil {
				return nil, classify("program_id", err)
			}
			return map[string]any{"address": addr, "bump": bump, "program_id": program}, nil
		},
	}
}

func programByName(ids chain.Programs, name string) string {
	switch name {
	case "asset":
		return ids.Asset
	case "state":
		return ids.State
	case "behavior":
		return ids.Behavior
	default:
		return ""
	}
}

// instruction builds the call for one tool invocation.
type instruction func(p tool.Params, execCtx tool.Context, wallet string) (chain.Call, error)

// programTool wires an instruction builder into a simulated, submitted
// tool. The action result carries the signature and resolved accounts.
func programTool(pc chain.ProgramClient, program string, build instruction) (tool.Simulator, tool.Action) {
	prepare := func(p tool.Params, execCtx tool.Context) (chain.Call, error) {
		if program == "" {
			return chain.Call{}, tool.Wrap(tool.CodeExecution, chain.ErrProgramNotConfigured)
		}
		if pc.Wallet() == "" {
			return chain.Call{}, tool.Wrap(tool.CodeExecution, chain.ErrNoWallet)
		}
		call, err := build(p, execCtx, pc.Wallet())
		if err != nil {
			return chain.Call{}, err
		}
		call.Program = program
		return call, nil
	}

	simulate := func(ctx context.Context, p tool.Params, execCtx tool.Context) (tool.SimulationResult, error) {
		call, err := prepare(p, execCtx)
		if err != nil {
			return tool.SimulationResult{}, err
		}
		return simulation(pc.Simulate(ctx, call))
	}

	action := func(ctx context.Context, p tool.Params, execCtx tool.Context) (any, error) {
		call, err := prepare(p, execCtx)
		if err != nil {
			return nil, err
		}
		res, err := pc.Invoke(ctx, call)
		if err != nil {
			return nil, classify("", err)
		}
		return map[string]any{
			"signature": res.Signature,
			"accounts":  res.Accounts,
		}, nil
	}
	return simulate, action
}

const mintSchema = `{
	"type": "object",
	"properties": {
		"mint": {"type": "string", "minLength": 32, "maxLength": 44},
		"to": {"type": "string", "minLength": 32, "maxLength": 44, "description": "Token account receiving the item"},
		"bump": {"type": "integer", "minimum": 0, "maximum": 255, "default": 0}
	},
	"required": ["mint", "to"]
}`

// MintItem mints one unit of an item token through the asset program.
func MintItem(pc chain.ProgramClient, program string) tool.Descriptor {
	simulate, action := programTool(pc, program, func(p tool.Params, _ tool.Context, wallet string) (chain.Call, error) {
		return chain.Call{
			Method: "mint_item",
			Accounts: []chain.AccountMeta{
				{Name: "authority", Address: wallet, Signer: true, Writable: true},
				{Name: "mint", Address: str(p, "mint"), Writable: true},
				{Name: "to", Address: str(p, "to"), Writable: true},
				{Name: "token_program", Address: chain.TokenProgramID},
			},
			Args: chain.MintItemArgs{Bump: uint8(uintParam(p, "bump"))},
		}, nil
	})
	return tool.Descriptor{
		Name:        "mint_item",
		Description: "Mint a game item to a token account.",
		Schema:      json.RawMessage(mintSchema),
		Simulate:    simulate,
		Action:      action,
		UpdateContext: func(result any, p tool.Params) map[string]any {
			return map[string]any{
				"last_signature": resultField(result, "signature"),
				"last_mint":      p["mint"],
			}
		},
	}
}

var registerSchema = fmt.Sprintf(`{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1, "maxLength": %d}
	},
	"required": ["name"]
}`, MaxPlayerNameLen)

// RegisterPlayer creates a level 1 player account owned by the wallet.
func RegisterPlayer(pc chain.ProgramClient, program string) tool.Descriptor {
	simulate, action := programTool(pc, program, func(p tool.Params, _ tool.Context, wallet string) (chain.Call, error) {
		return chain.Call{
			Method: "register_player",
			Accounts: []chain.AccountMeta{
				{Name: "player", Generate: true, Writable: true},
				{Name: "authority", Address: wallet, Signer: true, Writable: true},
				{Name: "system_program", Address: chain.SystemProgramID},
			},
			Args: chain.RegisterPlayerArgs{Name: str(p, "name")},
		}, nil
	})
	return tool.Descriptor{
		Name:        "register_player",
		Description: "Register a new player account owned by the gateway wallet.",
		Schema:      json.RawMessage(registerSchema),
		Simulate:    simulate,
		Action:      action,
		UpdateContext: func(result any, _ tool.Params) map[string]any {
			accounts, _ := resultField(result, "accounts").(map[string]string)
			return map[string]any{"player": accounts["player"]}
		},
	}
}

const levelSchema = `{
	"type": "object",
	"properties": {
		"player": {"type": "string", "description": "Player account; defaults to the agent's registered player"},
		"new_level": {"type": "integer", "minimum": 1, "maximum": 255}
	},
	"required": ["new_level"]
}`

// UpdateLevel sets a player's level. Only the owner may call it.
func UpdateLevel(pc chain.ProgramClient, program string) tool.Descriptor {
	simulate, action := programTool(pc, program, func(p tool.Params, execCtx tool.Context, wallet string) (chain.Call, error) {
		player, err := playerAddress(p, execCtx)
		if err != nil {
			return chain.Call{}, err
		}
		return chain.Call{
			Method: "update_level",
			Accounts: []chain.AccountMeta{
				{Name: "player", Address: player, Writable: true},
				{Name: "owner", Address: wallet, Signer: true},
			},
			Args: chain.UpdateLevelArgs{NewLevel: uint8(uintParam(p, "new_level"))},
		}, nil
	})
	return tool.Descriptor{
		Name:        "update_level",
		Description: "Set the level of a player owned by the gateway wallet.",
		Schema:      json.RawMessage(levelSchema),
		Simulate:    simulate,
		Action:      action,
		UpdateContext: func(_ any, p tool.Params) map[string]any {
			return map[string]any{"player_level": p["new_level"]}
		},
	}
}

const attackSchema = `{
	"type": "object",
	"properties": {
		"player": {"type": "string"},
		"damage": {"type": "integer", "minimum": 0, "maximum": 255}
	},
	"required": ["damage"]
}`

// Attack deals damage to a player. The program rejects blows that would
// leave the player with no hit points, which surfaces as a failed
// simulation.
func Attack(pc chain.ProgramClient, program string) tool.Descriptor {
	simulate, action := programTool(pc, program, func(p tool.Params, execCtx tool.Context, wallet string) (chain.Call, error) {
		player, err := playerAddress(p, execCtx)
		if err != nil {
			return chain.Call{}, err
		}
		return chain.Call{
			Method: "attack",
			Accounts: []chain.AccountMeta{
				{Name: "player", Address: player, Writable: true},
				{Name: "owner", Address: wallet, Signer: true},
			},
			Args: chain.AttackArgs{Damage: uint8(uintParam(p, "damage"))},
		}, nil
	})
	return tool.Descriptor{
		Name:        "attack",
		Description: "Deal damage to a player owned by the gateway wallet.",
		Schema:      json.RawMessage(attackSchema),
		Simulate:    simulate,
		Action:      action,
	}
}

const playerSchema = `{
	"type": "object",
	"properties": {
		"player": {"type": "string"}
	}
}`

// GetPlayerState reads and decodes a player account.
func GetPlayerState(pc chain.ProgramClient) tool.Descriptor {
	return tool.Descriptor{
		Name:        "get_player_state",
		Description: "Read a player's owner, name and level.",
		Schema:      json.RawMessage(playerSchema),
		Action: func(ctx context.Context, p tool.Params, execCtx tool.Context) (any, error) {
			player, err := playerAddress(p, execCtx)
			if err != nil {
				return nil, err
			}
			var state chain.PlayerState
			if err := pc.FetchAccount(ctx, player, &state); err != nil {
				return nil, classify("player", err)
			}
			return map[string]any{
				"address": player,
				"owner":   state.Owner.String(),
				"name":    state.Name,
				"level":   state.Level,
			}, nil
		},
	}
}

// playerAddress resolves the player param, falling back to the player the
// agent registered earlier.
func playerAddress(p tool.Params, execCtx tool.Context) (string, error) {
	player := orContext(p, "player", execCtx, "player")
	if player == "" {
		return "", &tool.Error{
			Code:    tool.CodeValidation,
			Message: "player is required until the agent registers one",
			Fields:  map[string]string{"player": "required"},
		}
	}
	return player, nil
}
