package tools

import (
	"context"
	"encoding/json"

	"github.com/flemzord/chaingate/internal/chain"
	"github.com/flemzord/chaingate/internal/tool"
)

// MaxAirdropLamports is the largest airdrop devnet grants in one request.
const MaxAirdropLamports = 2 * chain.LamportsPerSOL

const balanceSchema = `{
	"type": "object",
	"properties": {
		"address": {"type": "string", "description": "Account to query; defaults to the gateway wallet"}
	}
}`

// GetBalance reports an account's balance in lamports and SOL.
func GetBalance(c chain.Client) tool.Descriptor {
	return tool.Descriptor{
		Name:        "get_balance",
		Description: "Get the SOL balance of an account.",
		Schema:      json.RawMessage(balanceSchema),
		Action: func(ctx context.Context, p tool.Params, _ tool.Context) (any, error) {
			addr := str(p, "address")
			if addr == "" {
				addr = c.Wallet()
			}
			if addr == "" {
				return nil, tool.Errorf(tool.CodeValidation, "address is required when no wallet is configured")
			}
			bal, err := c.Balance(ctx, addr)
			if err != nil {
				return nil, classify("address", err)
			}
			return map[string]any{
				"address":  addr,
				"lamports": bal,
				"sol":      float64(bal) / chain.LamportsPerSOL,
			}, nil
		},
		UpdateContext: func(result any, _ tool.Params) map[string]any {
			return map[string]any{"last_balance": resultField(result, "lamports")}
		},
	}
}

const accountSchema = `{
	"type": "object",
	"properties": {
		"address": {"type": "string", "minLength": 32, "maxLength": 44}
	},
	"required": ["address"]
}`

// GetAccountInfo describes an on-chain account.
func GetAccountInfo(c chain.Client) tool.Descriptor {
	return tool.Descriptor{
		Name:        "get_account_info",
		Description: "Get owner, balance and data size of an account.",
		Schema:      json.RawMessage(accountSchema),
		Action: func(ctx context.Context, p tool.Params, _ tool.Context) (any, error) {
			acc, err := c.Account(ctx, str(p, "address"))
			if err != nil {
				return nil, classify("address", err)
			}
			return acc, nil
		},
	}
}

// Params arrive as JSON numbers, so lamports are capped at 2^53-1, the
// largest integer a float64 holds exactly.
const transferSchema = `{
	"type": "object",
	"properties": {
		"to": {"type": "string", "minLength": 32, "maxLength": 44},
		"lamports": {"type": "integer", "minimum": 1, "maximum": 9007199254740991}
	},
	"required": ["to", "lamports"]
}`

// EstimateFee quotes the network fee for a transfer without sending it.
func EstimateFee(c chain.Client) tool.Descriptor {
	return tool.Descriptor{
		Name:        "estimate_fee",
		Description: "Estimate the fee of a SOL transfer from the gateway wallet.",
		Schema:      json.RawMessage(transferSchema),
		Action: func(ctx context.Context, p tool.Params, _ tool.Context) (any, error) {
			fee, err := c.EstimateTransferFee(ctx, str(p, "to"), uintParam(p, "lamports"))
			if err != nil {
				return nil, classify("to", err)
			}
			return map[string]any{"fee_lamports": fee}, nil
		},
	}
}

// TransferSOL sends lamports from the gateway wallet. The transfer is
// dry-run first when the runtime simulates.
func TransferSOL(c chain.Client) tool.Descriptor {
	return tool.Descriptor{
		Name:        "transfer_sol",
		Description: "Transfer lamports from the gateway wallet to an address.",
		Schema:      json.RawMessage(transferSchema),
		Simulate: func(ctx context.Context, p tool.Params, _ tool.Context) (tool.SimulationResult, error) {
			return simulation(c.SimulateTransfer(ctx, str(p, "to"), uintParam(p, "lamports")))
		},
		Action: func(ctx context.Context, p tool.Params, _ tool.Context) (any, error) {
			to, amount := str(p, "to"), uintParam(p, "lamports")
			sig, err := c.Transfer(ctx, to, amount)
			if err != nil {
				return nil, classify("to", err)
			}
			return map[string]any{
				"signature": sig,
				"from":      c.Wallet(),
				"to":        to,
				"lamports":  amount,
			}, nil
		},
		UpdateContext: func(result any, _ tool.Params) map[string]any {
			return map[string]any{"last_signature": resultField(result, "signature")}
		},
	}
}

const airdropSchema = `{
	"type": "object",
	"properties": {
		"address": {"type": "string", "description": "Recipient; defaults to the gateway wallet"},
		"lamports": {"type": "integer", "minimum": 1, "maximum": 2000000000, "default": 1000000000}
	}
}`

// RequestAirdrop asks a test cluster for lamports.
func RequestAirdrop(c chain.Client) tool.Descriptor {
	return tool.Descriptor{
		Name:        "request_airdrop",
		Description: "Request test SOL on devnet or testnet.",
		Schema:      json.RawMessage(airdropSchema),
		Action: func(ctx context.Context, p tool.Params, _ tool.Context) (any, error) {
			addr := str(p, "address")
			if addr == "" {
				addr = c.Wallet()
			}
			if addr == "" {
				return nil, tool.Errorf(tool.CodeValidation, "address is required when no wallet is configured")
			}
			amount := uintParam(p, "lamports")
			sig, err := c.Airdrop(ctx, addr, amount)
			if err != nil {
				return nil, classify("address", err)
			}
			return map[string]any{
				"signature": sig,
				"address":   addr,
				"lamports":  amount,
			}, nil
		},
		UpdateContext: func(result any, _ tool.Params) map[string]any {
			return map[string]any{"last_signature": resultField(result, "signature")}
		},
	}
}
