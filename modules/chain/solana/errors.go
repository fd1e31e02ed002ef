package solana

import (
	"context"
	"errors"
	"fmt"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/flemzord/chaingate/internal/chain"
)

// mapError normalizes RPC failures. Context errors pass through unchanged
// so callers can still tell a timeout apart.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, chain.ErrAccountNotFound)
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("rpc %s: %s (code %d)", op, rpcErr.Message, rpcErr.Code)
	}
	return fmt.Errorf("rpc %s: %w", op, err)
}

func parseAddress(s string) (sol.PublicKey, error) {
	pk, err := sol.PublicKeyFromBase58(s)
	if err != nil {
		return sol.PublicKey{}, fmt.Errorf("%w: %q", chain.ErrInvalidAddress, s)
	}
	return pk, nil
}

// simulationError renders the err field of a simulateTransaction response.
func simulationError(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
