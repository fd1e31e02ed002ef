package solana

import (
	"context"
	"fmt"

	sol "github.com/gagliardetto/solana-go"

	"github.com/flemzord/chaingate/internal/chain"
)

// Invoke implements chain.ProgramClient.
func (c *Client) Invoke(ctx context.Context, call chain.Call) (*chain.CallResult, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	tx, generated, names, err := c.programTx(ctx, call)
	if err != nil {
		return nil, err
	}
	if err := c.sign(tx, generated); err != nil {
		return nil, err
	}
	sig, err := c.send(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &chain.CallResult{Signature: sig, Accounts: names}, nil
}

// Simulate implements chain.ProgramClient.
func (c *Client) Simulate(ctx context.Context, call chain.Call) (*chain.Simulation, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	tx, _, _, err := c.programTx(ctx, call)
	if err != nil {
		return nil, err
	}
	return c.simulate(ctx, tx)
}

// FetchAccount implements chain.ProgramClient.
func (c *Client) FetchAccount(ctx context.Context, address string, out chain.Account) error {
	acc, err := c.Account(ctx, address)
	if err != nil {
		return err
	}
	return chain.DecodeAccount(acc.Data, out)
}

// FindProgramAddress implements chain.ProgramClient.
func (c *Client) FindProgramAddress(seeds [][]byte, program string) (string, uint8, error) {
	pid, err := parseAddress(program)
	if err != nil {
		return "", 0, err
	}
	addr, bump, err := sol.FindProgramAddress(seeds, pid)
	if err != nil {
		return "", 0, fmt.Errorf("find program address: %w", err)
	}
	return addr.String(), bump, nil
}

// programTx builds an unsigned transaction for call. Generated keypairs are
// returned so the caller can co-sign, along with the resolved account names.
func (c *Client) programTx(ctx context.Context, call chain.Call) (*sol.Transaction, []sol.PrivateKey, map[string]string, error) {
	if c.signer == nil {
		return nil, nil, nil, chain.ErrNoWallet
	}
	if call.Program == "" {
		return nil, nil, nil, chain.ErrProgramNotConfigured
	}
	pid, err := parseAddress(call.Program)
	if err != nil {
		return nil, nil, nil, err
	}

	data, err := chain.EncodeInstruction(call.Method, call.Args)
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		metas     = make(sol.AccountMetaSlice, 0, len(call.Accounts))
		generated []sol.PrivateKey
		names     = make(map[string]string, len(call.Accounts))
	)
	for _, a := range call.Accounts {
		var pk sol.PublicKey
		if a.Generate {
			key, err := sol.NewRandomPrivateKey()
			if err != nil {
				return nil, nil, nil, fmt.Errorf("generate %s keypair: %w", a.Name, err)
			}
			generated = append(generated, key)
			pk = key.PublicKey()
		} else {
			pk, err = parseAddress(a.Address)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("account %s: %w", a.Name, err)
			}
		}
		metas = append(metas, sol.NewAccountMeta(pk, a.Writable, a.Signer || a.Generate))
		if a.Name != "" {
			names[a.Name] = pk.String()
		}
	}

	recent, err := c.blockhash(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	ix := sol.NewInstruction(pid, metas, data)
	tx, err := sol.NewTransaction([]sol.Instruction{ix}, recent, sol.TransactionPayer(c.signer.PublicKey()))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build %s transaction: %w", call.Method, err)
	}
	return tx, generated, names, nil
}
