package solana

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/flemzord/chaingate/internal/chain"
)

// Client implements chain.Client and chain.ProgramClient over JSON-RPC.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
	timeout    time.Duration
	signer     *sol.PrivateKey
}

// Compile-time interface checks.
var (
	_ chain.Client        = (*Client)(nil)
	_ chain.ProgramClient = (*Client)(nil)
)

// NewClient returns a client for endpoint. signer may be nil for a
// read-only client.
func NewClient(endpoint string, commitment rpc.CommitmentType, timeout time.Duration, signer *sol.PrivateKey) *Client {
	return &Client{
		rpc:        rpc.New(endpoint),
		commitment: commitment,
		timeout:    timeout,
		signer:     signer,
	}
}

// Wallet implements chain.Client.
func (c *Client) Wallet() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.PublicKey().String()
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Balance implements chain.Client.
func (c *Client) Balance(ctx context.Context, address string) (uint64, error) {
	pk, err := parseAddress(address)
	if err != nil {
		return 0, err
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.rpc.GetBalance(ctx, pk, c.commitment)
	if err != nil {
		return 0, mapError("getBalance", err)
	}
	return res.Value, nil
}

// Account implements chain.Client.
func (c *Client) Account(ctx context.Context, address string) (*chain.AccountInfo, error) {
	pk, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.rpc.GetAccountInfoWithOpts(ctx, pk, &rpc.GetAccountInfoOpts{
		Encoding:   sol.EncodingBase64,
		Commitment: c.commitment,
	})
	if err != nil {
		return nil, mapError("getAccountInfo", err)
	}
	if res == nil || res.Value == nil {
		return nil, fmt.Errorf("getAccountInfo: %w", chain.ErrAccountNotFound)
	}

	acc := res.Value
	var data []byte
	if acc.Data != nil {
		data = acc.Data.GetBinary()
	}
	return &chain.AccountInfo{
		Address:    address,
		Owner:      acc.Owner.String(),
		Lamports:   acc.Lamports,
		Executable: acc.Executable,
		DataLen:    len(data),
		Data:       data,
	}, nil
}

// LatestBlockhash implements chain.Client.
func (c *Client) LatestBlockhash(ctx context.Context) (string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	hash, err := c.blockhash(ctx)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func (c *Client) blockhash(ctx context.Context) (sol.Hash, error) {
	res, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return sol.Hash{}, mapError("getLatestBlockhash", err)
	}
	return res.Value.Blockhash, nil
}

// Transfer implements chain.Client.
func (c *Client) Transfer(ctx context.Context, to string, lamports uint64) (string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	tx, err := c.transferTx(ctx, to, lamports)
	if err != nil {
		return "", err
	}
	if err := c.sign(tx, nil); err != nil {
		return "", err
	}
	return c.send(ctx, tx)
}

// SimulateTransfer implements chain.Client.
func (c *Client) SimulateTransfer(ctx context.Context, to string, lamports uint64) (*chain.Simulation, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	tx, err := c.transferTx(ctx, to, lamports)
	if err != nil {
		return nil, err
	}
	return c.simulate(ctx, tx)
}

// EstimateTransferFee implements chain.Client.
func (c *Client) EstimateTransferFee(ctx context.Context, to string, lamports uint64) (uint64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	tx, err := c.transferTx(ctx, to, lamports)
	if err != nil {
		return 0, err
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("fee: encode message: %w", err)
	}
	res, err := c.rpc.GetFeeForMessage(ctx, base64.StdEncoding.EncodeToString(msg), c.commitment)
	if err != nil {
		return 0, mapError("getFeeForMessage", err)
	}
	if res.Value == nil {
		return 0, fmt.Errorf("fee unavailable for message: blockhash expired")
	}
	return *res.Value, nil
}

// Airdrop implements chain.Client.
func (c *Client) Airdrop(ctx context.Context, address string, lamports uint64) (string, error) {
	pk, err := parseAddress(address)
	if err != nil {
		return "", err
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	sig, err := c.rpc.RequestAirdrop(ctx, pk, lamports, c.commitment)
	if err != nil {
		return "", mapError("requestAirdrop", err)
	}
	return sig.String(), nil
}

func (c *Client) transferTx(ctx context.Context, to string, lamports uint64) (*sol.Transaction, error) {
	if c.signer == nil {
		return nil, chain.ErrNoWallet
	}
	dest, err := parseAddress(to)
	if err != nil {
		return nil, err
	}
	recent, err := c.blockhash(ctx)
	if err != nil {
		return nil, err
	}

	from := c.signer.PublicKey()
	ix := system.NewTransferInstruction(lamports, from, dest).Build()
	tx, err := sol.NewTransaction([]sol.Instruction{ix}, recent, sol.TransactionPayer(from))
	if err != nil {
		return nil, fmt.Errorf("build transfer: %w", err)
	}
	return tx, nil
}

// sign signs tx with the wallet and any extra keypairs.
func (c *Client) sign(tx *sol.Transaction, extra []sol.PrivateKey) error {
	_, err := tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		if key.Equals(c.signer.PublicKey()) {
			return c.signer
		}
		for i := range extra {
			if key.Equals(extra[i].PublicKey()) {
				return &extra[i]
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, tx *sol.Transaction) (string, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return "", mapError("sendTransaction", err)
	}
	return sig.String(), nil
}

func (c *Client) simulate(ctx context.Context, tx *sol.Transaction) (*chain.Simulation, error) {
	res, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		Commitment:             c.commitment,
		ReplaceRecentBlockhash: true,
	})
	if err != nil {
		return nil, mapError("simulateTransaction", err)
	}

	sim := &chain.Simulation{
		Success: res.Value.Err == nil,
		Err:     simulationError(res.Value.Err),
		Logs:    res.Value.Logs,
	}
	if res.Value.UnitsConsumed != nil {
		sim.UnitsConsumed = *res.Value.UnitsConsumed
	}
	return sim, nil
}

// HealthCheck pings the RPC node.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if _, err := c.rpc.GetHealth(ctx); err != nil {
		return mapError("getHealth", err)
	}
	return nil
}
