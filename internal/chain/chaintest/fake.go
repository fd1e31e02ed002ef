// Package chaintest provides an in-memory chain for tool and runtime tests.
package chaintest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/flemzord/chaingate/internal/chain"
)

// Fake is an in-memory implementation of chain.Client and
// chain.ProgramClient. Balances move on Transfer and Airdrop; program
// calls are recorded and may be scripted through hooks.
type Fake struct {
	mu sync.Mutex

	WalletAddr string
	Fee        uint64
	Balances   map[string]uint64
	Accounts   map[string]*chain.AccountInfo

	// Err, when set, is returned by every RPC-backed method.
	Err error

	// OnInvoke and OnSimulate script program behaviour. A nil OnSimulate
	// reports success.
	OnInvoke   func(call chain.Call) error
	OnSimulate func(call chain.Call) *chain.Simulation

	Calls     []chain.Call
	Transfers int
	seq       int
}

// Compile-time interface checks.
var (
	_ chain.Client        = (*Fake)(nil)
	_ chain.ProgramClient = (*Fake)(nil)
)

// Wallet is a fixed, valid address used as the fake signer.
var Wallet = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin").String()

// New returns a fake holding walletLamports in its wallet with a 5000
// lamport fee.
func New(walletLamports uint64) *Fake {
	return &Fake{
		WalletAddr: Wallet,
		Fee:        5000,
		Balances:   map[string]uint64{Wallet: walletLamports},
		Accounts:   make(map[string]*chain.AccountInfo),
	}
}

// Wallet implements chain.Client.
func (f *Fake) Wallet() string { return f.WalletAddr }

// Balance implements chain.Client.
func (f *Fake) Balance(ctx context.Context, address string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, address); err != nil {
		return 0, err
	}
	return f.Balances[address], nil
}

// Account implements chain.Client.
func (f *Fake) Account(ctx context.Context, address string) (*chain.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, address); err != nil {
		return nil, err
	}
	acc, ok := f.Accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrAccountNotFound, address)
	}
	cp := *acc
	return &cp, nil
}

// LatestBlockhash implements chain.Client.
func (f *Fake) LatestBlockhash(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, ""); err != nil {
		return "", err
	}
	return solana.Hash{}.String(), nil
}

// Transfer implements chain.Client.
func (f *Fake) Transfer(ctx context.Context, to string, lamports uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, to); err != nil {
		return "", err
	}
	if f.WalletAddr == "" {
		return "", chain.ErrNoWallet
	}
	if f.Balances[f.WalletAddr] < lamports+f.Fee {
		return "", fmt.Errorf("Transfer: insufficient lamports %d, need %d", f.Balances[f.WalletAddr], lamports+f.Fee)
	}
	f.Balances[f.WalletAddr] -= lamports + f.Fee
	f.Balances[to] += lamports
	f.Transfers++
	return f.signature(), nil
}

// SimulateTransfer implements chain.Client.
func (f *Fake) SimulateTransfer(ctx context.Context, to string, lamports uint64) (*chain.Simulation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, to); err != nil {
		return nil, err
	}
	if f.Balances[f.WalletAddr] < lamports+f.Fee {
		return &chain.Simulation{Success: false, Err: "insufficient lamports"}, nil
	}
	return &chain.Simulation{Success: true, UnitsConsumed: 150}, nil
}

// EstimateTransferFee implements chain.Client.
func (f *Fake) EstimateTransferFee(ctx context.Context, to string, _ uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, to); err != nil {
		return 0, err
	}
	return f.Fee, nil
}

// Airdrop implements chain.Client.
func (f *Fake) Airdrop(ctx context.Context, address string, lamports uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, address); err != nil {
		return "", err
	}
	f.Balances[address] += lamports
	return f.signature(), nil
}

// Invoke implements chain.ProgramClient.
func (f *Fake) Invoke(ctx context.Context, call chain.Call) (*chain.CallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, call.Program); err != nil {
		return nil, err
	}
	if f.OnInvoke != nil {
		if err := f.OnInvoke(call); err != nil {
			return nil, err
		}
	}
	f.Calls = append(f.Calls, call)
	return &chain.CallResult{Signature: f.signature(), Accounts: f.resolve(call)}, nil
}

// Simulate implements chain.ProgramClient.
func (f *Fake) Simulate(ctx context.Context, call chain.Call) (*chain.Simulation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, call.Program); err != nil {
		return nil, err
	}
	if f.OnSimulate != nil {
		return f.OnSimulate(call), nil
	}
	return &chain.Simulation{Success: true}, nil
}

// FetchAccount implements chain.ProgramClient by decoding stored account data.
func (f *Fake) FetchAccount(ctx context.Context, address string, out chain.Account) error {
	acc, err := f.Account(ctx, address)
	if err != nil {
		return err
	}
	return chain.DecodeAccount(acc.Data, out)
}

// FindProgramAddress implements chain.ProgramClient with the real derivation.
func (f *Fake) FindProgramAddress(seeds [][]byte, program string) (string, uint8, error) {
	pid, err := solana.PublicKeyFromBase58(program)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s", chain.ErrInvalidAddress, program)
	}
	addr, bump, err := solana.FindProgramAddress(seeds, pid)
	if err != nil {
		return "", 0, err
	}
	return addr.String(), bump, nil
}

// PutAccount stores an Anchor account at address.
func (f *Fake) PutAccount(address, owner string, acc chain.Account) error {
	data, err := chain.EncodeAccount(acc)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Accounts[address] = &chain.AccountInfo{
		Address:  address,
		Owner:    owner,
		Lamports: 1_000_000,
		DataLen:  len(data),
		Data:     data,
	}
	return nil
}

// CallCount returns the number of successful Invoke calls.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

func (f *Fake) check(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.Err != nil {
		return f.Err
	}
	if address != "" {
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("%w: %s", chain.ErrInvalidAddress, address)
		}
	}
	return nil
}

func (f *Fake) resolve(call chain.Call) map[string]string {
	out := make(map[string]string, len(call.Accounts))
	for i, a := range call.Accounts {
		addr := a.Address
		if a.Generate {
			addr = Address(fmt.Sprintf("generated-%d-%d", f.seq, i))
		}
		out[a.Name] = addr
	}
	return out
}

func (f *Fake) signature() string {
	f.seq++
	sum := sha256.Sum256([]byte(fmt.Sprintf("sig-%d", f.seq)))
	var sig solana.Signature
	copy(sig[:], sum[:])
	copy(sig[32:], sum[:])
	return sig.String()
}

// Address derives a deterministic valid address from label.
func Address(label string) string {
	sum := sha256.Sum256([]byte(label))
	return solana.PublicKeyFromBytes(sum[:]).String()
}
