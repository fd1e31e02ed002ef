// Package chain defines the blockchain collaborators used by tools: a
// wallet-backed client for native transfers and queries, and a program
// client for Anchor instructions. Addresses cross these interfaces as
// base58 strings.
package chain

import (
	"context"
	"errors"
)

// Well-known program addresses.
const (
	SystemProgramID = "11111111111111111111111111111111"
	TokenProgramID  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

var (
	// ErrAccountNotFound is returned when an address holds no account.
	ErrAccountNotFound = errors.New("chain: account not found")

	// ErrNoWallet is returned by operations that must sign when no keypair
	// is configured.
	ErrNoWallet = errors.New("chain: no wallet keypair configured")

	// ErrInvalidAddress is returned for strings that are not base58 public keys.
	ErrInvalidAddress = errors.New("chain: invalid address")

	// ErrProgramNotConfigured is returned when a tool targets a program
	// whose ID is absent from configuration.
	ErrProgramNotConfigured = errors.New("chain: program not configured")

	// ErrDiscriminatorMismatch is returned when account data does not
	// start with the expected Anchor discriminator.
	ErrDiscriminatorMismatch = errors.New("chain: account discriminator mismatch")
)

// AccountInfo describes an on-chain account.
type AccountInfo struct {
	Address    string `json:"address"`
	Owner      string `json:"owner"`
	Lamports   uint64 `json:"lamports"`
	Executable bool   `json:"executable"`
	DataLen    int    `json:"data_len"`
	Data       []byte `json:"-"`
}

// Simulation is the outcome of a dry-run transaction.
type Simulation struct {
	Success       bool     `json:"success"`
	Err           string   `json:"error,omitempty"`
	Logs          []string `json:"logs,omitempty"`
	UnitsConsumed uint64   `json:"units_consumed,omitempty"`
}

// Client is a wallet-backed connection to a cluster.
type Client interface {
	// Wallet returns the configured signer's address, or "" when read-only.
	Wallet() string

	Balance(ctx context.Context, address string) (uint64, error)
	Account(ctx context.Context, address string) (*AccountInfo, error)
	LatestBlockhash(ctx context.Context) (string, error)

	// Transfer sends lamports from the wallet and returns the signature.
	Transfer(ctx context.Context, to string, lamports uint64) (string, error)
	SimulateTransfer(ctx context.Context, to string, lamports uint64) (*Simulation, error)
	EstimateTransferFee(ctx context.Context, to string, lamports uint64) (uint64, error)

	// Airdrop requests test lamports for address. Only devnet and testnet
	// clusters honor it.
	Airdrop(ctx context.Context, address string, lamports uint64) (string, error)
}

// AccountMeta is one account slot of a program instruction.
type AccountMeta struct {
	// Name labels the slot in results.
	Name     string
	Address  string
	Signer   bool
	Writable bool

	// Generate asks the client for a fresh keypair that co-signs the
	// transaction. Address is ignored and reported back in CallResult.
	Generate bool
}

// Call is an Anchor instruction invocation.
type Call struct {
	Program  string
	Method   string
	Accounts []AccountMeta

	// Args is borsh-encoded after the method discriminator. Nil means no args.
	Args any
}

// CallResult reports a submitted instruction.
type CallResult struct {
	Signature string            `json:"signature"`
	Accounts  map[string]string `json:"accounts"`
}

// Account is implemented by Anchor account layouts.
type Account interface {
	// AccountName is the Rust struct name used for the discriminator.
	AccountName() string
}

// ProgramClient invokes Anchor programs.
type ProgramClient interface {
	Wallet() string
	Invoke(ctx context.Context, call Call) (*CallResult, error)
	Simulate(ctx context.Context, call Call) (*Simulation, error)
	FetchAccount(ctx context.Context, address string, out Account) error
	FindProgramAddress(seeds [][]byte, program string) (string, uint8, error)
}

// Programs holds configured program IDs.
type Programs struct {
	Asset    string `yaml:"asset" json:"asset,omitempty"`
	State    string `yaml:"state" json:"state,omitempty"`
	Behavior string `yaml:"behavior" json:"behavior,omitempty"`
}
