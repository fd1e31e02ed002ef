package solana

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go/rpc"

	"github.com/flemzord/chaingate/internal/chain"
)

// Config holds the chain.solana module configuration.
type Config struct {
	// RPCURL is the JSON-RPC endpoint. Defaults to devnet.
	RPCURL string `yaml:"rpc_url"`

	// KeypairPath is a solana-keygen JSON keypair file.
	KeypairPath string `yaml:"keypair_path"`

	// PrivateKey is a base58 private key, usually "${SOLANA_PRIVATE_KEY}".
	// Takes precedence over KeypairPath.
	PrivateKey string `yaml:"private_key"`

	// Commitment is processed, confirmed or finalized. Defaults to confirmed.
	Commitment string `yaml:"commitment"`

	// Timeout bounds each RPC call. Defaults to 20s.
	Timeout string `yaml:"timeout"`

	Programs chain.Programs `yaml:"programs"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.RPCURL == "" {
		c.RPCURL = rpc.DevNet_RPC
	}
	if c.Commitment == "" {
		c.Commitment = string(rpc.CommitmentConfirmed)
	}
	if c.Timeout == "" {
		c.Timeout = "20s"
	}
}

func (c *Config) commitment() rpc.CommitmentType {
	return rpc.CommitmentType(c.Commitment)
}

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

func (c *Config) validate() error {
	switch rpc.CommitmentType(c.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("chain.solana: invalid commitment %q", c.Commitment)
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("chain.solana: invalid timeout %q", c.Timeout)
	}
	for name, id := range map[string]string{
		"asset":    c.Programs.Asset,
		"state":    c.Programs.State,
		"behavior": c.Programs.Behavior,
	} {
		if id == "" {
			continue
		}
		if _, err := parseAddress(id); err != nil {
			return fmt.Errorf("chain.solana: programs.%s: %w", name, err)
		}
	}
	return nil
}
