// Package solana implements the chain.solana module: a JSON-RPC client for
// Solana clusters with an optional signing wallet and Anchor program support.
package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sol "github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/chaingate/internal/core"
	"github.com/flemzord/chaingate/internal/security"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
)

// Service names published by the module.
const (
	ServiceClient   = "chain.client"
	ServicePrograms = "chain.programs"
)

// Module publishes a Client as both chain.Client and chain.ProgramClient.
type Module struct {
	config Config
	logger *slog.Logger
	client *Client
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "chain.solana",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("chain.solana: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	signer, err := m.loadSigner()
	if err != nil {
		return err
	}
	if signer != nil {
		if creds, ok := core.ServiceAs[*security.CredentialStore](ctx, "security.credentials"); ok {
			creds.Set("solana.private_key", signer.String())
		}
	}

	m.client = NewClient(m.config.RPCURL, m.config.commitment(), m.config.parsedTimeout(), signer)

	ctx.RegisterService(ServiceClient, m.client)
	ctx.RegisterService(ServicePrograms, m.config.Programs)

	m.logger.Info("solana client provisioned",
		"rpc_url", m.config.RPCURL,
		"commitment", m.config.Commitment,
		"wallet", m.client.Wallet(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Client returns the provisioned client.
func (m *Module) Client() *Client { return m.client }

// HealthCheck backs the gateway's /health endpoint.
func (m *Module) HealthCheck(ctx context.Context) error {
	if m.client == nil {
		return errors.New("chain.solana: not provisioned")
	}
	return m.client.HealthCheck(ctx)
}

func (m *Module) loadSigner() (*sol.PrivateKey, error) {
	switch {
	case m.config.PrivateKey != "":
		key, err := sol.PrivateKeyFromBase58(m.config.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("chain.solana: invalid private_key: %w", err)
		}
		return &key, nil
	case m.config.KeypairPath != "":
		key, err := sol.PrivateKeyFromSolanaKeygenFile(m.config.KeypairPath)
		if err != nil {
			return nil, fmt.Errorf("chain.solana: load keypair %s: %w", m.config.KeypairPath, err)
		}
		return &key, nil
	default:
		m.logger.Warn("chain.solana: no wallet configured, write tools will fail")
		return nil, nil
	}
}
