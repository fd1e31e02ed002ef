package solana

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/chaingate/internal/chain"
	"github.com/flemzord/chaingate/internal/core"
	"github.com/flemzord/chaingate/internal/security"
)

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	c.defaults()
	if c.RPCURL != rpc.DevNet_RPC {
		t.Errorf("RPCURL = %q", c.RPCURL)
	}
	if c.commitment() != rpc.CommitmentConfirmed {
		t.Errorf("commitment = %q", c.commitment())
	}
	if err := c.validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad commitment", func(c *Config) { c.Commitment = "eventually" }, "commitment"},
		{"bad timeout", func(c *Config) { c.Timeout = "soon" }, "timeout"},
		{"bad program", func(c *Config) { c.Programs.State = "not-a-program-id" }, "programs.state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var c Config
			c.defaults()
			tt.mutate(&c)
			err := c.validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestModule_ProvisionWithPrivateKey(t *testing.T) {
	t.Parallel()

	key, err := sol.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}

	var node yaml.Node
	src := "private_key: " + key.String() + "\nprograms:\n  asset: Fg6PaFpoGXkYsidMpWxTWqoz1Rz4hG98bXok8eXEiN7z\n"
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatal(err)
	}

	m := &Module{}
	if err := m.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	appCtx := core.NewAppContext(slog.Default(), t.TempDir())
	creds := security.NewCredentialStore()
	appCtx.RegisterService("security.credentials", creds)

	if err := m.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if m.Client().Wallet() != key.PublicKey().String() {
		t.Errorf("Wallet = %s", m.Client().Wallet())
	}
	if _, ok := creds.Get("solana.private_key"); !ok {
		t.Error("private key should be registered for redaction")
	}
	if _, ok := core.ServiceAs[chain.Client](appCtx, ServiceClient); !ok {
		t.Error("chain.client service missing")
	}
	progs, ok := core.ServiceAs[chain.Programs](appCtx, ServicePrograms)
	if !ok || progs.Asset != "Fg6PaFpoGXkYsidMpWxTWqoz1Rz4hG98bXok8eXEiN7z" {
		t.Errorf("programs service = %+v, %v", progs, ok)
	}
}

func TestModule_KeypairFile(t *testing.T) {
	t.Parallel()

	key, err := sol.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "id.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	m := &Module{config: Config{KeypairPath: path}, logger: slog.Default()}
	signer, err := m.loadSigner()
	if err != nil {
		t.Fatalf("loadSigner: %v", err)
	}
	if signer.PublicKey() != key.PublicKey() {
		t.Error("keypair file decoded to a different key")
	}
}

func TestModule_NoWalletIsReadOnly(t *testing.T) {
	t.Parallel()

	m := &Module{logger: slog.Default()}
	signer, err := m.loadSigner()
	if err != nil || signer != nil {
		t.Errorf("loadSigner() = %v, %v; want nil, nil", signer, err)
	}
}
