package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/chaingate/internal/config"
)

// answers collects the init wizard input.
type answers struct {
	Bind         string
	Memory       string
	RPCURL       string
	Auth         bool
	ProtectTools bool
	OTLPEndpoint string
}

func defaultAnswers() answers {
	return answers{
		Bind:   "127.0.0.1:8080",
		Memory: "memory.file",
		Auth:   true,
	}
}

// starterConfig is the document written by init.
type starterConfig struct {
	Version  string         `yaml:"version"`
	LogLevel string         `yaml:"log_level"`
	Modules  map[string]any `yaml:"modules"`
}

// renderConfig produces a starter configuration. token is used when auth
// is enabled.
func renderConfig(a answers, token string) ([]byte, error) {
	gateway := map[string]any{"bind": a.Bind}
	if a.Auth {
		gateway["auth"] = map[string]any{
			"bearer_token":  token,
			"protect_tools": a.ProtectTools,
		}
	}

	modules := map[string]any{
		a.Memory:        map[string]any{},
		"agent.runtime": map[string]any{"timeout": "30s", "idle_timeout": "30m"},
		"gateway.http":  gateway,
	}
	if a.RPCURL != "" {
		modules["chain.solana"] = map[string]any{"rpc_url": a.RPCURL, "commitment": "confirmed"}
	}
	if a.OTLPEndpoint != "" {
		modules["telemetry.otel"] = map[string]any{"exporter": "otlp", "endpoint": a.OTLPEndpoint}
	}

	return yaml.Marshal(starterConfig{Version: "1", LogLevel: "info", Modules: modules})
}

func validateBind(s string) error {
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("bind must be host:port: %w", err)
	}
	return nil
}

func runWizard(a *answers) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway bind address").
				Value(&a.Bind).
				Validate(validateBind),
			huh.NewSelect[string]().
				Title("Agent memory backend").
				Options(
					huh.NewOption("JSON file", "memory.file"),
					huh.NewOption("SQLite", "memory.sqlite"),
				).
				Value(&a.Memory),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Solana RPC URL").
				Description("Leave empty to run without chain tools.").
				Value(&a.RPCURL),
			huh.NewConfirm().
				Title("Generate a bearer token for admin endpoints?").
				Value(&a.Auth),
			huh.NewConfirm().
				Title("Require the token on tool endpoints too?").
				Value(&a.ProtectTools),
			huh.NewInput().
				Title("OTLP collector endpoint").
				Description("Leave empty to disable tracing.").
				Value(&a.OTLPEndpoint),
		),
	).Run()
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = defaultConfigPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			a := defaultAnswers()
			if !yes {
				if err := runWizard(&a); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return errors.New("init aborted")
					}
					return err
				}
			}

			token := uuid.NewString()
			data, err := renderConfig(a, token)
			if err != nil {
				return err
			}
			cfg, err := config.Parse(data)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("generated config is invalid: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", output)
			if a.Auth {
				fmt.Fprintf(out, "Admin bearer token: %s\n", token)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the config (default: user config dir)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the defaults without prompting")
	return cmd
}

// defaultConfigPath is the first location config.ResolvePath searches.
func defaultConfigPath() string {
	return config.SearchPaths()[0]
}
