// Package main is the entry point for the chaingate CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flemzord/chaingate/internal/core"
	"github.com/flemzord/chaingate/internal/tool"
	"github.com/flemzord/chaingate/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chaingate",
		Short:         "A tool-dispatch gateway for on-chain agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), toolsCmd(), initCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chaingate %s (commit: %s, built: %s)\n", version, commit, date)
			namespaces := core.Namespaces()
			if len(namespaces) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, ns := range namespaces {
				fmt.Fprintf(out, "  %s\n", ns)
				for _, mod := range core.GetModulesByNamespace(ns) {
					fmt.Fprintf(out, "    %s\n", mod.ID)
				}
			}
		},
	}
}

// runParams builds app.RunParams from the shared flags.
func runParams(cmd *cobra.Command) app.RunParams {
	cfgPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	logLevel, _ := cmd.Flags().GetString("log-level")
	return app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		DataDir:    dataDir,
		LogLevel:   logLevel,
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().String("data-dir", "", "Override the data directory")
	cmd.Flags().String("log-level", "", "Override the log level (debug, info, warn, error)")
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start chaingate with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(context.Background(), runParams(cmd))
		},
	}
	addRunFlags(cmd)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and load every module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := app.Load(app.RunParams{
				ConfigPath: args[0],
				Version:    version,
				LogLevel:   "error",
			})
			if err != nil {
				return err
			}
			defer in.Stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(in.ModuleIDs))
			for _, id := range in.ModuleIDs {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the configured modules expose",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := runParams(cmd)
			if params.LogLevel == "" {
				params.LogLevel = "error"
			}
			in, err := app.Load(params)
			if err != nil {
				return err
			}
			defer in.Stop()

			tools, err := in.Tools()
			if err != nil {
				return err
			}
			return printTools(cmd.OutOrStdout(), tools)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func printTools(w io.Writer, tools []tool.Info) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPERMISSIONS\tDESCRIPTION")
	for _, t := range tools {
		perms := ""
		for i, p := range t.Permissions {
			if i > 0 {
				perms += ","
			}
			perms += string(p)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, perms, t.Description)
	}
	return tw.Flush()
}
