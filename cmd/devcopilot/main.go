package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shhac/devcopilot/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "devcopilot",
		Short: "Demo DevOps copilot: inject, detect, analyse and auto-fix a bug",
		Long: `devcopilot runs a mock repository with an auth bug that can be injected,
scanned for, analysed through Gemini and fixed by a generated pull request.

Run "devcopilot serve" for the API and "devcopilot dashboard" in another terminal.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to the config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newServeCmd(opts),
		newDashboardCmd(opts),
		newFormCheckCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devcopilot %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", o.configPath, err)
	}
	return cfg, nil
}
