package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/shhac/devcopilot/internal/client"
	"github.com/shhac/devcopilot/internal/config"
	"github.com/shhac/devcopilot/internal/notify"
	"github.com/shhac/devcopilot/internal/ui"
)

type dashboardOptions struct {
	apiURL   string
	repoID   string
	poll     time.Duration
	noNotify bool
	logFile  string
}

func newDashboardCmd(g *globalOptions) *cobra.Command {
	opts := &dashboardOptions{}

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the terminal incident dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("api-url") {
				cfg.APIURL = opts.apiURL
			}
			if flags.Changed("repo") {
				cfg.RepoID = opts.repoID
			}
			if flags.Changed("poll") {
				cfg.PollInterval = int(opts.poll / time.Millisecond)
			}
			if flags.Changed("no-notify") {
				cfg.DisableNotifications = opts.noNotify
			}
			if flags.Changed("log-file") {
				cfg.LogFile = opts.logFile
			}

			closeLog, err := setupFileLogging(cfg.LogFile, g.logLevel)
			if err != nil {
				return err
			}
			defer closeLog()

			app := ui.NewApp(client.New(cfg.APIURL, nil), ui.Options{
				RepoID:            cfg.RepoID,
				PollInterval:      cfg.PollIntervalDuration(),
				Notifier:          notify.New(!cfg.DisableNotifications),
				CollapseThreshold: cfg.CollapseThreshold,
			})
			p := tea.NewProgram(app, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("dashboard: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.apiURL, "api-url", config.DefaultAPIURL, "API base URL including /api")
	cmd.Flags().StringVar(&opts.repoID, "repo", config.DefaultRepoID, "Repository to operate on")
	cmd.Flags().DurationVar(&opts.poll, "poll", time.Duration(config.DefaultPollIntervalMs)*time.Millisecond, "Refresh interval (0 disables polling)")
	cmd.Flags().BoolVar(&opts.noNotify, "no-notify", false, "Disable desktop notifications")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "Write logs to this file")
	return cmd
}
