package ui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/shhac/devcopilot/internal/client"
	"github.com/shhac/devcopilot/internal/incident"
	"github.com/shhac/devcopilot/internal/notify"
	"github.com/shhac/devcopilot/internal/simulator"
)

// fetchTimeout bounds background reads. Actions use actionTimeout.
const (
	fetchTimeout  = 10 * time.Second
	actionTimeout = 90 * time.Second
)

// fetchIncidentsCmd returns a command that fetches the repo's incidents.
func fetchIncidentsCmd(svc CopilotService, repoID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		incidents, err := svc.ListIncidents(ctx, repoID)
		return IncidentsLoadedMsg{Incidents: incidents, Err: err}
	}
}

// fetchDetailCmd loads the pull request (if any) and the vulnerable file of inc.
func fetchDetailCmd(svc CopilotService, inc incident.Incident) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		msg := DetailLoadedMsg{IncidentID: inc.IncidentID}
		if inc.PRID != "" {
			pr, err := svc.GetPullRequest(ctx, inc.RepoID, inc.PRID)
			if err != nil {
				msg.Err = err
				return msg
			}
			msg.PR = pr
		}
		f, err := svc.File(ctx, inc.RepoID, inc.CommitID, simulator.BugPath)
		if err != nil {
			var apiErr *client.APIError
			if !errors.As(err, &apiErr) || apiErr.Status != 404 {
				msg.Err = err
			}
			return msg
		}
		msg.Snippet = f.Content
		return msg
	}
}

// fetchAgentStateCmd loads the agent board of incidentID ("" = system board).
func fetchAgentStateCmd(svc CopilotService, incidentID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		summary, err := svc.AgentState(ctx, incidentID)
		return AgentStateLoadedMsg{IncidentID: incidentID, Summary: summary, Err: err}
	}
}

// pollTickCmd returns a command that fires after the given interval to trigger background polling.
func pollTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func injectCmd(svc CopilotService, repoID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res, err := svc.InjectBug(ctx, repoID)
		if err != nil {
			return ActionDoneMsg{Action: ActionInject, Err: err}
		}
		return ActionDoneMsg{Action: ActionInject, Message: res.Message + " (" + res.Commit.ID + ")"}
	}
}

func scanCmd(svc CopilotService, repoID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res, err := svc.Scan(ctx, repoID)
		if err != nil {
			return ActionDoneMsg{Action: ActionScan, Err: err}
		}
		return ActionDoneMsg{Action: ActionScan, Message: res.Message, Detected: res.Incidents}
	}
}

func analyseCmd(svc CopilotService, incidentID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res, err := svc.Analyse(ctx, incidentID)
		if err != nil {
			return ActionDoneMsg{Action: ActionAnalyse, Err: err}
		}
		return ActionDoneMsg{Action: ActionAnalyse, Message: "Analysis complete", Incident: &res.Incident}
	}
}

func autofixCmd(svc CopilotService, incidentID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res, err := svc.Autofix(ctx, incidentID)
		if err != nil {
			return ActionDoneMsg{Action: ActionAutofix, Err: err}
		}
		pr := res.PullRequest
		return ActionDoneMsg{
			Action:   ActionAutofix,
			Message:  "Opened " + pr.PRID + " from " + pr.SourceBranch,
			Incident: res.Incident,
			PR:       &pr,
		}
	}
}

func mergeCmd(svc CopilotService, repoID, prID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res, err := svc.Merge(ctx, repoID, prID)
		if err != nil {
			return ActionDoneMsg{Action: ActionMerge, Err: err}
		}
		pr := res.PullRequest
		return ActionDoneMsg{
			Action:   ActionMerge,
			Message:  "Merged " + pr.PRID + " into " + pr.TargetBranch,
			Incident: res.Incident,
			PR:       &pr,
		}
	}
}

// notifyFixReadyCmd sends the notification agent's desktop alert.
func notifyFixReadyCmd(n *notify.Notifier, incidentID, prID, title string) tea.Cmd {
	return func() tea.Msg {
		if err := n.FixReady(incidentID, prID, title); err != nil {
			log.Debug().Err(err).Msg("fix-ready notification failed")
		}
		return nil
	}
}

// notifyDetectedCmd alerts on incidents raised by a scan.
func notifyDetectedCmd(n *notify.Notifier, detected []incident.Incident) tea.Cmd {
	return func() tea.Msg {
		for _, inc := range detected {
			if err := n.IncidentDetected(inc.IncidentID, inc.Summary); err != nil {
				log.Debug().Err(err).Msg("incident notification failed")
			}
		}
		return nil
	}
}

// formatUserError converts raw errors into short user-facing messages.
func formatUserError(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out. Is the server running?"
	}
	return err.Error()
}
