package ui

import (
	"context"

	"github.com/shhac/devcopilot/internal/agent"
	"github.com/shhac/devcopilot/internal/client"
	"github.com/shhac/devcopilot/internal/incident"
	"github.com/shhac/devcopilot/internal/repo"
)

// CopilotService defines the API operations used by the UI layer.
// *client.Client satisfies this interface.
type CopilotService interface {
	ListIncidents(ctx context.Context, repoID string) ([]incident.Incident, error)
	GetPullRequest(ctx context.Context, repoID, prID string) (*repo.PullRequest, error)
	File(ctx context.Context, repoID, commitID, path string) (*client.FileResult, error)
	AgentState(ctx context.Context, incidentID string) (*agent.Summary, error)
	InjectBug(ctx context.Context, repoID string) (*client.InjectResult, error)
	Scan(ctx context.Context, repoID string) (*client.ScanResult, error)
	Analyse(ctx context.Context, incidentID string) (*client.AnalyseResult, error)
	Autofix(ctx context.Context, incidentID string) (*client.FixResult, error)
	Merge(ctx context.Context, repoID, prID string) (*client.FixResult, error)
}

var _ CopilotService = (*client.Client)(nil)
