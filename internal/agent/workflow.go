package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Workflow names.
const (
	WorkflowScan    = "scan"
	WorkflowAnalyse = "analyse"
	WorkflowAutofix = "autofix"
)

// ErrUnknownWorkflow is returned when a workflow name has no steps.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// Step runs one agent for a fixed duration.
type Step struct {
	Agent    string
	Duration time.Duration
}

var workflows = map[string][]Step{
	WorkflowScan: {
		{Agent: Monitoring, Duration: 1500 * time.Millisecond},
	},
	WorkflowAnalyse: {
		{Agent: Analysis, Duration: 2000 * time.Millisecond},
	},
	WorkflowAutofix: {
		{Agent: AutoFixer, Duration: 2500 * time.Millisecond},
		{Agent: Notification, Duration: 1000 * time.Millisecond},
		{Agent: Memory, Duration: 500 * time.Millisecond},
	},
}

// WorkflowSteps returns the steps of a named workflow, or nil if unknown.
func WorkflowSteps(name string) []Step {
	steps, ok := workflows[name]
	if !ok {
		return nil
	}
	return append([]Step(nil), steps...)
}

// ExecuteWorkflow walks the steps of a workflow: each agent goes RUNNING,
// waits its scaled duration, then DONE. If ctx ends mid-step the running
// agent is set to ERROR and ctx.Err() is returned.
func (b *Board) ExecuteWorkflow(ctx context.Context, incidentID, name string) ([]Agent, error) {
	steps := WorkflowSteps(name)
	if steps == nil {
		return b.Get(incidentID), fmt.Errorf("%q: %w", name, ErrUnknownWorkflow)
	}

	for _, step := range steps {
		b.UpdateStatus(incidentID, step.Agent, StatusRunning)
		if err := b.sleep(ctx, b.scaled(step.Duration)); err != nil {
			b.UpdateStatus(incidentID, step.Agent, StatusError)
			return b.Get(incidentID), err
		}
		b.UpdateStatus(incidentID, step.Agent, StatusDone)
	}
	return b.Get(incidentID), nil
}

func (b *Board) scaled(d time.Duration) time.Duration {
	if b.stepScale <= 0 {
		return 0
	}
	return time.Duration(float64(d) * b.stepScale)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
