// Package notify delivers the notification agent's desktop alerts.
package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

const appName = "devcopilot"

// Runner executes a notification command. Tests inject their own.
type Runner func(name string, args ...string) error

// Notifier sends OS-level notifications. The zero value is disabled.
type Notifier struct {
	enabled bool
	goos    string
	run     Runner
}

// New returns a Notifier for the current OS.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled, goos: runtime.GOOS, run: execRunner}
}

// NewTestNotifier returns a Notifier that pretends to run on goos and sends
// commands to run.
func NewTestNotifier(goos string, run Runner) *Notifier {
	return &Notifier{enabled: true, goos: goos, run: run}
}

// Enabled reports whether Send delivers anything.
func (n *Notifier) Enabled() bool {
	return n != nil && n.enabled
}

// Send delivers a notification with the given title and body.
// On macOS it uses osascript, on Linux notify-send, with a terminal bell fallback.
// Errors are returned but callers may choose to ignore them (fire-and-forget).
func (n *Notifier) Send(title, body string) error {
	if !n.Enabled() {
		return nil
	}
	switch n.goos {
	case "darwin":
		script := fmt.Sprintf(
			`display notification %s with title %s`,
			escapeAppleScript(body),
			escapeAppleScript(title),
		)
		return n.run("osascript", "-e", script)
	case "linux":
		return n.run("notify-send", "-a", appName, title, body)
	default:
		_, err := fmt.Print("\a")
		return err
	}
}

// FixReady announces a pull request opened for an incident.
func (n *Notifier) FixReady(incidentID, prID, title string) error {
	return n.Send(
		"Fix ready: "+prID,
		fmt.Sprintf("%s\nIncident %s is waiting for review.", title, incidentID),
	)
}

// IncidentDetected announces a new incident.
func (n *Notifier) IncidentDetected(incidentID, summary string) error {
	return n.Send("Incident "+incidentID, summary)
}

func execRunner(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// escapeAppleScript returns a quoted AppleScript string with internal
// quotes and backslashes escaped.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
