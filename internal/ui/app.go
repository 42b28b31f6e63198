package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shhac/devcopilot/internal/agent"
	"github.com/shhac/devcopilot/internal/notify"
)

// Options configures the dashboard.
type Options struct {
	// RepoID is the repository the dashboard operates on.
	RepoID string
	// PollInterval is how often incidents and agents are re-fetched. Zero disables polling.
	PollInterval time.Duration
	// Notifier sends desktop alerts. Nil disables them.
	Notifier *notify.Notifier
	// CollapseThreshold is the terminal width below which the agent panel starts hidden.
	CollapseThreshold int
}

// App is the root Bubbletea model for the incident dashboard.
type App struct {
	// Panel models
	incidents IncidentListModel
	detail    IncidentDetailModel
	agents    AgentPanelModel
	statusBar StatusBarModel

	helpOverlay HelpOverlayModel

	svc      CopilotService
	notifier *notify.Notifier
	repoID   string

	// Layout state
	focused           Panel
	width             int
	height            int
	panelVisible      [3]bool
	zoomed            bool
	preZoomVisible    [3]bool
	initialized       bool
	collapseThreshold int

	mode AppMode

	// boardID is the agent board shown in the right panel.
	boardID string
	// busy is the remediation action in flight, if any. One at a time.
	busy Action

	pollInterval time.Duration

	// Incident ids seen since boot, for new-incident alerts.
	initialLoadDone bool
	knownIncidents  map[string]bool
}

// NewApp creates the dashboard model.
func NewApp(svc CopilotService, opts Options) App {
	m := App{
		incidents:         NewIncidentListModel(),
		detail:            NewIncidentDetailModel(),
		agents:            NewAgentPanelModel(),
		statusBar:         NewStatusBarModel(opts.RepoID),
		helpOverlay:       NewHelpOverlayModel(),
		svc:               svc,
		notifier:          opts.Notifier,
		repoID:            opts.RepoID,
		focused:           PanelLeft,
		panelVisible:      [3]bool{true, true, true},
		collapseThreshold: opts.CollapseThreshold,
		mode:              ModeNavigation,
		boardID:           agent.SystemBoard,
		pollInterval:      opts.PollInterval,
		knownIncidents:    make(map[string]bool),
	}
	m.incidents.SetFocused(true)
	return m
}

func (m App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		fetchIncidentsCmd(m.svc, m.repoID),
		fetchAgentStateCmd(m.svc, m.boardID),
		m.incidents.spinner.Tick,
	}
	if m.pollInterval > 0 {
		cmds = append(cmds, pollTickCmd(m.pollInterval))
	}
	return tea.Batch(cmds...)
}

// Update dispatches messages to domain-specific sub-handlers.
func (m App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)

	case IncidentsLoadedMsg, IncidentSelectedMsg, DetailLoadedMsg:
		return m.handleIncidentMsg(msg)

	case AgentStateLoadedMsg:
		return m.handleAgentState(msg)

	case ActionDoneMsg:
		return m.handleActionDone(msg)

	case pollTickMsg:
		return m.handlePollTick()

	case HelpClosedMsg:
		m.mode = ModeNavigation
		m.statusBar.SetState(m.focused, m.mode)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.incidents, cmd = m.incidents.Update(msg)
		return m, cmd

	case StatusBarClearMsg:
		m.statusBar.ClearIfSeqMatch(msg.Seq)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

// handleWindowSize processes terminal resize events.
func (m App) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.helpOverlay.SetSize(m.width, m.height)
	if !m.initialized {
		m.initialized = true
		if m.width < m.collapseThreshold {
			m.panelVisible[PanelRight] = false
		}
	}
	m.recalcLayout()
	return m, nil
}

func (m App) View() string {
	if m.helpOverlay.IsVisible() {
		return m.helpOverlay.View()
	}

	sizes := CalculatePanelSizes(m.width, m.height, m.panelVisible)
	if sizes.TooSmall {
		msg := lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Render("Terminal too small. Please resize to at least 80×10.")
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
	}

	var panelViews []string
	if sizes.LeftWidth > 0 {
		panelViews = append(panelViews, m.incidents.View())
	}
	if sizes.CenterWidth > 0 {
		panelViews = append(panelViews, m.detail.View())
	}
	if sizes.RightWidth > 0 {
		panelViews = append(panelViews, m.agents.View())
	}

	panels := lipgloss.JoinHorizontal(lipgloss.Top, panelViews...)
	m.statusBar.SetFiltering(m.focused == PanelLeft && m.incidents.IsFiltering())
	return lipgloss.JoinVertical(lipgloss.Left, panels, m.statusBar.View())
}

// -- Layout & panel helpers --

// focusPanel sets focus to the given panel. If the panel is hidden,
// focuses the next visible panel instead.
func (m *App) focusPanel(p Panel) {
	if !m.panelVisible[p] {
		p = nextVisiblePanel(p, m.panelVisible)
	}
	m.focused = p
	m.incidents.SetFocused(p == PanelLeft)
	m.detail.SetFocused(p == PanelCenter)
	m.agents.SetFocused(p == PanelRight)
	m.statusBar.SetState(m.focused, m.mode)
}

func (m *App) recalcLayout() {
	m.statusBar.SetWidth(m.width)
	m.statusBar.SetState(m.focused, m.mode)

	sizes := CalculatePanelSizes(m.width, m.height, m.panelVisible)
	if sizes.TooSmall {
		return
	}
	if sizes.LeftWidth > 0 {
		m.incidents.SetSize(sizes.LeftWidth, sizes.PanelHeight)
	}
	if sizes.CenterWidth > 0 {
		m.detail.SetSize(sizes.CenterWidth, sizes.PanelHeight)
	}
	if sizes.RightWidth > 0 {
		m.agents.SetSize(sizes.RightWidth, sizes.PanelHeight)
	}
	// Narrow terminals drop the agent board.
	if m.panelVisible[PanelRight] && sizes.RightWidth == 0 {
		m.panelVisible[PanelRight] = false
	}
	if !m.panelVisible[m.focused] {
		m.focusPanel(nextVisiblePanel(m.focused, m.panelVisible))
	}
}

// toggleZoom enters or exits zoom mode. When zoomed, only the focused panel
// is visible at full width.
func (m *App) toggleZoom() {
	if m.zoomed {
		m.exitZoom()
	} else {
		m.preZoomVisible = m.panelVisible
		m.panelVisible = [3]bool{}
		m.panelVisible[m.focused] = true
		m.zoomed = true
	}
	m.recalcLayout()
}

// exitZoom restores the pre-zoom panel visibility.
func (m *App) exitZoom() {
	if !m.zoomed {
		return
	}
	m.panelVisible = m.preZoomVisible
	m.zoomed = false
}

// showAndFocusPanel ensures a panel is visible, exits zoom if active,
// and focuses the panel. When the agent board does not fit beside the
// detail panel, the two swap.
func (m *App) showAndFocusPanel(p Panel) {
	m.exitZoom()
	m.panelVisible[p] = true
	if p == PanelRight {
		sizes := CalculatePanelSizes(m.width, m.height, m.panelVisible)
		if !sizes.TooSmall && sizes.RightWidth == 0 {
			m.panelVisible[PanelCenter] = false
		}
	}
	m.focusPanel(p)
	m.recalcLayout()
}

func (m App) updateFocusedPanel(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focused {
	case PanelLeft:
		m.incidents, cmd = m.incidents.Update(msg)
	case PanelCenter:
		m.detail, cmd = m.detail.Update(msg)
	case PanelRight:
		m.agents, cmd = m.agents.Update(msg)
	}
	return m, cmd
}

// setBoard switches the agent panel to another board and fetches it.
func (m *App) setBoard(id string) tea.Cmd {
	m.boardID = id
	return fetchAgentStateCmd(m.svc, id)
}

// refresh re-fetches everything the dashboard shows.
func (m App) refresh() tea.Cmd {
	cmds := []tea.Cmd{
		fetchIncidentsCmd(m.svc, m.repoID),
		fetchAgentStateCmd(m.svc, m.boardID),
	}
	if inc := m.detail.Incident(); inc != nil {
		cmds = append(cmds, fetchDetailCmd(m.svc, *inc))
	}
	return tea.Batch(cmds...)
}
