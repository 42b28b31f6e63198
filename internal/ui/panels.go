package ui

// Panel identifies which panel has focus.
type Panel int

const (
	PanelLeft   Panel = iota // Incident list
	PanelCenter              // Incident detail
	PanelRight               // Agent board
)

// AppMode represents the current input mode.
type AppMode int

const (
	ModeNavigation AppMode = iota
	ModeOverlay
)

// Layout constants
const (
	minLeftWidth   = 24
	minCenterWidth = 40
	minRightWidth  = 28
	minTotalWidth  = 80

	leftRatio  = 0.28
	rightRatio = 0.27

	statusBarHeight = 1
)

// PanelSizes holds calculated panel dimensions. A zero width means hidden.
type PanelSizes struct {
	LeftWidth   int
	CenterWidth int
	RightWidth  int
	PanelHeight int
	TooSmall    bool
}

// CalculatePanelSizes splits the terminal width between the visible panels.
// The center panel absorbs whatever the side panels do not use.
func CalculatePanelSizes(termWidth, termHeight int, visible [3]bool) PanelSizes {
	if termWidth < minTotalWidth {
		return PanelSizes{TooSmall: true}
	}
	panelHeight := termHeight - statusBarHeight
	if panelHeight < 5 {
		return PanelSizes{TooSmall: true}
	}

	sizes := PanelSizes{PanelHeight: panelHeight}
	switch visibleCount(visible) {
	case 0:
		return PanelSizes{TooSmall: true}
	case 1:
		for i, v := range visible {
			if v {
				sizes.setWidth(Panel(i), termWidth)
			}
		}
		return sizes
	}

	if visible[PanelLeft] {
		sizes.LeftWidth = max(minLeftWidth, int(float64(termWidth)*leftRatio))
	}
	if visible[PanelRight] {
		sizes.RightWidth = max(minRightWidth, int(float64(termWidth)*rightRatio))
	}
	if visible[PanelCenter] {
		sizes.CenterWidth = termWidth - sizes.LeftWidth - sizes.RightWidth
		if sizes.CenterWidth < minCenterWidth {
			// Not enough room for three panels: drop the agent board.
			sizes.RightWidth = 0
			sizes.CenterWidth = termWidth - sizes.LeftWidth
		}
		return sizes
	}

	// Left and right only: share the width.
	sizes.RightWidth = termWidth - sizes.LeftWidth
	return sizes
}

func (s *PanelSizes) setWidth(p Panel, w int) {
	switch p {
	case PanelLeft:
		s.LeftWidth = w
	case PanelCenter:
		s.CenterWidth = w
	case PanelRight:
		s.RightWidth = w
	}
}

func visibleCount(visible [3]bool) int {
	n := 0
	for _, v := range visible {
		if v {
			n++
		}
	}
	return n
}

// nextVisiblePanel returns the next visible panel after current, wrapping.
// If no other panel is visible, current is returned.
func nextVisiblePanel(current Panel, visible [3]bool) Panel {
	p := current
	for i := 0; i < 3; i++ {
		p = p.Next()
		if visible[p] {
			return p
		}
	}
	return current
}

func prevVisiblePanel(current Panel, visible [3]bool) Panel {
	p := current
	for i := 0; i < 3; i++ {
		p = p.Prev()
		if visible[p] {
			return p
		}
	}
	return current
}

func (p Panel) Next() Panel {
	switch p {
	case PanelLeft:
		return PanelCenter
	case PanelCenter:
		return PanelRight
	default:
		return PanelLeft
	}
}

func (p Panel) Prev() Panel {
	switch p {
	case PanelLeft:
		return PanelRight
	case PanelCenter:
		return PanelLeft
	default:
		return PanelCenter
	}
}

func (p Panel) String() string {
	switch p {
	case PanelLeft:
		return "Incidents"
	case PanelCenter:
		return "Detail"
	case PanelRight:
		return "Agents"
	default:
		return "Unknown"
	}
}
