package ui

import (
	"reflect"
	"testing"
)

var (
	allPanels   = [3]bool{true, true, true}
	noAgents    = [3]bool{true, true, false}
	noDetail    = [3]bool{true, false, true}
	detailAlone = [3]bool{false, true, false}
)

func TestCalculatePanelSizes(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		visible       [3]bool
		want          PanelSizes
	}{
		{"full dashboard", 200, 50, allPanels, PanelSizes{LeftWidth: 56, CenterWidth: 90, RightWidth: 54, PanelHeight: 49}},
		{"agent board at its minimum", 100, 30, allPanels, PanelSizes{LeftWidth: 28, CenterWidth: 44, RightWidth: 28, PanelHeight: 29}},
		{"narrow terminal drops agents", 90, 30, allPanels, PanelSizes{LeftWidth: 25, CenterWidth: 65, PanelHeight: 29}},
		{"agents hidden", 120, 40, noAgents, PanelSizes{LeftWidth: 33, CenterWidth: 87, PanelHeight: 39}},
		{"incidents beside agents", 120, 40, noDetail, PanelSizes{LeftWidth: 33, RightWidth: 87, PanelHeight: 39}},
		{"zoomed detail", 120, 40, detailAlone, PanelSizes{CenterWidth: 120, PanelHeight: 39}},
		{"below minimum width", 79, 40, allPanels, PanelSizes{TooSmall: true}},
		{"status bar leaves no room", 120, 5, allPanels, PanelSizes{TooSmall: true}},
		{"nothing visible", 120, 40, [3]bool{}, PanelSizes{TooSmall: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePanelSizes(tt.width, tt.height, tt.visible)
			if got != tt.want {
				t.Errorf("CalculatePanelSizes(%d, %d, %v) = %+v, want %+v", tt.width, tt.height, tt.visible, got, tt.want)
			}
			if !got.TooSmall {
				if sum := got.LeftWidth + got.CenterWidth + got.RightWidth; sum != tt.width {
					t.Errorf("widths sum to %d, want %d", sum, tt.width)
				}
			}
		})
	}
}

// walk presses Tab (or Shift+Tab) n times starting from the incident list.
func walk(visible [3]bool, n int, forward bool) []Panel {
	p := PanelLeft
	var seen []Panel
	for i := 0; i < n; i++ {
		if forward {
			p = nextVisiblePanel(p, visible)
		} else {
			p = prevVisiblePanel(p, visible)
		}
		seen = append(seen, p)
	}
	return seen
}

func TestFocusCycle(t *testing.T) {
	tests := []struct {
		name     string
		visible  [3]bool
		tab      []Panel
		shiftTab []Panel
	}{
		{
			name:     "full dashboard",
			visible:  allPanels,
			tab:      []Panel{PanelCenter, PanelRight, PanelLeft, PanelCenter},
			shiftTab: []Panel{PanelRight, PanelCenter, PanelLeft, PanelRight},
		},
		{
			name:     "agents hidden",
			visible:  noAgents,
			tab:      []Panel{PanelCenter, PanelLeft, PanelCenter},
			shiftTab: []Panel{PanelCenter, PanelLeft, PanelCenter},
		},
		{
			name:     "detail hidden",
			visible:  noDetail,
			tab:      []Panel{PanelRight, PanelLeft},
			shiftTab: []Panel{PanelRight, PanelLeft},
		},
		{
			// The incident list keeps focus when it is the only panel.
			name:     "incidents zoomed",
			visible:  [3]bool{true, false, false},
			tab:      []Panel{PanelLeft, PanelLeft},
			shiftTab: []Panel{PanelLeft, PanelLeft},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := walk(tt.visible, len(tt.tab), true); !reflect.DeepEqual(got, tt.tab) {
				t.Errorf("tab order = %v, want %v", got, tt.tab)
			}
			if got := walk(tt.visible, len(tt.shiftTab), false); !reflect.DeepEqual(got, tt.shiftTab) {
				t.Errorf("shift+tab order = %v, want %v", got, tt.shiftTab)
			}
		})
	}
}

func TestVisibleCount(t *testing.T) {
	for visible, want := range map[[3]bool]int{
		allPanels:   3,
		noAgents:    2,
		detailAlone: 1,
		{}:          0,
	} {
		if got := visibleCount(visible); got != want {
			t.Errorf("visibleCount(%v) = %d, want %d", visible, got, want)
		}
	}
}

func TestPanelString(t *testing.T) {
	want := map[Panel]string{
		PanelLeft:   "Incidents",
		PanelCenter: "Detail",
		PanelRight:  "Agents",
		Panel(7):    "Unknown",
	}
	for p, name := range want {
		if got := p.String(); got != name {
			t.Errorf("Panel(%d).String() = %q, want %q", int(p), got, name)
		}
	}
}
