package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

var (
	scrollbarThumbStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	scrollbarTrackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	scrollbarMarkStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// renderScrollbar builds a 1-char-wide vertical scrollbar column for vp.
// Each row maps proportionally to the total content; the thumb shows the
// visible portion and marks flag content lines (e.g. the start of the source
// listing). Returns "" when everything fits.
func renderScrollbar(vp viewport.Model, marks []int) string {
	height := vp.Height
	totalLines := vp.TotalLineCount()
	if height <= 0 || totalLines <= height {
		return ""
	}

	thumbSize := max(1, height*height/totalLines)
	thumbStart := vp.YOffset * height / totalLines
	if thumbStart+thumbSize > height {
		thumbStart = height - thumbSize
	}

	marked := make([]bool, height)
	for _, line := range marks {
		row := min(line*height/totalLines, height-1)
		if row >= 0 {
			marked[row] = true
		}
	}

	rows := make([]string, height)
	for i := range height {
		inThumb := i >= thumbStart && i < thumbStart+thumbSize
		switch {
		case inThumb:
			rows[i] = scrollbarThumbStyle.Render("┃")
		case marked[i]:
			rows[i] = scrollbarMarkStyle.Render("●")
		default:
			rows[i] = scrollbarTrackStyle.Render("│")
		}
	}
	return strings.Join(rows, "\n")
}
