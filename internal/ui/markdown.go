package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
)

const minMarkdownWidth = 10

// detailRenderer turns the incident body into styled terminal text. The
// glamour renderer is rebuilt only when the panel width changes, and the last
// result is reused while the incident body is unchanged between polls.
type detailRenderer struct {
	term      *glamour.TermRenderer
	termWidth int

	lastSrc   string
	lastWidth int
	lastOut   string
}

// Render returns src rendered for width columns. When glamour is unavailable
// the source is only word wrapped.
func (d *detailRenderer) Render(src string, width int) string {
	width = max(width, minMarkdownWidth)
	if d.lastOut != "" && src == d.lastSrc && width == d.lastWidth {
		return d.lastOut
	}

	out, ok := d.glamourize(src, width)
	if !ok {
		out = wrapPlain(src, width)
	}
	d.lastSrc, d.lastWidth, d.lastOut = src, width, out
	return out
}

func (d *detailRenderer) glamourize(src string, width int) (string, bool) {
	if d.term == nil || d.termWidth != width {
		term, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
			glamour.WithChromaFormatter("terminal256"),
		)
		if err != nil {
			return "", false
		}
		d.term, d.termWidth = term, width
	}
	out, err := d.term.Render(src)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(out), true
}

// wrapPlain breaks src at spaces so no line is wider than width cells.
func wrapPlain(src string, width int) string {
	if width <= 0 {
		return src
	}
	lines := strings.Split(ansi.Wordwrap(src, width, ""), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}
