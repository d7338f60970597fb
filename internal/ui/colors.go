package ui

import "github.com/charmbracelet/lipgloss"

const (
	green  = lipgloss.Color("#1DB954")
	mint   = lipgloss.Color("#04B575")
	red    = lipgloss.Color("#FF0000")
	orange = lipgloss.Color("#FFA500")
	gray   = lipgloss.Color("#626262")
)

var styles = newPalette()

// palette is the stylesheet shared by every view.
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	bar   lipgloss.Style
}

func newPalette() palette {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return palette{
		title: fg(green).Bold(true).MarginBottom(1),
		ok:    fg(mint).Bold(true),
		err:   fg(red).Bold(true),
		warn:  fg(orange),
		help:  fg(gray).Italic(true),
		bar:   fg(green),
	}
}
