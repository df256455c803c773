package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// maxCellWidth bounds table cells so long selectors don't wrap the terminal.
const maxCellWidth = 48

// printer writes CLI output, styled only when it goes to a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok {
		p.styled = term.IsTerminal(int(f.Fd()))
	}
	return p
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) header(s string) {
	fmt.Fprintln(p.w, p.render(headerStyle, s))
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// status renders ok as a green "ok" or a red "FAILED".
func (p *printer) status(ok bool) string {
	if ok {
		return p.render(okStyle, "ok")
	}
	return p.render(failStyle, "FAILED")
}

func (p *printer) dim(s string) string {
	return p.render(dimStyle, s)
}

// table writes rows as left-aligned columns. The first row is the header.
func (p *printer) table(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(truncate(cell, maxCellWidth)))
		}
	}

	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cell = truncate(cell, maxCellWidth)
			cell += strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if r == 0 {
				cell = p.render(headerStyle, cell)
			}
			cells[i] = cell
		}
		fmt.Fprintln(p.w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

// truncate shortens s to maxWidth visual columns, adding "..." if it had to.
// ANSI escape codes and wide characters are measured correctly.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}
