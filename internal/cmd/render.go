package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// renderer writes user-facing command output, styled only when it goes to a terminal.
type renderer struct {
	out    io.Writer
	styled bool

	okStyle    lipgloss.Style
	warnStyle  lipgloss.Style
	errStyle   lipgloss.Style
	labelStyle lipgloss.Style
}

func newRenderer(out io.Writer) *renderer {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) && strings.TrimSpace(os.Getenv("NO_COLOR")) == ""
	}
	return &renderer{
		out:        out,
		styled:     styled,
		okStyle:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		warnStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		errStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		labelStyle: lipgloss.NewStyle().Faint(true),
	}
}

func (r *renderer) render(style lipgloss.Style, s string) string {
	if !r.styled {
		return s
	}
	return style.Render(s)
}

func (r *renderer) success(msg string) {
	_, _ = fmt.Fprintln(r.out, r.render(r.okStyle, msg))
}

func (r *renderer) warn(msg string) {
	_, _ = fmt.Fprintln(r.out, r.render(r.warnStyle, msg))
}

func (r *renderer) fail(msg string) {
	_, _ = fmt.Fprintln(r.out, r.render(r.errStyle, msg))
}

// field prints an aligned "label: value" line.
func (r *renderer) field(label, value string) {
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.render(r.labelStyle, fmt.Sprintf("%-14s", label+":")), value)
}
