package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// isInteractive reports whether stdout is an actual terminal, gating both
// color output and interactive prompts so piped output stays plain.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func init() {
	if !isInteractive() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// RenderAccent styles s as the CLI's accent color when writing to a
// terminal; piped output gets the plain string back.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderPass styles s to indicate success.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn styles s to indicate a non-fatal warning.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderFail styles s to indicate failure.
func RenderFail(s string) string { return render(failStyle, s) }

// RenderDim styles s as secondary/less important text.
func RenderDim(s string) string { return render(dimStyle, s) }

func render(style lipgloss.Style, s string) string {
	if !isInteractive() {
		return s
	}
	return style.Render(s)
}
