package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("#1F3A5F")
	colorAccent  = lipgloss.Color("#4F9DDE")
	colorMuted   = lipgloss.Color("#8A94A6")
	colorSuccess = lipgloss.Color("#43A047")
	colorError   = lipgloss.Color("#E53935")
	colorWarning = lipgloss.Color("#FFB300")
)

// Styles holds the lipgloss styles used by every page.
type Styles struct {
	Header   lipgloss.Style
	Title    lipgloss.Style
	Body     lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Selected lipgloss.Style
	Label    lipgloss.Style
	Panel    lipgloss.Style
	Help     lipgloss.Style
	Spinner  lipgloss.Style
}

// DefaultStyles returns the dashboard styles. CRM_TUI_PLAIN=1 drops colours.
func DefaultStyles() Styles {
	if strings.TrimSpace(os.Getenv("CRM_TUI_PLAIN")) == "1" {
		plain := lipgloss.NewStyle()
		return Styles{
			Header: plain, Title: plain, Body: plain, Bold: plain, Muted: plain,
			Success: plain, Error: plain, Warning: plain, Selected: plain.Reverse(true),
			Label: plain, Panel: plain, Help: plain, Spinner: plain,
		}
	}
	return Styles{
		Header: lipgloss.NewStyle().
			Background(colorPrimary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),
		Title: lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true),
		Body:  lipgloss.NewStyle(),
		Bold:  lipgloss.NewStyle().Bold(true),
		Muted: lipgloss.NewStyle().Foreground(colorMuted),
		Success: lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(colorWarning),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(colorAccent),
		Label: lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(16),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1),
		Help:    lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1),
		Spinner: lipgloss.NewStyle().Foreground(colorAccent),
	}
}
