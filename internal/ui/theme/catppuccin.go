package theme

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha.
var (
	Base     = lipgloss.Color("#1e1e2e")
	Mantle   = lipgloss.Color("#181825")
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Lavender = lipgloss.Color("#b4befe")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Yellow   = lipgloss.Color("#f9e2af")
	Peach    = lipgloss.Color("#fab387")
	Red      = lipgloss.Color("#f38ba8")

	App = lipgloss.NewStyle().
		Background(Base).
		Foreground(Text).
		Padding(1, 2)

	Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Background(Mantle).
		Foreground(Text).
		Padding(1, 2)

	Title = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted = lipgloss.NewStyle().Foreground(Subtext0)
	Hot   = lipgloss.NewStyle().Foreground(Peach).Bold(true)
	Clock = lipgloss.NewStyle().Foreground(Lavender).Bold(true)

	badge = lipgloss.NewStyle().Padding(0, 1).Foreground(Base).Bold(true)
)

// Badge renders a short state label, colored by state. Unknown states fall
// back to the muted surface color.
func Badge(state string) string {
	color := Surface1
	switch state {
	case "running", "synced", "online":
		color = Green
	case "paused", "pending":
		color = Yellow
	case "conflict", "offline", "cooldown":
		color = Red
	case "done":
		color = Sapphire
	}
	return badge.Background(color).Render(state)
}
