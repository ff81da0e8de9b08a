package tui

import "github.com/charmbracelet/lipgloss"

// Color Palette
// This is the single source of truth for all TUI colors.
var (
	salmonPink  = lipgloss.Color("#FFB3BA") // Soft pastel salmon pink - primary accent, outdated addons
	coralPink   = lipgloss.Color("#FFCCCB") // Lighter coral accent - selection
	mintGreen   = lipgloss.Color("#A8E6CF") // Soft mint green - up to date
	mutedGray   = lipgloss.Color("#6B7280") // Muted gray - secondary text, unknown versions
	brightWhite = lipgloss.Color("#F9FAFB") // Bright white - primary text
)

// Common Styles
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	tipsStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	statusStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	// Result rows
	outdatedStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	upToDateStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	unknownStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	selectedStyle = lipgloss.NewStyle().
			Foreground(coralPink).
			Bold(true)

	// Container Styles
	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Padding(0, 1)

	detailsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)

	detailsTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(salmonPink)

	detailsLabelStyle = lipgloss.NewStyle().
				Foreground(mutedGray)

	detailsValueStyle = lipgloss.NewStyle().
				Foreground(brightWhite)

	toastStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Italic(true)
)
