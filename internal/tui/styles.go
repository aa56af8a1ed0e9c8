package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#E1306C")
	colorAccent  = lipgloss.Color("#F77737")
	colorText    = lipgloss.Color("#F9FAFB")
	colorMuted   = lipgloss.Color("#9CA3AF")
	colorDim     = lipgloss.Color("#6B7280")
	colorError   = lipgloss.Color("#EF4444")
	colorBorder  = lipgloss.Color("#4B5563")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	ownerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText)

	captionStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	likedStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)

	indicatorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	storyCardStyle = cardStyle.
			BorderForeground(colorAccent)
)
