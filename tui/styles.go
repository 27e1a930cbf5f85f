// ABOUTME: Defines lipgloss styles for the configuration view: heading, section headers, rows, and flash.
// ABOUTME: Row styles distinguish the focused row, read-only values, and validation errors.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Heading
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Accordion section headers
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75"))

	// Rows
	CursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	LabelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(34)
	ValueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	ReadOnlyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	InfoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Flash and field errors
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	// Inline editor
	EditorStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// StyleForFlash returns the style for a flash message.
func StyleForFlash(isError bool) lipgloss.Style {
	if isError {
		return ErrorStyle
	}
	return SuccessStyle
}
