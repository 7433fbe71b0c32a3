package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds all lipgloss styles for the popup.
type Styles struct {
	App          lipgloss.Style
	Title        lipgloss.Style
	User         lipgloss.Style
	Page         lipgloss.Style
	Bookmarked   lipgloss.Style
	Item         lipgloss.Style
	ItemSelected lipgloss.Style
	URL          lipgloss.Style
	Tag          lipgloss.Style
	TagActive    lipgloss.Style
	Empty        lipgloss.Style
	Success      lipgloss.Style
	Error        lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	primary := lipgloss.AdaptiveColor{Light: "#505050", Dark: "#A0A0A0"}
	subtle := lipgloss.AdaptiveColor{Light: "#888888", Dark: "#606060"}
	accent := lipgloss.AdaptiveColor{Light: "#2563EB", Dark: "#60A5FA"}

	return Styles{
		App:          lipgloss.NewStyle().Padding(1, 2),
		Title:        lipgloss.NewStyle().Bold(true).Foreground(accent),
		User:         lipgloss.NewStyle().Foreground(subtle),
		Page:         lipgloss.NewStyle().Foreground(primary),
		Bookmarked:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		Item:         lipgloss.NewStyle().Foreground(primary).PaddingLeft(1),
		ItemSelected: lipgloss.NewStyle().PaddingLeft(1).Background(accent).Foreground(lipgloss.Color("#1A1A1A")),
		URL:          lipgloss.NewStyle().Foreground(subtle),
		Tag:          lipgloss.NewStyle().Foreground(subtle),
		TagActive:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		Empty:        lipgloss.NewStyle().Foreground(subtle).Italic(true),
		Success:      lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A")),
		Error:        lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")),
	}
}
