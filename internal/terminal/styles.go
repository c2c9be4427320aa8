// Package terminal runs webterm commands from a local terminal: a one-shot
// printer and an interactive read-eval loop over the same pipeline the
// browser uses.
package terminal

import "github.com/charmbracelet/lipgloss"

// StyleConfig defines visual styles
type StyleConfig struct {
	PromptColor  lipgloss.Color
	SubtleColor  lipgloss.Color
	ErrorColor   lipgloss.Color
	SuccessColor lipgloss.Color
	WarningColor lipgloss.Color
}

// DefaultStyleConfig returns the default style configuration
func DefaultStyleConfig() *StyleConfig {
	return &StyleConfig{
		PromptColor:  lipgloss.Color("12"),  // Blue
		SubtleColor:  lipgloss.Color("241"), // Grey
		ErrorColor:   lipgloss.Color("9"),   // Red
		SuccessColor: lipgloss.Color("10"),  // Green
		WarningColor: lipgloss.Color("11"),  // Yellow
	}
}

func (s *StyleConfig) prompt() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.PromptColor).Bold(true)
}

func (s *StyleConfig) subtle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.SubtleColor)
}

func (s *StyleConfig) err() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.ErrorColor)
}

func (s *StyleConfig) success() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.SuccessColor)
}

func (s *StyleConfig) warning() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.WarningColor)
}
