package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/agentboard/internal/state"
)

// Header renders the title bar and the prompt under test.
type Header struct {
	width  int
	prompt string
}

// NewHeader creates a new Header.
func NewHeader(prompt string) *Header {
	return &Header{
		width:  80,
		prompt: prompt,
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// View renders the header.
func (h *Header) View() string {
	// Gradient colors for the title
	colors := []string{"#FF6B6B", "#FF8E53", "#FFC857", "#4ECDC4", "#45B7D1", "#96E6A1"}

	title := "AGENTBOARD"
	var styled string
	for i, r := range title {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(colors[i%len(colors)])).Bold(true)
		styled += style.Render(string(r))
	}

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Italic(true).
		Render("Multi-agent benchmark")

	promptWidth := h.width - 4
	if promptWidth < 20 {
		promptWidth = 20
	}
	prompt := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("238")).
		Padding(0, 1).
		Width(promptWidth).
		Render(state.TruncatePrompt(h.prompt, promptWidth*3))

	return lipgloss.NewStyle().
		PaddingBottom(1).
		Render(lipgloss.JoinVertical(lipgloss.Left, styled+"  "+subtitle, prompt))
}
