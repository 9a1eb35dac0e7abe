package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette is the lipgloss StyleProvider used by the CLI.
type Palette struct {
	styles map[SemanticType]lipgloss.Style
}

// NewPalette returns the default terminal palette.
func NewPalette() *Palette {
	return &Palette{styles: map[SemanticType]lipgloss.Style{
		SemanticInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		SemanticSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		SemanticWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		SemanticError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		SemanticSubtle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}}
}

// GetStyle returns the style for a semantic type, or an empty style.
func (p *Palette) GetStyle(semantic SemanticType) TextStyle {
	if style, ok := p.styles[semantic]; ok {
		return style
	}
	return lipgloss.NewStyle()
}

// IsAvailable reports whether the terminal supports colors.
func (p *Palette) IsAvailable() bool {
	return lipgloss.ColorProfile() != termenv.Ascii
}
