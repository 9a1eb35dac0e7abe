package services

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"pagepilot/internal/logger"
)

// DefaultWordWrap is the column width replies are wrapped at.
const DefaultWordWrap = 80

// MarkdownService renders assistant replies for the terminal using Glamour.
type MarkdownService struct {
	initialized bool
	style       string
	width       int
	renderer    *glamour.TermRenderer
}

// NewMarkdownService creates a MarkdownService for a Glamour style ("auto", "dark", "light", "notty", "ascii").
func NewMarkdownService(style string) *MarkdownService {
	if style == "" {
		style = "auto"
	}
	return &MarkdownService{style: style, width: DefaultWordWrap}
}

// Name returns the service name "markdown" for registration.
func (m *MarkdownService) Name() string {
	return "markdown"
}

// Initialize builds the renderer. Terminals without color support get the notty style.
func (m *MarkdownService) Initialize() error {
	renderer, err := m.newRenderer(m.width)
	if err != nil {
		return err
	}

	m.renderer = renderer
	m.initialized = true

	logger.Debug("MarkdownService initialized successfully", "style", m.effectiveStyle())
	return nil
}

// Render renders markdown content to ANSI terminal output.
func (m *MarkdownService) Render(markdown string) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}

	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return rendered, nil
}

// RenderPlain renders markdown and strips every ANSI sequence from the result.
func (m *MarkdownService) RenderPlain(markdown string) (string, error) {
	rendered, err := m.Render(markdown)
	if err != nil {
		return "", err
	}
	return ansi.Strip(rendered), nil
}

// SetWordWrap sets the word wrap width for markdown rendering.
func (m *MarkdownService) SetWordWrap(width int) error {
	if !m.initialized {
		return fmt.Errorf("markdown service not initialized")
	}

	if width <= 0 {
		return fmt.Errorf("word wrap width must be positive, got %d", width)
	}

	renderer, err := m.newRenderer(width)
	if err != nil {
		return err
	}

	m.renderer = renderer
	m.width = width
	logger.Debug("MarkdownService word wrap updated", "width", width)
	return nil
}

// GetAvailableStyles returns a list of available Glamour styles.
func (m *MarkdownService) GetAvailableStyles() []string {
	return []string{
		"auto",  // Auto-detect based on terminal
		"dark",  // Dark theme
		"light", // Light theme
		"notty", // Plain text (no colors)
		"ascii", // ASCII-only styling
	}
}

func (m *MarkdownService) effectiveStyle() string {
	if lipgloss.ColorProfile() == termenv.Ascii && m.style == "auto" {
		return "notty"
	}
	return m.style
}

func (m *MarkdownService) newRenderer(width int) (*glamour.TermRenderer, error) {
	style := m.effectiveStyle()
	styleOption := glamour.WithStandardStyle(style)
	if style == "auto" {
		styleOption = glamour.WithAutoStyle()
	}

	renderer, err := glamour.NewTermRenderer(styleOption, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer with style '%s': %w", style, err)
	}
	return renderer, nil
}
