// Package output provides the console output of the PagePilot CLI.
// A Printer writes semantic messages as styled text, plain text or JSON lines.
package output

// StyleProvider supplies the style for each semantic type.
type StyleProvider interface {
	// GetStyle returns the TextStyle for a semantic type such as "info" or "error".
	GetStyle(semantic SemanticType) TextStyle

	// IsAvailable reports whether styles can be used, e.g. false on terminals without colors.
	IsAvailable() bool
}

// TextStyle renders text with styling. lipgloss.Style implements it.
type TextStyle interface {
	Render(text ...string) string
}

// Mode selects how a Printer renders messages.
type Mode int

const (
	// ModeAuto styles output when the style provider is available.
	ModeAuto Mode = iota

	// ModePlain never styles output.
	ModePlain

	// ModeJSON writes one {"type","message"} object per message.
	ModeJSON
)

// SemanticType is the meaning of a message, used to pick its style.
type SemanticType string

const (
	// SemanticPlain is text without semantic meaning.
	SemanticPlain SemanticType = "plain"
	// SemanticInfo is informational text.
	SemanticInfo SemanticType = "info"
	// SemanticSuccess confirms a completed action.
	SemanticSuccess SemanticType = "success"
	// SemanticWarning is a recoverable problem or usage hint.
	SemanticWarning SemanticType = "warning"
	// SemanticError is a failure.
	SemanticError SemanticType = "error"
	// SemanticSubtle is secondary text such as hints and metadata.
	SemanticSubtle SemanticType = "subtle"
	// SemanticAnswer is an assistant answer, usually already rendered markdown.
	SemanticAnswer SemanticType = "answer"
)
