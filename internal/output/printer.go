package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Printer writes semantic messages. It is safe for concurrent use.
type Printer struct {
	styleProvider StyleProvider
	writer        io.Writer
	mode          Mode
	prefix        string

	mu sync.Mutex
}

// NewPrinter creates a Printer writing to os.Stdout in ModeAuto.
func NewPrinter(options ...Option) *Printer {
	p := &Printer{
		writer: os.Stdout,
		mode:   ModeAuto,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Print writes text without a trailing newline. In JSON mode it still writes a whole line.
func (p *Printer) Print(text string) {
	p.output(SemanticPlain, text, false)
}

// Printf writes formatted text without a trailing newline.
func (p *Printer) Printf(format string, args ...interface{}) {
	p.output(SemanticPlain, fmt.Sprintf(format, args...), false)
}

// Println writes text followed by a newline.
func (p *Printer) Println(text string) {
	p.output(SemanticPlain, text, true)
}

// Info writes informational text.
func (p *Printer) Info(text string) {
	p.output(SemanticInfo, text, true)
}

// Success writes a confirmation.
func (p *Printer) Success(text string) {
	p.output(SemanticSuccess, text, true)
}

// Warning writes a warning.
func (p *Printer) Warning(text string) {
	p.output(SemanticWarning, text, true)
}

// Error writes an error message.
func (p *Printer) Error(text string) {
	p.output(SemanticError, text, true)
}

// Subtle writes secondary text.
func (p *Printer) Subtle(text string) {
	p.output(SemanticSubtle, text, true)
}

// Answer writes an assistant answer. Answers are never restyled since they arrive rendered.
func (p *Printer) Answer(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	p.output(SemanticAnswer, text, true)
}

func (p *Printer) output(semantic SemanticType, text string, newline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out string
	switch p.mode {
	case ModeJSON:
		out = renderJSON(semantic, text)
	default:
		out = p.renderText(semantic, text)
		if newline && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
	}

	if p.prefix != "" {
		out = p.prefix + out
	}
	_, _ = fmt.Fprint(p.writer, out)
}

func (p *Printer) renderText(semantic SemanticType, text string) string {
	if semantic == SemanticAnswer || semantic == SemanticPlain || !p.IsStylable() {
		return plainText(semantic, text)
	}
	return p.styleProvider.GetStyle(semantic).Render(text)
}

// plainText keeps the meaning of warnings and errors visible without colors.
func plainText(semantic SemanticType, text string) string {
	switch semantic {
	case SemanticError:
		return "Error: " + text
	case SemanticWarning:
		return "Warning: " + text
	default:
		return text
	}
}

func renderJSON(semantic SemanticType, text string) string {
	data, err := json.Marshal(map[string]interface{}{
		"type":    semantic,
		"message": text,
	})
	if err != nil {
		return text + "\n"
	}
	return string(data) + "\n"
}

// SetWriter changes the output writer.
func (p *Printer) SetWriter(writer io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = writer
}

// Writer returns the output writer.
func (p *Printer) Writer() io.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer
}

// SetMode changes the output mode.
func (p *Printer) SetMode(mode Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}

// Mode returns the output mode.
func (p *Printer) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// IsStylable reports whether the printer applies styles.
func (p *Printer) IsStylable() bool {
	return p.mode == ModeAuto && p.styleProvider != nil && p.styleProvider.IsAvailable()
}
