// Package assistants provides the concrete agents behind the pagepilot CLI: a page reader, a translator
// and the Assistant that composes them.
package assistants

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode/utf8"

	"pagepilot/internal/data/embedded"
	"pagepilot/internal/logger"
	"pagepilot/pkg/pilottypes"
)

// MaxPromptContent bounds how much page text is embedded in the system prompt.
const MaxPromptContent = 8000

const wordsPerMinute = 200

var pageSystemTemplate = template.Must(template.New("page_system").Parse(embedded.PageSystemPrompt))

// Page is a document loaded for the assistant to work on.
type Page struct {
	Title   string
	Source  string
	Content string
}

// Heading is one entry of a page outline.
type Heading struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Line  int    `json:"line"`
}

// Match is a line of the page containing a searched keyword.
type Match struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Statistics summarizes the size of a page.
type Statistics struct {
	Characters     int `json:"characters"`
	Words          int `json:"words"`
	Lines          int `json:"lines"`
	Headings       int `json:"headings"`
	ReadingMinutes int `json:"reading_minutes"`
}

// ReadPage loads a page from a file, or from stdin when path is "-".
// The title is the first heading, falling back to the file name.
func ReadPage(path string, stdin io.Reader) (Page, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return Page{}, fmt.Errorf("failed to read page %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return Page{}, fmt.Errorf("page %s is not UTF-8 text", path)
	}

	page := NewPage(string(data))
	if path != "-" {
		page.Source = path
		if page.Title == "" {
			page.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
	}
	return page, nil
}

// NewPage creates a page from its text, titled by its first heading.
func NewPage(content string) Page {
	page := Page{Content: content}
	if outline := page.Outline(); len(outline) > 0 {
		page.Title = outline[0].Title
	}
	return page
}

// Outline returns the markdown headings of the page in document order.
// Lines inside fenced code blocks are ignored.
func (p Page) Outline() []Heading {
	headings := []Heading{}
	fenced := false
	scanner := bufio.NewScanner(strings.NewReader(p.Content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(text, "```") {
			fenced = !fenced
			continue
		}
		if fenced || !strings.HasPrefix(text, "#") {
			continue
		}
		level := len(text) - len(strings.TrimLeft(text, "#"))
		title := strings.TrimSpace(text[level:])
		if level > 6 || title == "" || !strings.HasPrefix(text[level:], " ") {
			continue
		}
		headings = append(headings, Heading{Level: level, Title: title, Line: line})
	}
	return headings
}

// Find returns up to limit lines containing keyword, ignoring case, and the total number of
// matching lines. A non-positive limit returns every match.
func (p Page) Find(keyword string, limit int) ([]Match, int) {
	matches := []Match{}
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return matches, 0
	}

	total := 0
	for i, line := range strings.Split(p.Content, "\n") {
		if !strings.Contains(strings.ToLower(line), keyword) {
			continue
		}
		total++
		if limit <= 0 || len(matches) < limit {
			matches = append(matches, Match{Line: i + 1, Text: strings.TrimSpace(line)})
		}
	}
	return matches, total
}

// Statistics counts the characters, words, lines and headings of the page.
func (p Page) Statistics() Statistics {
	words := len(strings.Fields(p.Content))
	lines := 0
	if p.Content != "" {
		lines = strings.Count(strings.TrimRight(p.Content, "\n"), "\n") + 1
	}
	return Statistics{
		Characters:     utf8.RuneCountInString(p.Content),
		Words:          words,
		Lines:          lines,
		Headings:       len(p.Outline()),
		ReadingMinutes: int(math.Ceil(float64(words) / wordsPerMinute)),
	}
}

// SystemPrompt renders the prompt that grounds the assistant in the page.
func (p Page) SystemPrompt(language string) string {
	content := p.Content
	if utf8.RuneCountInString(content) > MaxPromptContent {
		content = string([]rune(content)[:MaxPromptContent]) + "\n[...]"
	}

	var sb strings.Builder
	err := pageSystemTemplate.Execute(&sb, struct {
		Title, Source, Content, Language string
	}{p.Title, p.Source, content, language})
	if err != nil {
		logger.Error("Failed to render page prompt", "error", err)
		return ""
	}
	return sb.String()
}

// Environment returns the turn environment for the page.
func (p Page) Environment(language string) pilottypes.Environment {
	return pilottypes.Environment{
		SystemPrompt: func() string { return p.SystemPrompt(language) },
		Content:      p.Content,
	}
}
