package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"pagepilot/internal/agent"
	"pagepilot/internal/conversation"
	"pagepilot/internal/data/embedded"
	"pagepilot/internal/model"
	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

// DefaultHistoryLength is the number of recent interactions rendered into prompts.
const DefaultHistoryLength = 6

// maxPageExcerpt bounds the page content copied into prompts.
const maxPageExcerpt = 2000

var (
	reflectionTemplate = template.Must(template.New("reflection").Parse(embedded.ReflectionPrompt))
	reviseTemplate     = template.Must(template.New("revise").Parse(embedded.RevisePrompt))
	suggestTemplate    = template.Must(template.New("suggest").Parse(embedded.SuggestPrompt))
	goalTemplate       = template.Must(template.New("goal").Parse(embedded.GoalPrompt))
)

// ErrEmptyReply is returned when the model answers a service prompt with nothing usable.
var ErrEmptyReply = errors.New("model returned an empty reply")

// promptData is the value every service template is executed with.
type promptData struct {
	History    string
	Goal       string
	Input      string
	Evaluation string
	Page       string
	Language   string
	Limit      int
	Tools      []pilottypes.ToolDefinition
}

func render(tmpl *template.Template, data promptData) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}

// history renders the last n interactions of a conversation as JSON.
func history(conv *conversation.Conversation, n int) (string, error) {
	view := &conversation.Conversation{ID: conv.ID, Interactions: conv.GetInteractions()}
	if n > 0 && len(view.Interactions) > n {
		view.Interactions = view.Interactions[len(view.Interactions)-n:]
	}
	return conversation.ConversationJSONSerializer{}.Serialize(view)
}

func currentGoal(conv *conversation.Conversation) (goal, input string) {
	last := conv.LastInteraction()
	if last == nil {
		return "", ""
	}
	input = last.InputMessage.Text()
	goal = last.Goal
	if goal == "" {
		goal = input
	}
	return goal, input
}

func excerpt(content string) string {
	return truncate(strings.TrimSpace(content), maxPageExcerpt)
}

// ask sends a single prompt and returns the materialized reply.
func ask(ctx context.Context, svc agent.ModelService, req model.ChatRequest) (string, error) {
	th := svc.ChatCompletion(ctx, req)
	if th.Type == thought.TypeError {
		return "", th.Err
	}
	text, err := th.GetMessage(ctx, nil)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// decodeJSONReply parses the first JSON object of a model reply, tolerating code fences and
// surrounding prose.
func decodeJSONReply(reply string, v any) error {
	_, content := conversation.SplitReasoning(reply)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return fmt.Errorf("reply is not a JSON object: %q", truncate(reply, 80))
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
