package assistants

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"pagepilot/internal/agent"
	"pagepilot/internal/data/embedded"
	"pagepilot/internal/model"
	"pagepilot/internal/tools"
)

// Languages maps the language codes accepted by the translate tool to their names.
var Languages = map[string]string{
	"en": "English",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
}

var translateTemplate = template.Must(template.New("translate").Parse(embedded.TranslatePrompt))

type translateParams struct {
	Text           string `json:"text" jsonschema:"description=Text to translate"`
	TargetLanguage string `json:"target_language" jsonschema:"description=Language code to translate into,enum=en,enum=zh,enum=ja,enum=ko,enum=fr,enum=de,enum=es"`
}

var translateTools = tools.NewBuilder[*TranslateAgent]().
	Add(tools.MustDefinitionFromStruct("translate",
		"Translate a text into another language", translateParams{}), translate).
	MustBuild()

// TranslateAgent translates text with the chat model. Its tool answers with a streamed thought
// that becomes the reply as is.
type TranslateAgent struct {
	*agent.ThoughtAgent
	model agent.ModelService
}

// NewTranslateAgent creates a translator.
func NewTranslateAgent(opts agent.Options) (*TranslateAgent, error) {
	if opts.Name == "" {
		opts.Name = "translator"
	}
	t := &TranslateAgent{model: opts.Model}
	opts.Toolset = tools.Bind(translateTools, t)

	base, err := agent.NewThoughtAgent(opts)
	if err != nil {
		return nil, err
	}
	t.ThoughtAgent = base
	return t, nil
}

func translate(ctx context.Context, t *TranslateAgent, args tools.Args) (any, error) {
	text := strings.TrimSpace(args.String(0))
	if text == "" {
		return nil, fmt.Errorf("translate: text is empty")
	}
	code := strings.ToLower(args.String(1))
	language, ok := Languages[code]
	if !ok {
		return nil, fmt.Errorf("translate: unsupported target language %q", args.String(1))
	}

	var prompt strings.Builder
	if err := translateTemplate.Execute(&prompt, map[string]string{"Language": language, "Text": text}); err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}

	// error thoughts are returned too: they become the answer of the turn
	return t.model.ChatCompletion(ctx, model.ChatRequest{UserInput: prompt.String(), Stream: true}), nil
}
