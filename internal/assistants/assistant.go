package assistants

import (
	"pagepilot/internal/agent"
)

// Assistant is the agent used by the CLI: a composite over a PageAgent and a TranslateAgent.
type Assistant struct {
	*agent.CompositeAgent
	page       *PageAgent
	translator *TranslateAgent
}

// NewAssistant builds the assistant for a page. opts configures the composite loop; the members
// share its model and never persist or reflect on their own.
func NewAssistant(opts agent.Options, page Page, language string) (*Assistant, error) {
	member := agent.Options{Model: opts.Model, Tracer: opts.Tracer}

	pageAgent, err := NewPageAgent(member, page, language)
	if err != nil {
		return nil, err
	}
	translator, err := NewTranslateAgent(member)
	if err != nil {
		return nil, err
	}

	if opts.Name == "" {
		opts.Name = "assistant"
	}
	if opts.Environment == nil {
		opts.Environment = staticEnvironment(page.Environment(language))
	}
	composite, err := agent.NewCompositeAgent(opts, pageAgent, translator)
	if err != nil {
		return nil, err
	}

	return &Assistant{CompositeAgent: composite, page: pageAgent, translator: translator}, nil
}

// PageAgent returns the page member.
func (a *Assistant) PageAgent() *PageAgent {
	return a.page
}

// Translator returns the translation member.
func (a *Assistant) Translator() *TranslateAgent {
	return a.translator
}
