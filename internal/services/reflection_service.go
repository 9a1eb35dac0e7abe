package services

import (
	"context"
	"fmt"
	"strings"

	"pagepilot/internal/agent"
	"pagepilot/internal/conversation"
	"pagepilot/internal/logger"
	"pagepilot/internal/model"
	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

// DefaultSuggestions is the number of follow-up questions requested from the model.
const DefaultSuggestions = 3

// ReflectionService evaluates assistant answers with a second model call and proposes follow-ups.
type ReflectionService struct {
	model         agent.ModelService
	language      string
	historyLength int
	suggestions   int
}

// reflectionReply is the JSON object the reflection prompt asks for.
type reflectionReply struct {
	Status     string `json:"status"`
	Evaluation string `json:"evaluation"`
	Action     *struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"action,omitempty"`
	Revision string `json:"revision,omitempty"`
}

// NewReflectionService creates a reflection service answering in language (empty keeps the model's choice).
func NewReflectionService(m agent.ModelService, language string) *ReflectionService {
	return &ReflectionService{
		model:         m,
		language:      language,
		historyLength: DefaultHistoryLength,
		suggestions:   DefaultSuggestions,
	}
}

// Name returns the service name "reflection" for registration.
func (r *ReflectionService) Name() string {
	return "reflection"
}

// Initialize checks that the service has a model to talk to.
func (r *ReflectionService) Initialize() error {
	if r.model == nil {
		return fmt.Errorf("reflection service: %w", model.ErrNotConfigured)
	}
	logger.ServiceOperation("reflection", "initialize", "completed")
	return nil
}

// Reflection asks the model whether the latest answer reaches the goal of the turn.
// Unknown statuses are treated as finished.
func (r *ReflectionService) Reflection(ctx context.Context, env pilottypes.Environment, conv *conversation.Conversation, tools []pilottypes.ToolDefinition) (agent.ReflectionResult, error) {
	hist, err := history(conv, r.historyLength)
	if err != nil {
		return agent.ReflectionResult{}, err
	}
	goal, _ := currentGoal(conv)
	prompt, err := render(reflectionTemplate, promptData{History: hist, Goal: goal, Tools: tools})
	if err != nil {
		return agent.ReflectionResult{}, err
	}

	reply, err := ask(ctx, r.model, model.ChatRequest{
		SystemPrompt: env.Prompt(),
		UserInput:    prompt,
		ResponseType: model.ResponseJSON,
	})
	if err != nil {
		return agent.ReflectionResult{}, fmt.Errorf("reflection failed: %w", err)
	}

	var parsed reflectionReply
	if err := decodeJSONReply(reply, &parsed); err != nil {
		return agent.ReflectionResult{}, fmt.Errorf("reflection failed: %w", err)
	}
	logger.Debug("Reflection verdict", "status", parsed.Status, "evaluation", parsed.Evaluation)

	result := agent.ReflectionResult{Status: agent.ReflectionFinished, Evaluation: parsed.Evaluation}
	if !strings.EqualFold(parsed.Status, agent.ReflectionRevise) {
		return result, nil
	}
	result.Status = agent.ReflectionRevise

	switch {
	case parsed.Action != nil && known(tools, parsed.Action.Name):
		result.Thought = thought.NewActions([]pilottypes.Action{
			pilottypes.NewAction(parsed.Action.Name, parsed.Action.Arguments),
		})
	case strings.TrimSpace(parsed.Revision) != "":
		result.Thought = thought.NewMessage(strings.TrimSpace(parsed.Revision))
	default:
		result.Thought, err = r.Revise(ctx, env, conv, parsed.Evaluation)
		if err != nil {
			return agent.ReflectionResult{}, err
		}
	}
	return result, nil
}

// Revise streams a rewritten answer that addresses an evaluation.
func (r *ReflectionService) Revise(ctx context.Context, env pilottypes.Environment, conv *conversation.Conversation, evaluation string) (*thought.Thought, error) {
	hist, err := history(conv, r.historyLength)
	if err != nil {
		return nil, err
	}
	prompt, err := render(reviseTemplate, promptData{History: hist, Evaluation: evaluation, Language: r.language})
	if err != nil {
		return nil, err
	}

	th := r.model.ChatCompletion(ctx, model.ChatRequest{
		SystemPrompt: env.Prompt(),
		UserInput:    prompt,
		Stream:       true,
	})
	if th.Type == thought.TypeError {
		return nil, fmt.Errorf("revision failed: %w", th.Err)
	}
	return th, nil
}

// Suggest asks the model for follow-up questions on the conversation.
func (r *ReflectionService) Suggest(ctx context.Context, env pilottypes.Environment, conv *conversation.Conversation) ([]string, error) {
	hist, err := history(conv, r.historyLength)
	if err != nil {
		return nil, err
	}
	prompt, err := render(suggestTemplate, promptData{
		History:  hist,
		Page:     excerpt(env.Content),
		Language: r.language,
		Limit:    r.suggestions,
	})
	if err != nil {
		return nil, err
	}

	reply, err := ask(ctx, r.model, model.ChatRequest{UserInput: prompt, ResponseType: model.ResponseJSON})
	if err != nil {
		return nil, fmt.Errorf("suggestion failed: %w", err)
	}

	var parsed struct {
		Questions []string `json:"questions"`
	}
	if err := decodeJSONReply(reply, &parsed); err != nil {
		return nil, fmt.Errorf("suggestion failed: %w", err)
	}

	questions := make([]string, 0, len(parsed.Questions))
	for _, q := range parsed.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
		if len(questions) == r.suggestions {
			break
		}
	}
	return questions, nil
}

func known(tools []pilottypes.ToolDefinition, name string) bool {
	for _, def := range tools {
		if def.Name == name {
			return true
		}
	}
	return false
}
