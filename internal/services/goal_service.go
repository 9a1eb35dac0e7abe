package services

import (
	"context"
	"fmt"
	"strings"

	"pagepilot/internal/agent"
	"pagepilot/internal/conversation"
	"pagepilot/internal/logger"
	"pagepilot/internal/model"
	"pagepilot/pkg/pilottypes"
)

// GoalService infers what the user wants to achieve with the latest message.
type GoalService struct {
	model         agent.ModelService
	historyLength int
}

// NewGoalService creates a goal inference service.
func NewGoalService(m agent.ModelService) *GoalService {
	return &GoalService{model: m, historyLength: DefaultHistoryLength}
}

// Name returns the service name "goal" for registration.
func (g *GoalService) Name() string {
	return "goal"
}

// Initialize checks that the service has a model to talk to.
func (g *GoalService) Initialize() error {
	if g.model == nil {
		return fmt.Errorf("goal service: %w", model.ErrNotConfigured)
	}
	logger.ServiceOperation("goal", "initialize", "completed")
	return nil
}

// Goal returns a one sentence goal for the latest user message.
func (g *GoalService) Goal(ctx context.Context, env pilottypes.Environment, conv *conversation.Conversation, tools []pilottypes.ToolDefinition) (string, error) {
	hist, err := history(conv, g.historyLength)
	if err != nil {
		return "", err
	}
	_, input := currentGoal(conv)
	prompt, err := render(goalTemplate, promptData{History: hist, Input: input, Tools: tools})
	if err != nil {
		return "", err
	}

	reply, err := ask(ctx, g.model, model.ChatRequest{SystemPrompt: env.Prompt(), UserInput: prompt})
	if err != nil {
		return "", fmt.Errorf("goal inference failed: %w", err)
	}
	_, goal := conversation.SplitReasoning(reply)
	return strings.Trim(strings.TrimSpace(goal), `"`), nil
}
