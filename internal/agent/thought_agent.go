package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pagepilot/internal/conversation"
	"pagepilot/internal/logger"
	"pagepilot/internal/tools"
	"pagepilot/pkg/pilottypes"
)

const tracerName = "pagepilot/internal/agent"

// ThoughtAgent runs the plan, process and observe loop for one conversation.
// Only one turn runs at a time.
type ThoughtAgent struct {
	name         string
	model        ModelService
	reflection   ReflectionService
	thinker      ThoughtService
	repository   ConversationRepository
	environment  EnvironmentProvider
	toolset      Toolset
	executor     ActionExecutor
	conversation *conversation.Conversation

	enableReflection bool
	maxReflections   int
	chainOfThought   bool
	multimodal       bool
	contextLength    int

	onChunk             func(delta, total string)
	onInteractionChange conversation.ChangeListener

	// disabled tool names, guarded by mu
	disabled map[string]bool
	mu       sync.RWMutex

	busy   atomic.Bool
	tracer trace.Tracer
	logger *log.Logger
}

// NewThoughtAgent creates an agent from its options.
func NewThoughtAgent(opts Options) (*ThoughtAgent, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("agent %q: model service is required", opts.Name)
	}
	if opts.Name == "" {
		opts.Name = "agent"
	}
	if opts.Conversation == nil {
		opts.Conversation = conversation.New("")
	}
	if opts.MaxReflections <= 0 {
		opts.MaxReflections = DefaultMaxReflections
	}
	if opts.ContextLength == 0 {
		opts.ContextLength = DefaultContextLength
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	return &ThoughtAgent{
		name:                opts.Name,
		model:               opts.Model,
		reflection:          opts.Reflection,
		thinker:             opts.Thinker,
		repository:          opts.Repository,
		environment:         opts.Environment,
		toolset:             opts.Toolset,
		executor:            opts.Executor,
		conversation:        opts.Conversation,
		enableReflection:    opts.EnableReflection,
		maxReflections:      opts.MaxReflections,
		chainOfThought:      opts.ChainOfThought,
		multimodal:          opts.Multimodal,
		contextLength:       opts.ContextLength,
		onChunk:             opts.OnChunk,
		onInteractionChange: opts.OnInteractionChange,
		disabled:            make(map[string]bool),
		tracer:              opts.Tracer,
		logger:              logger.NewStyledLogger("Agent"),
	}, nil
}

// Name returns the agent name.
func (a *ThoughtAgent) Name() string {
	return a.name
}

// Conversation returns the conversation owned by the agent.
func (a *ThoughtAgent) Conversation() *conversation.Conversation {
	return a.conversation
}

// SetConversation replaces the conversation, e.g. after loading one from a repository.
func (a *ThoughtAgent) SetConversation(conv *conversation.Conversation) {
	a.conversation = conv
}

// Reset clears the conversation and reseeds it from messages.
func (a *ThoughtAgent) Reset(messages []pilottypes.ChatMessage) {
	a.conversation.Reset(messages)
}

// SetOnChunk replaces the streaming callback.
func (a *ThoughtAgent) SetOnChunk(fn func(delta, total string)) {
	a.onChunk = fn
}

// Tools returns the tools offered to the model: the agent's own followed by those of its
// fallback executor, without duplicates and without disabled tools.
func (a *ThoughtAgent) Tools() []pilottypes.ToolDefinition {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var all []pilottypes.ToolDefinition
	if a.toolset != nil {
		all = append(all, a.toolset.Definitions()...)
	}
	if a.executor != nil {
		all = append(all, a.executor.Tools()...)
	}

	seen := make(map[string]bool, len(all))
	out := make([]pilottypes.ToolDefinition, 0, len(all))
	for _, def := range all {
		if seen[def.Name] || a.disabled[def.Name] {
			continue
		}
		seen[def.Name] = true
		out = append(out, def)
	}
	return out
}

// DisableTool hides a tool from the model and refuses to run it.
func (a *ThoughtAgent) DisableTool(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disabled[name] = true
}

// EnableTool reverts DisableTool.
func (a *ThoughtAgent) EnableTool(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.disabled, name)
}

// IsToolDisabled reports whether a tool was disabled.
func (a *ThoughtAgent) IsToolDisabled(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.disabled[name]
}

// InvokeTool dispatches a tool call to the agent's own tools or its fallback executor.
// Disabled tools are reported as not found.
func (a *ThoughtAgent) InvokeTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if a.IsToolDisabled(name) {
		return nil, &tools.ToolNotFoundError{Name: name}
	}
	logger.ToolInvocation(a.name, name, args)

	var err error = &tools.ToolNotFoundError{Name: name}
	if a.toolset != nil {
		var result any
		result, err = a.toolset.Invoke(ctx, name, args)
		if err == nil {
			return result, nil
		}
	}
	if !errors.Is(err, tools.ErrToolNotFound) {
		return nil, err
	}
	if a.executor == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnimplementedAction, name)
	}
	return a.executor.ExecuteAction(ctx, pilottypes.NewAction(name, args))
}

// Chat runs one full turn for a user message and returns its interaction.
// Tool contract errors, sensitive-topic errors and fatal agent errors are returned; backend
// failures become the assistant answer instead.
func (a *ThoughtAgent) Chat(ctx context.Context, msg pilottypes.ChatMessage) (*conversation.Interaction, error) {
	if !a.busy.CompareAndSwap(false, true) {
		return nil, ErrTurnInProgress
	}
	defer a.busy.Store(false)

	ctx, span := a.tracer.Start(ctx, "agent.chat", trace.WithAttributes(attribute.String("agent.name", a.name)))
	defer span.End()

	interaction, err := a.startInteraction(ctx, msg)
	if err != nil {
		return nil, recordError(span, err)
	}

	planned, err := a.plan(ctx, interaction)
	if err != nil {
		a.abort(interaction, err)
		return interaction, recordError(span, err)
	}
	if err := a.run(ctx, interaction, planned); err != nil {
		return interaction, recordError(span, err)
	}
	return interaction, nil
}

// ExecuteCommand runs a turn for an action chosen by the user, skipping planning.
func (a *ThoughtAgent) ExecuteCommand(ctx context.Context, action pilottypes.Action, msg pilottypes.ChatMessage) (*conversation.Interaction, error) {
	if !a.busy.CompareAndSwap(false, true) {
		return nil, ErrTurnInProgress
	}
	defer a.busy.Store(false)

	ctx, span := a.tracer.Start(ctx, "agent.execute_command", trace.WithAttributes(
		attribute.String("agent.name", a.name),
		attribute.String("agent.action", action.Name),
	))
	defer span.End()

	interaction, err := a.startInteraction(ctx, msg)
	if err != nil {
		return nil, recordError(span, err)
	}
	interaction.SetGoal(interaction.InputMessage.Text())

	if err := a.run(ctx, interaction, thoughtForAction(action)); err != nil {
		return interaction, recordError(span, err)
	}
	return interaction, nil
}

// Suggest asks the reflection service for follow-up questions on the conversation.
func (a *ThoughtAgent) Suggest(ctx context.Context) ([]string, error) {
	if a.reflection == nil {
		return nil, nil
	}
	var env pilottypes.Environment
	if last := a.conversation.LastInteraction(); last != nil {
		env = last.Environment
	}
	return a.reflection.Suggest(ctx, env, a.conversation)
}

func (a *ThoughtAgent) startInteraction(ctx context.Context, msg pilottypes.ChatMessage) (*conversation.Interaction, error) {
	env := pilottypes.Environment{}
	if a.environment != nil {
		var err error
		env, err = a.environment.Environment(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to capture environment: %w", err)
		}
	}
	if env.SystemPrompt == nil && a.conversation.SystemPrompt != "" {
		env.SystemPrompt = func() string { return a.conversation.SystemPrompt }
	}

	msg.Role = pilottypes.RoleUser
	interaction := a.conversation.StartInteraction(msg, a.name, env)
	if a.onInteractionChange != nil {
		interaction.SetOnChange(a.onInteractionChange)
	}
	a.logger.Debug("Interaction started", "agent", a.name, "id", interaction.ID)
	return interaction, nil
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
