// Package agent provides the ThoughtAgent orchestration engine and its composite variants.
// A turn runs plan, then alternates process and observe until the answer is final, recording
// every step on the turn's Interaction.
package agent

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"

	"pagepilot/internal/conversation"
	"pagepilot/internal/model"
	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

// Built-in pseudo-actions handled by the agent itself.
const (
	ActionChat  = "chat"
	ActionReply = "reply"
)

// Reflection statuses.
const (
	ReflectionFinished = "finished"
	ReflectionRevise   = "revise"
)

// Defaults applied by NewThoughtAgent.
const (
	DefaultMaxReflections = 3
	DefaultContextLength  = 10
)

var (
	// ErrTurnInProgress is returned when a turn is started while another is running.
	ErrTurnInProgress = errors.New("a turn is already in progress")
	// ErrUnimplementedAction is returned for an action no tool and no fallback executor handles.
	ErrUnimplementedAction = errors.New("unimplemented action")
	// ErrUnexpectedThought is returned when processing meets a thought type it cannot handle.
	ErrUnexpectedThought = errors.New("unexpected thought type")
)

// ModelService is the model seam used by the agent. Backend failures arrive as error Thoughts.
type ModelService interface {
	ChatCompletion(ctx context.Context, req model.ChatRequest) *thought.Thought
	ToolsCall(ctx context.Context, req model.ToolsRequest) *thought.Thought
}

// ReflectionResult is the verdict of a ReflectionService.
// With status revise, Thought is either an actions Thought to continue the loop or a
// message/stream Thought carrying the revised answer.
type ReflectionResult struct {
	Status     string
	Evaluation string
	Thought    *thought.Thought
}

// ReflectionService evaluates answers and proposes follow-ups.
type ReflectionService interface {
	Reflection(ctx context.Context, env pilottypes.Environment, conv *conversation.Conversation, tools []pilottypes.ToolDefinition) (ReflectionResult, error)
	Revise(ctx context.Context, env pilottypes.Environment, conv *conversation.Conversation, evaluation string) (*thought.Thought, error)
	Suggest(ctx context.Context, env pilottypes.Environment, conv *conversation.Conversation) ([]string, error)
}

// ThoughtService infers the goal of a turn.
type ThoughtService interface {
	Goal(ctx context.Context, env pilottypes.Environment, conv *conversation.Conversation, tools []pilottypes.ToolDefinition) (string, error)
}

// ConversationRepository persists conversations and returns their storage key.
type ConversationRepository interface {
	Save(ctx context.Context, conv *conversation.Conversation) (string, error)
}

// EnvironmentProvider captures the environment of a turn.
type EnvironmentProvider interface {
	Environment(ctx context.Context) (pilottypes.Environment, error)
}

// EnvironmentFunc adapts a function to EnvironmentProvider.
type EnvironmentFunc func(ctx context.Context) (pilottypes.Environment, error)

// Environment implements EnvironmentProvider.
func (f EnvironmentFunc) Environment(ctx context.Context) (pilottypes.Environment, error) {
	return f(ctx)
}

// Toolset is the capability table of an agent bound to its receiver.
type Toolset interface {
	Definitions() []pilottypes.ToolDefinition
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// ActionExecutor handles actions the agent's own tools do not know.
type ActionExecutor interface {
	Tools() []pilottypes.ToolDefinition
	ExecuteAction(ctx context.Context, action pilottypes.Action) (any, error)
}

// Member is an agent that can lend its tools to a composite or delegating agent.
type Member interface {
	Name() string
	Tools() []pilottypes.ToolDefinition
	InvokeTool(ctx context.Context, name string, args map[string]any) (any, error)
}

// Options configure a ThoughtAgent. Model is required; everything else is optional.
type Options struct {
	Name         string
	Model        ModelService
	Reflection   ReflectionService
	Thinker      ThoughtService
	Repository   ConversationRepository
	Environment  EnvironmentProvider
	Toolset      Toolset
	Executor     ActionExecutor
	Conversation *conversation.Conversation

	EnableReflection bool
	MaxReflections   int
	ChainOfThought   bool
	Multimodal       bool
	// ContextLength is the number of past interactions sent to the model. Zero uses
	// DefaultContextLength and negative sends all.
	ContextLength int

	// OnChunk receives streamed answer text as it is materialized.
	OnChunk func(delta, total string)
	// OnInteractionChange is attached to every interaction the agent starts.
	OnInteractionChange conversation.ChangeListener

	Tracer trace.Tracer
}
