// Package conversation provides the conversation and interaction state model.
// A Conversation is an ordered list of Interactions; each Interaction records one user turn,
// its planning and execution steps, and the assistant's answer.
package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pagepilot/pkg/pilottypes"
)

// Status is the lifecycle state of an interaction.
type Status string

// Interaction statuses.
const (
	StatusStart      Status = "Start"
	StatusPlanning   Status = "Planning"
	StatusReflecting Status = "Reflecting"
	StatusExecuting  Status = "Executing"
	StatusCompleted  Status = "Completed"
)

// ErrInteractionCompleted is returned when a completed interaction is asked to change status.
var ErrInteractionCompleted = errors.New("interaction already completed")

// ChangeListener is notified after every mutation of an interaction.
type ChangeListener func(*Interaction)

// Interaction is one user-turn-to-assistant-turn exchange.
type Interaction struct {
	ID              string                 `json:"id"`
	Timestamp       time.Time              `json:"timestamp"`
	Goal            string                 `json:"goal"`
	Intent          string                 `json:"intent,omitempty"`
	IntentArguments map[string]any         `json:"intent_arguments,omitempty"`
	Status          Status                 `json:"status"`
	StatusMessage   string                 `json:"status_message,omitempty"`
	AgentName       string                 `json:"agent_name,omitempty"`
	InputMessage    pilottypes.ChatMessage `json:"input_message"`
	OutputMessage   pilottypes.ChatMessage `json:"output_message"`
	Environment     pilottypes.Environment `json:"environment"`
	Steps           []Step                 `json:"steps"`
	CurrentStep     int                    `json:"current_step"`

	onChange ChangeListener
}

// NewInteraction starts an interaction for the given user message.
// The goal stays empty until the agent plans the turn.
func NewInteraction(input pilottypes.ChatMessage, agentName string, env pilottypes.Environment) *Interaction {
	return &Interaction{
		ID:            uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		Status:        StatusStart,
		AgentName:     agentName,
		InputMessage:  input,
		OutputMessage: pilottypes.NewAssistantMessage(""),
		Environment:   env,
		Steps:         []Step{},
		CurrentStep:   -1,
	}
}

// SetOnChange registers the change listener. Only one listener is kept: the last call wins.
func (i *Interaction) SetOnChange(listener ChangeListener) {
	i.onChange = listener
}

func (i *Interaction) notify() {
	if i.onChange != nil {
		i.onChange(i)
	}
}

// IsCompleted reports whether the turn has finished.
func (i *Interaction) IsCompleted() bool {
	return i.Status == StatusCompleted
}

// SetStatus moves the interaction to a new status with an optional human readable message.
// Nothing leaves Completed, and no interaction returns to Start.
func (i *Interaction) SetStatus(status Status, message string) error {
	if i.Status == StatusCompleted && status != StatusCompleted {
		return fmt.Errorf("%w: cannot move to %s", ErrInteractionCompleted, status)
	}
	if status == StatusStart && i.Status != StatusStart {
		return fmt.Errorf("cannot move interaction from %s back to %s", i.Status, status)
	}
	i.Status = status
	i.StatusMessage = message
	i.notify()
	return nil
}

// SetGoal replaces the goal of the turn.
func (i *Interaction) SetGoal(goal string) {
	i.Goal = goal
	i.notify()
}

// SetIntent records the action the model decided to take.
func (i *Interaction) SetIntent(name string, arguments map[string]any) {
	i.Intent = name
	i.IntentArguments = arguments
	i.notify()
}

// SetOutputMessage sets the assistant answer of the turn.
func (i *Interaction) SetOutputMessage(msg pilottypes.ChatMessage) {
	i.OutputMessage = msg
	i.notify()
}

// SetOutput sets the assistant answer from plain text.
func (i *Interaction) SetOutput(text string) {
	i.SetOutputMessage(pilottypes.NewAssistantMessage(text))
}

// SetEnvironment replaces the environment snapshot.
func (i *Interaction) SetEnvironment(env pilottypes.Environment) {
	i.Environment = env
	i.notify()
}

// AddStep appends a step and makes it current.
func (i *Interaction) AddStep(step Step) *Step {
	i.Steps = append(i.Steps, step)
	i.CurrentStep = len(i.Steps) - 1
	i.notify()
	return &i.Steps[i.CurrentStep]
}

// Current returns the current step, or nil when no step exists.
func (i *Interaction) Current() *Step {
	if i.CurrentStep < 0 || i.CurrentStep >= len(i.Steps) {
		return nil
	}
	return &i.Steps[i.CurrentStep]
}

// UpdateCurrentStep applies fn to the current step and notifies the listener.
// It is a no-op when no step exists.
func (i *Interaction) UpdateCurrentStep(fn func(*Step)) {
	step := i.Current()
	if step == nil {
		return
	}
	fn(step)
	i.notify()
}

// Messages returns the non-empty input and output messages of the interaction, in order.
func (i *Interaction) Messages() []pilottypes.ChatMessage {
	messages := make([]pilottypes.ChatMessage, 0, 2)
	if !i.InputMessage.IsEmpty() {
		messages = append(messages, i.InputMessage)
	}
	if !i.OutputMessage.IsEmpty() {
		messages = append(messages, i.OutputMessage)
	}
	return messages
}
