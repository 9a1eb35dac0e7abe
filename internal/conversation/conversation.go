package conversation

import (
	"time"

	"github.com/google/uuid"

	"pagepilot/pkg/pilottypes"
)

// InteractionListener is notified when a new interaction is appended.
type InteractionListener func(*Interaction)

// Conversation is the ordered sequence of interactions of one chat session.
// It is owned by a single agent at a time and is not safe for concurrent writers.
type Conversation struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Interactions []*Interaction `json:"interactions"`

	onInteractionStarted InteractionListener
}

// New creates an empty conversation with an optional default system prompt.
func New(systemPrompt string) *Conversation {
	return &Conversation{
		ID:           uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
		SystemPrompt: systemPrompt,
		Interactions: []*Interaction{},
	}
}

// SetOnInteractionStarted registers the listener for new interactions. The last call wins.
func (c *Conversation) SetOnInteractionStarted(listener InteractionListener) {
	c.onInteractionStarted = listener
}

// StartInteraction appends a new interaction for a user message.
func (c *Conversation) StartInteraction(input pilottypes.ChatMessage, agentName string, env pilottypes.Environment) *Interaction {
	interaction := NewInteraction(input, agentName, env)
	c.Interactions = append(c.Interactions, interaction)
	if c.onInteractionStarted != nil {
		c.onInteractionStarted(interaction)
	}
	return interaction
}

// AppendMessage adds a message to the conversation.
// A user message always starts a new interaction, which is returned. An assistant message sets the
// output of the most recent interaction and is dropped when there is none. A system message replaces
// the default system prompt.
func (c *Conversation) AppendMessage(msg pilottypes.ChatMessage) *Interaction {
	switch msg.Role {
	case pilottypes.RoleUser:
		return c.StartInteraction(msg, "", pilottypes.Environment{})
	case pilottypes.RoleAssistant:
		last := c.LastInteraction()
		if last != nil {
			last.SetOutputMessage(msg)
		}
		return last
	case pilottypes.RoleSystem:
		c.SystemPrompt = msg.Text()
	}
	return nil
}

// Reset clears the conversation and reseeds it from a message list.
func (c *Conversation) Reset(messages []pilottypes.ChatMessage) {
	c.Interactions = []*Interaction{}
	for _, msg := range messages {
		interaction := c.AppendMessage(msg)
		if interaction != nil && msg.Role == pilottypes.RoleAssistant {
			_ = interaction.SetStatus(StatusCompleted, "")
		}
	}
}

// Clear drops every interaction, keeping the identity and system prompt.
func (c *Conversation) Clear() {
	c.Interactions = []*Interaction{}
}

// GetInteractions returns the interactions in arrival order.
func (c *Conversation) GetInteractions() []*Interaction {
	return c.Interactions
}

// LastInteraction returns the most recent interaction, or nil.
func (c *Conversation) LastInteraction() *Interaction {
	if len(c.Interactions) == 0 {
		return nil
	}
	return c.Interactions[len(c.Interactions)-1]
}

// GetMessages returns the non-empty input and output messages of the most recent contextLength
// interactions in chronological order. A negative length returns the full history, zero returns none.
func (c *Conversation) GetMessages(contextLength int) []pilottypes.ChatMessage {
	messages := []pilottypes.ChatMessage{}
	if contextLength == 0 {
		return messages
	}

	start := 0
	if contextLength > 0 && len(c.Interactions) > contextLength {
		start = len(c.Interactions) - contextLength
	}
	for _, interaction := range c.Interactions[start:] {
		messages = append(messages, interaction.Messages()...)
	}
	return messages
}

// LastMessage returns the most recent non-empty message, if any.
func (c *Conversation) LastMessage() (pilottypes.ChatMessage, bool) {
	messages := c.GetMessages(1)
	if len(messages) == 0 {
		return pilottypes.ChatMessage{}, false
	}
	return messages[len(messages)-1], true
}
