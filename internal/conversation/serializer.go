package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// InteractionFilter selects which interactions a serializer renders.
type InteractionFilter func(*Interaction) bool

// HasOutput keeps interactions whose assistant message is non-empty.
func HasOutput(interaction *Interaction) bool {
	return !interaction.OutputMessage.IsEmpty()
}

type serializedInteraction struct {
	Goal      string `json:"goal"`
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// ConversationJSONSerializer renders a conversation as a compact JSON transcript
// used as model context by the reflection and goal services.
type ConversationJSONSerializer struct {
	Filter InteractionFilter
}

// Serialize renders the conversation as [{"goal","user","assistant"}], one entry per kept interaction.
func (s ConversationJSONSerializer) Serialize(conv *Conversation) (string, error) {
	entries := []serializedInteraction{}
	for _, interaction := range conv.GetInteractions() {
		if s.Filter != nil && !s.Filter(interaction) {
			continue
		}
		entries = append(entries, serializedInteraction{
			Goal:      interaction.Goal,
			User:      interaction.InputMessage.Text(),
			Assistant: interaction.OutputMessage.Text(),
		})
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(entries); err != nil {
		return "", fmt.Errorf("failed to serialize conversation: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
