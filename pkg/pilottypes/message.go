// Package pilottypes defines the value types shared by every PagePilot layer.
// This file contains chat messages and their multimodal content parts.
package pilottypes

import (
	"strings"
)

// Role identifies the author of a chat message.
type Role string

// Supported message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentPartType discriminates the parts of a multimodal message.
type ContentPartType string

// Supported content part types.
const (
	ContentPartText     ContentPartType = "text"
	ContentPartImageURL ContentPartType = "image_url"
)

// ContentPart is one typed element of a multimodal message.
// ImageURL may be a remote URL or a data URL ("data:image/png;base64,...").
type ContentPart struct {
	Type     ContentPartType `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL string          `json:"image_url,omitempty"`
}

// ChatMessage represents one role-tagged message exchanged with a model.
// A message carries either plain Content or an ordered list of Parts.
type ChatMessage struct {
	Role    Role          `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
	Name    string        `json:"name,omitempty"`
}

// NewUserMessage creates a plain text user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a plain text assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// NewSystemMessage creates a plain text system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// NewMultimodalMessage creates a user message made of a text part followed by image parts.
func NewMultimodalMessage(text string, imageURLs ...string) ChatMessage {
	parts := make([]ContentPart, 0, len(imageURLs)+1)
	if text != "" {
		parts = append(parts, ContentPart{Type: ContentPartText, Text: text})
	}
	for _, u := range imageURLs {
		parts = append(parts, ContentPart{Type: ContentPartImageURL, ImageURL: u})
	}
	return ChatMessage{Role: RoleUser, Parts: parts}
}

// IsEmpty reports whether the message has no non-whitespace text and no content parts.
func (m ChatMessage) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.Parts) == 0
}

// IsMultimodal reports whether the message carries at least one image part.
func (m ChatMessage) IsMultimodal() bool {
	for _, p := range m.Parts {
		if p.Type == ContentPartImageURL {
			return true
		}
	}
	return false
}

// Text returns the textual content of the message.
// For multi-part messages the text parts are joined with newlines and images are dropped.
func (m ChatMessage) Text() string {
	if m.Content != "" || len(m.Parts) == 0 {
		return m.Content
	}

	texts := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Type == ContentPartText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// AsParts returns the message content as parts, converting plain Content to a single text part.
func (m ChatMessage) AsParts() []ContentPart {
	if len(m.Parts) > 0 {
		parts := make([]ContentPart, len(m.Parts))
		copy(parts, m.Parts)
		if m.Content != "" {
			parts = append([]ContentPart{{Type: ContentPartText, Text: m.Content}}, parts...)
		}
		return parts
	}
	if m.Content == "" {
		return nil
	}
	return []ContentPart{{Type: ContentPartText, Text: m.Content}}
}

// Flatten returns a copy of the message reduced to plain text content.
func (m ChatMessage) Flatten() ChatMessage {
	return ChatMessage{Role: m.Role, Content: m.Text(), Name: m.Name}
}
