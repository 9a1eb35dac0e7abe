package model

import (
	"context"
	"net/http"
	"strings"

	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

// Response formats a caller may request.
const (
	ResponseText = ""
	ResponseJSON = "json_object"
)

// BackendRequest is the provider-neutral request handed to a Backend.
type BackendRequest struct {
	Model        string
	SystemPrompt string
	Messages     []pilottypes.ChatMessage
	Tools        []pilottypes.ToolDefinition
	ResponseType string
}

// ToolCall is a complete tool call decided by the model. Arguments is raw JSON.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// BackendResponse is a complete, non-streaming provider answer.
type BackendResponse struct {
	Content      string
	Reasoning    string
	ToolCalls    []ToolCall
	FinishReason string
}

// Backend speaks one provider protocol.
type Backend interface {
	// Name identifies the provider in logs and errors.
	Name() string
	Complete(ctx context.Context, req BackendRequest) (*BackendResponse, error)
	Stream(ctx context.Context, req BackendRequest) (thought.ChunkStream, error)
}

// BackendOptions carry the connection settings shared by every backend.
type BackendOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// parseDataURL splits "data:<media type>;base64,<payload>" into its media type and payload.
func parseDataURL(raw string) (mediaType string, payload string, ok bool) {
	rest, found := strings.CutPrefix(raw, "data:")
	if !found {
		return "", "", false
	}
	meta, data, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", "", false
	}
	return mediaType, data, true
}

// systemText merges the request system prompt with system-role messages, which some protocols
// only accept as a separate field.
func systemText(req BackendRequest) string {
	parts := make([]string, 0, 1)
	if req.SystemPrompt != "" {
		parts = append(parts, req.SystemPrompt)
	}
	for _, m := range req.Messages {
		if m.Role == pilottypes.RoleSystem && !m.IsEmpty() {
			parts = append(parts, m.Text())
		}
	}
	return strings.Join(parts, "\n\n")
}
