package model

import (
	"context"
	"errors"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"pagepilot/internal/logger"
	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

// CompatibleBackend talks to OpenAI-compatible endpoints (Ollama, Moonshot, OpenRouter, DeepSeek,
// Groq and unknown hosts) through go-openai, which tolerates their protocol variations.
type CompatibleBackend struct {
	name   string
	client *goopenai.Client
}

// NewCompatibleBackend creates a backend for an OpenAI-compatible endpoint.
// Local endpoints such as Ollama accept an empty API key.
func NewCompatibleBackend(name string, opts BackendOptions) (*CompatibleBackend, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s endpoint is empty", ErrNotConfigured, name)
	}

	cfg := goopenai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = opts.BaseURL
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	logger.Debug("Compatible backend initialized", "provider", name, "base_url", opts.BaseURL)
	return &CompatibleBackend{name: name, client: goopenai.NewClientWithConfig(cfg)}, nil
}

// Name implements Backend.
func (b *CompatibleBackend) Name() string {
	return b.name
}

// Complete implements Backend.
func (b *CompatibleBackend) Complete(ctx context.Context, req BackendRequest) (*BackendResponse, error) {
	resp, err := b.client.CreateChatCompletion(ctx, b.request(req, false))
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choice := resp.Choices[0]
	out := &BackendResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out, nil
}

// Stream implements Backend.
func (b *CompatibleBackend) Stream(ctx context.Context, req BackendRequest) (thought.ChunkStream, error) {
	stream, err := b.client.CreateChatCompletionStream(ctx, b.request(req, true))
	if err != nil {
		return nil, fmt.Errorf("%s stream failed: %w", b.name, err)
	}
	return &compatibleStream{name: b.name, stream: stream}, nil
}

func (b *CompatibleBackend) request(req BackendRequest, stream bool) goopenai.ChatCompletionRequest {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		m := goopenai.ChatCompletionMessage{Role: string(msg.Role), Name: msg.Name}
		if msg.IsMultimodal() {
			m.MultiContent = compatibleParts(msg)
		} else {
			m.Content = msg.Text()
		}
		messages = append(messages, m)
	}

	out := goopenai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   stream,
	}
	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.JSONSchema(),
			},
		})
	}
	if req.ResponseType == ResponseJSON {
		out.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}

func compatibleParts(msg pilottypes.ChatMessage) []goopenai.ChatMessagePart {
	parts := make([]goopenai.ChatMessagePart, 0, len(msg.Parts)+1)
	for _, p := range msg.AsParts() {
		switch p.Type {
		case pilottypes.ContentPartText:
			parts = append(parts, goopenai.ChatMessagePart{Type: goopenai.ChatMessagePartTypeText, Text: p.Text})
		case pilottypes.ContentPartImageURL:
			parts = append(parts, goopenai.ChatMessagePart{
				Type:     goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{URL: p.ImageURL},
			})
		}
	}
	return parts
}

type compatibleStream struct {
	name   string
	stream *goopenai.ChatCompletionStream
}

func (s *compatibleStream) Next(ctx context.Context) (thought.Chunk, error) {
	for {
		if err := ctx.Err(); err != nil {
			return thought.Chunk{}, err
		}
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return thought.Chunk{}, io.EOF
		}
		if err != nil {
			return thought.Chunk{}, fmt.Errorf("%s stream failed: %w", s.name, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		chunk := thought.Chunk{
			Content:      choice.Delta.Content,
			FinishReason: string(choice.FinishReason),
		}
		for _, call := range choice.Delta.ToolCalls {
			index := -1
			if call.Index != nil {
				index = *call.Index
			}
			chunk.ToolCalls = append(chunk.ToolCalls, thought.ToolCallDelta{
				Index:     index,
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
		return chunk, nil
	}
}

func (s *compatibleStream) Close() error {
	s.stream.Close()
	return nil
}
