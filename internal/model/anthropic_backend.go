package model

import (
	"context"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"pagepilot/internal/logger"
	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

const anthropicMaxTokens = 4096

// AnthropicBackend talks to the Anthropic Messages API.
type AnthropicBackend struct {
	client anthropic.Client
}

// NewAnthropicBackend creates an Anthropic backend.
func NewAnthropicBackend(opts BackendOptions) (*AnthropicBackend, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key is empty", ErrNotConfigured)
	}

	options := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		options = append(options, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		options = append(options, option.WithHTTPClient(opts.HTTPClient))
	}

	logger.Debug("Anthropic backend initialized", "provider", "anthropic")
	return &AnthropicBackend{client: anthropic.NewClient(options...)}, nil
}

// Name implements Backend.
func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

// Complete implements Backend.
func (b *AnthropicBackend) Complete(ctx context.Context, req BackendRequest) (*BackendResponse, error) {
	message, err := b.client.Messages.New(ctx, b.params(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	resp := &BackendResponse{FinishReason: string(message.StopReason)}
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "thinking":
			resp.Reasoning += block.Thinking
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}
	return resp, nil
}

// Stream implements Backend.
func (b *AnthropicBackend) Stream(ctx context.Context, req BackendRequest) (thought.ChunkStream, error) {
	stream := b.client.Messages.NewStreaming(ctx, b.params(req))
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("anthropic stream failed: %w", err)
	}
	return &anthropicStream{stream: stream}, nil
}

func (b *AnthropicBackend) params(req BackendRequest) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case pilottypes.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropicBlocks(msg)...))
		case pilottypes.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text())))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: anthropicMaxTokens,
		Messages:  messages,
	}
	if system := systemText(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, tool := range req.Tools {
		schema := tool.JSONSchema()
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   tool.Required,
				},
			},
		})
	}
	return params
}

func anthropicBlocks(msg pilottypes.ChatMessage) []anthropic.ContentBlockParamUnion {
	parts := msg.AsParts()
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case pilottypes.ContentPartText:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		case pilottypes.ContentPartImageURL:
			if mediaType, data, ok := parseDataURL(p.ImageURL); ok {
				blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, data))
			} else {
				blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: p.ImageURL}))
			}
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(""))
	}
	return blocks
}

// anthropicStream maps message stream events to chunks. Tool-use blocks are numbered by their
// content block index.
type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

func (s *anthropicStream) Next(ctx context.Context) (thought.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return thought.Chunk{}, err
	}
	for s.stream.Next() {
		event := s.stream.Current()
		switch event.Type {
		case "content_block_start":
			if event.ContentBlock.Type == "tool_use" {
				return thought.Chunk{ToolCalls: []thought.ToolCallDelta{{
					Index: int(event.Index),
					ID:    event.ContentBlock.ID,
					Name:  event.ContentBlock.Name,
				}}}, nil
			}
		case "content_block_delta":
			switch event.Delta.Type {
			case "text_delta":
				return thought.Chunk{Content: event.Delta.Text}, nil
			case "thinking_delta":
				return thought.Chunk{Reasoning: event.Delta.Thinking}, nil
			case "input_json_delta":
				return thought.Chunk{ToolCalls: []thought.ToolCallDelta{{
					Index:     int(event.Index),
					Arguments: event.Delta.PartialJSON,
				}}}, nil
			}
		case "message_delta":
			if reason := string(event.Delta.StopReason); reason != "" {
				return thought.Chunk{FinishReason: reason}, nil
			}
		}
	}
	if err := s.stream.Err(); err != nil {
		return thought.Chunk{}, fmt.Errorf("anthropic stream failed: %w", err)
	}
	return thought.Chunk{}, io.EOF
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}
