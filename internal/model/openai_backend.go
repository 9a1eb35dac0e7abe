package model

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"pagepilot/internal/logger"
	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

// OpenAIBackend talks to the OpenAI Chat Completions API through the official SDK.
type OpenAIBackend struct {
	client openai.Client
}

// NewOpenAIBackend creates an OpenAI backend.
func NewOpenAIBackend(opts BackendOptions) (*OpenAIBackend, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is empty", ErrNotConfigured)
	}

	options := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		options = append(options, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		options = append(options, option.WithHTTPClient(opts.HTTPClient))
	}

	logger.Debug("OpenAI backend initialized", "provider", "openai", "base_url", opts.BaseURL)
	return &OpenAIBackend{client: openai.NewClient(options...)}, nil
}

// Name implements Backend.
func (b *OpenAIBackend) Name() string {
	return "openai"
}

// Complete implements Backend.
func (b *OpenAIBackend) Complete(ctx context.Context, req BackendRequest) (*BackendResponse, error) {
	completion, err := b.client.Chat.Completions.New(ctx, b.params(req))
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choice := completion.Choices[0]
	resp := &BackendResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	if choice.Message.Refusal != "" && resp.Content == "" {
		resp.Content = choice.Message.Refusal
		resp.FinishReason = thought.ReasonRefusal
	}
	for _, call := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return resp, nil
}

// Stream implements Backend.
func (b *OpenAIBackend) Stream(ctx context.Context, req BackendRequest) (thought.ChunkStream, error) {
	stream := b.client.Chat.Completions.NewStreaming(ctx, b.params(req))
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("openai stream failed: %w", err)
	}
	return &openAIStream{stream: stream}, nil
}

func (b *OpenAIBackend) params(req BackendRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case pilottypes.RoleUser:
			if msg.IsMultimodal() {
				messages = append(messages, openai.UserMessage(openAIParts(msg)))
			} else {
				messages = append(messages, openai.UserMessage(msg.Text()))
			}
		case pilottypes.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Text()))
		case pilottypes.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Text()))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  shared.FunctionParameters(tool.JSONSchema()),
			},
		})
	}
	if req.ResponseType == ResponseJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

func openAIParts(msg pilottypes.ChatMessage) []openai.ChatCompletionContentPartUnionParam {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Parts)+1)
	for _, p := range msg.AsParts() {
		switch p.Type {
		case pilottypes.ContentPartText:
			parts = append(parts, openai.TextContentPart(p.Text))
		case pilottypes.ContentPartImageURL:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: p.ImageURL}))
		}
	}
	return parts
}

type openAIStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *openAIStream) Next(ctx context.Context) (thought.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return thought.Chunk{}, err
	}
	for s.stream.Next() {
		current := s.stream.Current()
		if len(current.Choices) == 0 {
			continue
		}

		choice := current.Choices[0]
		chunk := thought.Chunk{
			Content:      choice.Delta.Content,
			FinishReason: choice.FinishReason,
		}
		for _, call := range choice.Delta.ToolCalls {
			chunk.ToolCalls = append(chunk.ToolCalls, thought.ToolCallDelta{
				Index:     int(call.Index),
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
		return chunk, nil
	}
	if err := s.stream.Err(); err != nil {
		return thought.Chunk{}, fmt.Errorf("openai stream failed: %w", err)
	}
	return thought.Chunk{}, io.EOF
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
