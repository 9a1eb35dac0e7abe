package model

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"google.golang.org/genai"

	"pagepilot/internal/logger"
	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

// GeminiBackend talks to the Gemini API through the genai SDK.
type GeminiBackend struct {
	client *genai.Client
}

// NewGeminiBackend creates a Gemini backend.
func NewGeminiBackend(ctx context.Context, opts BackendOptions) (*GeminiBackend, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: google API key is empty", ErrNotConfigured)
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger.Debug("Gemini backend initialized", "provider", "gemini")
	return &GeminiBackend{client: client}, nil
}

// Name implements Backend.
func (b *GeminiBackend) Name() string {
	return "gemini"
}

// Complete implements Backend.
func (b *GeminiBackend) Complete(ctx context.Context, req BackendRequest) (*BackendResponse, error) {
	result, err := b.client.Models.GenerateContent(ctx, req.Model, geminiContents(req.Messages), geminiConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	chunk, err := geminiChunk(result, 0)
	if err != nil {
		return nil, err
	}
	resp := &BackendResponse{
		Content:      chunk.Content,
		Reasoning:    chunk.Reasoning,
		FinishReason: chunk.FinishReason,
	}
	for _, call := range chunk.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: call.ID, Name: call.Name, Arguments: call.Arguments})
	}
	return resp, nil
}

// Stream implements Backend.
func (b *GeminiBackend) Stream(ctx context.Context, req BackendRequest) (thought.ChunkStream, error) {
	seq := b.client.Models.GenerateContentStream(ctx, req.Model, geminiContents(req.Messages), geminiConfig(req))
	next, stop := iter.Pull2(seq)
	return &geminiStream{next: next, stop: stop}, nil
}

func geminiContents(messages []pilottypes.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case pilottypes.RoleUser:
			role = string(genai.RoleUser)
		case pilottypes.RoleAssistant:
			role = string(genai.RoleModel)
		default:
			continue
		}

		content := &genai.Content{Role: role}
		for _, p := range msg.AsParts() {
			switch p.Type {
			case pilottypes.ContentPartText:
				content.Parts = append(content.Parts, &genai.Part{Text: p.Text})
			case pilottypes.ContentPartImageURL:
				content.Parts = append(content.Parts, geminiImagePart(p.ImageURL))
			}
		}
		if len(content.Parts) == 0 {
			content.Parts = []*genai.Part{{Text: ""}}
		}
		contents = append(contents, content)
	}

	if len(contents) == 0 {
		contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{{Text: ""}}})
	}
	return contents
}

func geminiImagePart(imageURL string) *genai.Part {
	if mediaType, payload, ok := parseDataURL(imageURL); ok {
		if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
			return &genai.Part{InlineData: &genai.Blob{MIMEType: mediaType, Data: data}}
		}
	}
	return &genai.Part{FileData: &genai.FileData{FileURI: imageURL}}
}

func geminiConfig(req BackendRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if system := systemText(req); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.ResponseType == ResponseJSON {
		config.ResponseMIMEType = "application/json"
	}
	if len(req.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  geminiSchema(tool),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}
	return config
}

func geminiSchema(tool pilottypes.ToolDefinition) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(tool.Properties)),
		Required:   tool.Required,
	}
	for _, p := range tool.Properties {
		prop := &genai.Schema{
			Type:        geminiType(p.Type),
			Description: p.Description,
			Enum:        p.Enum,
		}
		if p.Type == pilottypes.TypeArray {
			prop.Items = &genai.Schema{Type: genai.TypeString}
		}
		schema.Properties[p.Name] = prop
	}
	return schema
}

func geminiType(t string) genai.Type {
	switch t {
	case pilottypes.TypeNumber:
		return genai.TypeNumber
	case pilottypes.TypeInteger:
		return genai.TypeInteger
	case pilottypes.TypeBoolean:
		return genai.TypeBoolean
	case pilottypes.TypeArray:
		return genai.TypeArray
	case pilottypes.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// geminiChunk converts one response into a chunk. Function calls arrive whole, so each gets the
// next index starting at firstIndex.
func geminiChunk(result *genai.GenerateContentResponse, firstIndex int) (thought.Chunk, error) {
	var chunk thought.Chunk
	if result == nil || len(result.Candidates) == 0 {
		return chunk, nil
	}

	candidate := result.Candidates[0]
	chunk.FinishReason = string(candidate.FinishReason)
	if candidate.Content == nil {
		return chunk, nil
	}

	index := firstIndex
	for _, part := range candidate.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return chunk, fmt.Errorf("failed to encode arguments of %s: %w", part.FunctionCall.Name, err)
			}
			chunk.ToolCalls = append(chunk.ToolCalls, thought.ToolCallDelta{
				Index:     index,
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
			index++
		case part.Thought:
			chunk.Reasoning += part.Text
		default:
			chunk.Content += part.Text
		}
	}
	return chunk, nil
}

type geminiStream struct {
	next  func() (*genai.GenerateContentResponse, error, bool)
	stop  func()
	calls int
}

func (s *geminiStream) Next(ctx context.Context) (thought.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return thought.Chunk{}, err
	}
	result, err, ok := s.next()
	if !ok {
		return thought.Chunk{}, io.EOF
	}
	if err != nil {
		return thought.Chunk{}, fmt.Errorf("gemini stream failed: %w", err)
	}

	chunk, err := geminiChunk(result, s.calls)
	if err != nil {
		return thought.Chunk{}, err
	}
	s.calls += len(chunk.ToolCalls)
	return chunk, nil
}

func (s *geminiStream) Close() error {
	s.stop()
	return nil
}
