package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

type fakeBackend struct {
	response *BackendResponse
	chunks   []thought.Chunk
	err      error
	delay    time.Duration

	requests []BackendRequest
	streams  []*thought.SliceStream
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) wait(ctx context.Context) error {
	if f.delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) Complete(ctx context.Context, req BackendRequest) (*BackendResponse, error) {
	f.requests = append(f.requests, req)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeBackend) Stream(ctx context.Context, req BackendRequest) (thought.ChunkStream, error) {
	f.requests = append(f.requests, req)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	s := thought.NewSliceStream(f.chunks...)
	f.streams = append(f.streams, s)
	return s, nil
}

func newTestService(t *testing.T, profileID string, backend Backend, settings Settings) *Service {
	t.Helper()
	profile, ok := LookupProfile(profileID)
	require.True(t, ok)
	return New(profile, backend, settings)
}

func TestService_ChatCompletion_Stream(t *testing.T) {
	backend := &fakeBackend{chunks: []thought.Chunk{{Content: "Hel"}, {Content: "lo"}}}
	svc := newTestService(t, "openai", backend, Settings{ChatModel: "gpt-4o-mini"})

	th := svc.ChatCompletion(context.Background(), ChatRequest{
		Messages:     []pilottypes.ChatMessage{pilottypes.NewUserMessage("hi")},
		SystemPrompt: "be nice",
		UserInput:    "and more",
		Stream:       true,
	})
	require.Equal(t, thought.TypeStream, th.Type)
	assert.Equal(t, "gpt-4o-mini", th.Model)
	assert.Equal(t, ModelTypeChat, th.ModelType)

	msg, err := th.GetMessage(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello", msg)

	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	assert.Equal(t, "be nice", req.SystemPrompt)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "and more", req.Messages[1].Text())
}

func TestService_ChatCompletion_Message(t *testing.T) {
	backend := &fakeBackend{response: &BackendResponse{Content: "done"}}
	svc := newTestService(t, "openai", backend, Settings{ChatModel: "gpt-4o-mini"})

	th := svc.ChatCompletion(context.Background(), ChatRequest{UserInput: "hi"})
	require.Equal(t, thought.TypeMessage, th.Type)
	assert.Equal(t, "done", th.Message)
}

func TestService_ChatCompletion_ModelSelection(t *testing.T) {
	image := pilottypes.NewMultimodalMessage("what is this?", "data:image/png;base64,AAAA")

	tests := []struct {
		name          string
		settings      Settings
		req           ChatRequest
		expectedModel string
		expectedType  string
		keepsImage    bool
	}{
		{
			name:          "reasoning model wins",
			settings:      Settings{ChatModel: "gpt-4o-mini", ReasoningModel: "o3-mini", MultimodalModel: "gpt-4o"},
			req:           ChatRequest{Messages: []pilottypes.ChatMessage{image}, UseReasoningModel: true, UseMultimodal: true},
			expectedModel: "o3-mini",
			expectedType:  ModelTypeReasoning,
		},
		{
			name:          "multimodal model for images",
			settings:      Settings{ChatModel: "gpt-3.5-turbo", MultimodalModel: "gpt-4o"},
			req:           ChatRequest{Messages: []pilottypes.ChatMessage{image}, UseMultimodal: true},
			expectedModel: "gpt-4o",
			expectedType:  ModelTypeMultimodal,
			keepsImage:    true,
		},
		{
			name:          "multimodal chat model",
			settings:      Settings{ChatModel: "gpt-4o-mini"},
			req:           ChatRequest{Messages: []pilottypes.ChatMessage{image}, UseMultimodal: true},
			expectedModel: "gpt-4o-mini",
			expectedType:  ModelTypeMultimodal,
			keepsImage:    true,
		},
		{
			name:          "text only model flattens images",
			settings:      Settings{ChatModel: "gpt-3.5-turbo"},
			req:           ChatRequest{Messages: []pilottypes.ChatMessage{image}, UseMultimodal: true},
			expectedModel: "gpt-3.5-turbo",
			expectedType:  ModelTypeChat,
		},
		{
			name:          "multimodal not requested",
			settings:      Settings{ChatModel: "gpt-4o-mini", MultimodalModel: "gpt-4o"},
			req:           ChatRequest{Messages: []pilottypes.ChatMessage{image}},
			expectedModel: "gpt-4o-mini",
			expectedType:  ModelTypeChat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{response: &BackendResponse{Content: "ok"}}
			svc := newTestService(t, "openai", backend, tt.settings)

			th := svc.ChatCompletion(context.Background(), tt.req)
			assert.Equal(t, tt.expectedModel, th.Model)
			assert.Equal(t, tt.expectedType, th.ModelType)

			require.Len(t, backend.requests, 1)
			sent := backend.requests[0].Messages[0]
			assert.Equal(t, tt.keepsImage, sent.IsMultimodal())
			assert.Equal(t, "what is this?", sent.Text())
		})
	}
}

func TestService_ChatCompletion_BackendError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("401 unauthorized")}
	svc := newTestService(t, "openai", backend, Settings{ChatModel: "gpt-4o-mini"})

	th := svc.ChatCompletion(context.Background(), ChatRequest{UserInput: "hi", Stream: true})
	require.Equal(t, thought.TypeError, th.Type)

	var perr *ProviderError
	require.ErrorAs(t, th.Err, &perr)
	assert.Equal(t, "fake", perr.Provider)
	assert.Equal(t, "gpt-4o-mini", perr.Model)
	assert.Contains(t, th.ErrorText(), "401 unauthorized")
}

func TestService_ChatCompletion_Timeout(t *testing.T) {
	backend := &fakeBackend{delay: time.Second, response: &BackendResponse{Content: "late"}}
	svc := newTestService(t, "openai", backend, Settings{ChatModel: "gpt-4o-mini", Timeout: 20 * time.Millisecond})

	th := svc.ChatCompletion(context.Background(), ChatRequest{UserInput: "hi"})
	require.Equal(t, thought.TypeError, th.Type)
	assert.ErrorIs(t, th.Err, ErrTimeout)
}

func TestService_ChatCompletion_ModerationStop(t *testing.T) {
	backend := &fakeBackend{response: &BackendResponse{Content: "", FinishReason: thought.ReasonContentFilter}}
	svc := newTestService(t, "openai", backend, Settings{ChatModel: "gpt-4o-mini"})

	th := svc.ChatCompletion(context.Background(), ChatRequest{UserInput: "hi"})
	var sensitive *thought.SensitiveTopicError
	assert.ErrorAs(t, th.Err, &sensitive)
}

func TestService_ToolsCall_NoToolModel(t *testing.T) {
	backend := &fakeBackend{}
	svc := newTestService(t, "openai", backend, Settings{ChatModel: "gpt-4o-mini"})

	th := svc.ToolsCall(context.Background(), ToolsRequest{Stream: true})
	require.Equal(t, thought.TypeActions, th.Type)
	assert.Empty(t, th.Actions)
	assert.Empty(t, backend.requests)
}

func TestService_ToolsCall_StreamedTools(t *testing.T) {
	backend := &fakeBackend{chunks: []thought.Chunk{
		{Content: " "},
		{ToolCalls: []thought.ToolCallDelta{{Index: 0, ID: "c1", Name: "find_in_page"}}},
		{ToolCalls: []thought.ToolCallDelta{{Index: 0, Arguments: `{"keyword":"go"}`}}},
		{FinishReason: "tool_calls"},
	}}
	svc := newTestService(t, "openai", backend, Settings{ChatModel: "gpt-4o-mini", ToolModel: "gpt-4o-mini"})

	tools := []pilottypes.ToolDefinition{{Name: "find_in_page"}}
	th := svc.ToolsCall(context.Background(), ToolsRequest{Tools: tools, Stream: true})
	require.Equal(t, thought.TypeActions, th.Type, th.ErrorText())
	require.Len(t, th.Actions, 1)
	assert.Equal(t, "find_in_page", th.Actions[0].Name)
	assert.Equal(t, map[string]any{"keyword": "go"}, th.Actions[0].Arguments)
	assert.Equal(t, ModelTypeTools, th.ModelType)

	assert.Equal(t, tools, backend.requests[0].Tools)
	assert.True(t, backend.streams[0].Closed())
}

func TestService_ToolsCall_StreamedMessageKeepsPrefix(t *testing.T) {
	backend := &fakeBackend{chunks: []thought.Chunk{
		{Content: "The page "},
		{Content: "is about "},
		{Content: "Go."},
	}}
	// deepseek looks ahead two content chunks before deciding
	svc := newTestService(t, "deepseek", backend, Settings{ChatModel: "deepseek-chat", ToolModel: "deepseek-chat"})

	th := svc.ToolsCall(context.Background(), ToolsRequest{Stream: true})
	require.Equal(t, thought.TypeStream, th.Type)

	msg, err := th.GetMessage(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "The page is about Go.", msg)
	assert.True(t, backend.streams[0].Closed())
}

func TestService_ToolsCall_ToolUseAfterPreamble(t *testing.T) {
	backend := &fakeBackend{chunks: []thought.Chunk{
		{Content: "Let me look that up in the page."},
		{ToolCalls: []thought.ToolCallDelta{{Index: 1, ID: "toolu_1", Name: "find_in_page"}}},
		{ToolCalls: []thought.ToolCallDelta{{Index: 1, Arguments: `{"keyword":"select"}`}}},
		{FinishReason: "tool_use"},
	}}
	svc := newTestService(t, "anthropic", backend, Settings{ToolModel: "claude-3-5-haiku-latest"})

	th := svc.ToolsCall(context.Background(), ToolsRequest{Stream: true})
	require.Equal(t, thought.TypeActions, th.Type, th.ErrorText())
	require.Len(t, th.Actions, 1)
	assert.Equal(t, "find_in_page", th.Actions[0].Name)
	assert.Equal(t, map[string]any{"keyword": "select"}, th.Actions[0].Arguments)
	assert.True(t, backend.streams[0].Closed())
}

func TestService_ToolsCall_MessageUntilEndTurn(t *testing.T) {
	backend := &fakeBackend{chunks: []thought.Chunk{
		{Content: "The page "},
		{Content: "is about Go."},
		{FinishReason: "end_turn"},
	}}
	svc := newTestService(t, "anthropic", backend, Settings{ToolModel: "claude-3-5-haiku-latest"})

	th := svc.ToolsCall(context.Background(), ToolsRequest{Stream: true})
	require.Equal(t, thought.TypeStream, th.Type)

	msg, err := th.GetMessage(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "The page is about Go.", msg)
}

func TestService_ToolsCall_InvalidArguments(t *testing.T) {
	backend := &fakeBackend{chunks: []thought.Chunk{
		{ToolCalls: []thought.ToolCallDelta{{Index: 0, ID: "c1", Name: "find_in_page", Arguments: `{"keyword"`}}},
	}}
	svc := newTestService(t, "openai", backend, Settings{ToolModel: "gpt-4o-mini"})

	th := svc.ToolsCall(context.Background(), ToolsRequest{Stream: true})
	require.Equal(t, thought.TypeError, th.Type)
	assert.Contains(t, th.ErrorText(), "invalid arguments")
}

func TestService_ToolsCall_NonStreaming(t *testing.T) {
	backend := &fakeBackend{response: &BackendResponse{ToolCalls: []ToolCall{{ID: "1", Name: "page_outline"}}}}
	svc := newTestService(t, "openai", backend, Settings{ToolModel: "gpt-4o-mini"})

	th := svc.ToolsCall(context.Background(), ToolsRequest{})
	require.Equal(t, thought.TypeActions, th.Type)
	assert.Equal(t, []pilottypes.Action{pilottypes.NewAction("page_outline", nil)}, th.Actions)

	backend.response = &BackendResponse{Content: "no tool needed"}
	th = svc.ToolsCall(context.Background(), ToolsRequest{})
	require.Equal(t, thought.TypeMessage, th.Type)
	assert.Equal(t, "no tool needed", th.Message)
}

func TestService_ToolsCall_FlattensImages(t *testing.T) {
	backend := &fakeBackend{response: &BackendResponse{Content: "ok"}}
	svc := newTestService(t, "openai", backend, Settings{ToolModel: "gpt-4o-mini"})

	svc.ToolsCall(context.Background(), ToolsRequest{
		Messages: []pilottypes.ChatMessage{pilottypes.NewMultimodalMessage("look", "https://example.com/a.png")},
	})
	require.Len(t, backend.requests, 1)
	assert.False(t, backend.requests[0].Messages[0].IsMultimodal())
	assert.Equal(t, "look", backend.requests[0].Messages[0].Text())
}
