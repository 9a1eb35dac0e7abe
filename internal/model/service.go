// Package model normalizes heterogeneous provider responses into Thoughts.
// A Service pairs a provider Profile with a protocol Backend and picks the model for each call.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"pagepilot/internal/logger"
	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

// Model types reported on Thoughts.
const (
	ModelTypeChat       = "chat"
	ModelTypeTools      = "tools"
	ModelTypeMultimodal = "multimodal"
	ModelTypeReasoning  = "reasoning"
)

// Settings are the per-service model choices.
type Settings struct {
	ChatModel       string
	ToolModel       string
	MultimodalModel string
	ReasoningModel  string
	// Timeout bounds the wait for the first answer chunk. Zero disables it.
	Timeout time.Duration
}

// ChatRequest asks for a free-form completion.
type ChatRequest struct {
	Messages     []pilottypes.ChatMessage
	SystemPrompt string
	// UserInput, when set, is appended as a final user message.
	UserInput         string
	Stream            bool
	UseMultimodal     bool
	UseReasoningModel bool
	ResponseType      string
}

// ToolsRequest asks the model to pick a tool or answer directly.
type ToolsRequest struct {
	Messages     []pilottypes.ChatMessage
	SystemPrompt string
	Tools        []pilottypes.ToolDefinition
	Stream       bool
	ResponseType string
}

// Service is the provider-neutral model service used by agents.
// Backend failures never surface as Go errors: they are returned as error Thoughts.
type Service struct {
	profile  *Profile
	backend  Backend
	settings Settings
	log      *log.Logger
}

// New assembles a service from its parts.
func New(profile *Profile, backend Backend, settings Settings) *Service {
	return &Service{
		profile:  profile,
		backend:  backend,
		settings: settings,
		log:      logger.NewStyledLogger("Model"),
	}
}

// Profile returns the provider profile of the service.
func (s *Service) Profile() *Profile {
	return s.profile
}

// Settings returns the model settings of the service.
func (s *Service) Settings() Settings {
	return s.settings
}

// ChatCompletion requests a free-form answer.
func (s *Service) ChatCompletion(ctx context.Context, req ChatRequest) *thought.Thought {
	messages := append([]pilottypes.ChatMessage{}, req.Messages...)
	if req.UserInput != "" {
		messages = append(messages, pilottypes.NewUserMessage(req.UserInput))
	}

	modelName, modelType := s.selectChatModel(req, messages)
	if modelName == "" {
		return thought.NewError(&ProviderError{Provider: s.backend.Name(), Err: errors.New("no chat model configured")})
	}
	if !s.acceptsImages(modelName, modelType) {
		for i := range messages {
			messages[i] = messages[i].Flatten()
		}
	}

	breq := BackendRequest{
		Model:        modelName,
		SystemPrompt: req.SystemPrompt,
		Messages:     messages,
		ResponseType: req.ResponseType,
	}
	opts := []thought.Option{thought.WithModel(modelName, modelType)}
	logger.ModelRequest(s.backend.Name(), modelName, modelType, len(messages))

	if !req.Stream {
		resp, err := s.complete(ctx, breq)
		if err != nil {
			return s.failure(modelName, err, opts)
		}
		if thought.IsModerationStop(resp.FinishReason) {
			return thought.NewError(&thought.SensitiveTopicError{Reason: resp.FinishReason, Partial: resp.Content}, opts...)
		}
		return thought.NewMessage(resp.Content, opts...)
	}

	stream, err := s.stream(ctx, breq)
	if err != nil {
		return s.failure(modelName, err, opts)
	}
	return thought.NewStream(stream, opts...)
}

// ToolsCall asks the tool model to choose among tools.
// Without a tool model the answer is an empty actions Thought.
func (s *Service) ToolsCall(ctx context.Context, req ToolsRequest) *thought.Thought {
	modelName := s.settings.ToolModel
	if modelName == "" {
		return thought.NewActions(nil)
	}

	messages := make([]pilottypes.ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = m.Flatten()
	}
	breq := BackendRequest{
		Model:        modelName,
		SystemPrompt: req.SystemPrompt,
		Messages:     messages,
		Tools:        req.Tools,
		ResponseType: req.ResponseType,
	}
	opts := []thought.Option{thought.WithModel(modelName, ModelTypeTools)}
	logger.ModelRequest(s.backend.Name(), modelName, ModelTypeTools, len(messages))

	if !req.Stream {
		resp, err := s.complete(ctx, breq)
		if err != nil {
			return s.failure(modelName, err, opts)
		}
		if len(resp.ToolCalls) > 0 {
			actions, err := ToActions(resp.ToolCalls)
			if err != nil {
				return s.failure(modelName, err, opts)
			}
			return thought.NewActions(actions, opts...)
		}
		if thought.IsModerationStop(resp.FinishReason) {
			return thought.NewError(&thought.SensitiveTopicError{Reason: resp.FinishReason, Partial: resp.Content}, opts...)
		}
		return thought.NewMessage(resp.Content, opts...)
	}

	stream, err := s.stream(ctx, breq)
	if err != nil {
		return s.failure(modelName, err, opts)
	}
	return s.splitToolStream(ctx, stream, modelName, opts)
}

// splitToolStream reads ahead until the profile's detector tells tools from message.
func (s *Service) splitToolStream(ctx context.Context, stream thought.ChunkStream, modelName string, opts []thought.Option) *thought.Thought {
	replay := NewReplayStream(stream)
	detector := s.profile.Detector()

	for {
		err := replay.ReadAhead(ctx)
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			_ = replay.Close()
			return s.failure(modelName, err, opts)
		}

		switch detector.Decide(replay.Buffered(), eof) {
		case DecideTools:
			acc := s.profile.NewAccumulator()
			err := replay.Drain(ctx, acc.AddChunk)
			_ = replay.Close()
			if err != nil {
				return s.failure(modelName, err, opts)
			}
			actions, err := acc.Actions()
			if err != nil {
				return s.failure(modelName, err, opts)
			}
			s.log.Debug("Tool call decoded", "model", modelName, "actions", len(actions))
			return thought.NewActions(actions, opts...)
		case DecideMessage:
			return thought.NewStream(replay, opts...)
		}
	}
}

func (s *Service) selectChatModel(req ChatRequest, messages []pilottypes.ChatMessage) (string, string) {
	if req.UseReasoningModel {
		if s.settings.ReasoningModel != "" {
			return s.settings.ReasoningModel, ModelTypeReasoning
		}
		if s.profile.IsReasoning(s.settings.ChatModel) {
			return s.settings.ChatModel, ModelTypeReasoning
		}
	}
	if req.UseMultimodal && hasImages(messages) {
		if s.settings.MultimodalModel != "" {
			return s.settings.MultimodalModel, ModelTypeMultimodal
		}
		if s.profile.IsMultimodal(s.settings.ChatModel) {
			return s.settings.ChatModel, ModelTypeMultimodal
		}
	}
	return s.settings.ChatModel, ModelTypeChat
}

func (s *Service) acceptsImages(modelName, modelType string) bool {
	return modelType == ModelTypeMultimodal || (modelType == ModelTypeReasoning && s.profile.IsMultimodal(modelName))
}

func hasImages(messages []pilottypes.ChatMessage) bool {
	for _, m := range messages {
		if m.IsMultimodal() {
			return true
		}
	}
	return false
}

func (s *Service) failure(modelName string, err error, opts []thought.Option) *thought.Thought {
	var perr *ProviderError
	if !errors.As(err, &perr) {
		err = &ProviderError{Provider: s.backend.Name(), Model: modelName, Err: err}
	}
	s.log.Error("Model request failed", "provider", s.backend.Name(), "model", modelName, "error", err)
	return thought.NewError(err, opts...)
}

// complete runs a non-streaming call under the timeout.
func (s *Service) complete(ctx context.Context, req BackendRequest) (*BackendResponse, error) {
	ctx, guard := s.withTimeout(ctx)
	defer guard.release()

	resp, err := s.backend.Complete(ctx, req)
	if err != nil {
		return nil, guard.wrap(err)
	}
	return resp, nil
}

// stream opens a stream whose setup and first chunk are bounded by the timeout.
// The returned stream releases the timeout context when closed.
func (s *Service) stream(ctx context.Context, req BackendRequest) (thought.ChunkStream, error) {
	ctx, guard := s.withTimeout(ctx)

	stream, err := s.backend.Stream(ctx, req)
	if err != nil {
		guard.release()
		return nil, guard.wrap(err)
	}
	return &guardedStream{source: stream, guard: guard}, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, *timeoutGuard) {
	ctx, cancel := context.WithCancel(ctx)
	g := &timeoutGuard{cancel: cancel, timeout: s.settings.Timeout}
	if s.settings.Timeout > 0 {
		g.timer = time.AfterFunc(s.settings.Timeout, func() {
			g.expired.Store(true)
			cancel()
		})
	}
	return ctx, g
}

type timeoutGuard struct {
	cancel  context.CancelFunc
	timer   *time.Timer
	timeout time.Duration
	expired atomic.Bool
	once    sync.Once
}

// disarm stops the timer once the provider has started answering.
func (g *timeoutGuard) disarm() {
	if g.timer != nil {
		g.timer.Stop()
	}
}

func (g *timeoutGuard) release() {
	g.once.Do(func() {
		g.disarm()
		g.cancel()
	})
}

func (g *timeoutGuard) wrap(err error) error {
	if g.expired.Load() {
		return fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
	}
	return err
}

// guardedStream disarms the timeout on the first chunk and releases it on close.
type guardedStream struct {
	source  thought.ChunkStream
	guard   *timeoutGuard
	started bool
}

func (g *guardedStream) Next(ctx context.Context) (thought.Chunk, error) {
	chunk, err := g.source.Next(ctx)
	if !g.started {
		g.started = true
		g.guard.disarm()
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return chunk, g.guard.wrap(err)
	}
	return chunk, err
}

func (g *guardedStream) Close() error {
	err := g.source.Close()
	g.guard.release()
	return err
}
