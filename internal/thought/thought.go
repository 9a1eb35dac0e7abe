// Package thought provides the normalized result of a model invocation.
// A Thought is a tagged value: exactly one payload is meaningful for its Type.
package thought

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"pagepilot/pkg/pilottypes"
)

// Type discriminates the payload carried by a Thought.
type Type string

// Thought types.
const (
	TypeActions        Type = "actions"
	TypeMessage        Type = "message"
	TypeStream         Type = "stream"
	TypeError          Type = "error"
	TypeFunctionReturn Type = "functionReturn"
)

// ErrNoMessage is returned by GetMessage for types that carry no message.
var ErrNoMessage = errors.New("thought carries no message")

// Finish reasons providers use when they stop on a moderation decision.
const (
	ReasonContentFilter = "content_filter"
	ReasonSensitive     = "sensitive"
	ReasonSafety        = "SAFETY"
	ReasonRefusal       = "refusal"
)

var moderationReasons = map[string]bool{
	ReasonContentFilter: true,
	ReasonSensitive:     true,
	ReasonSafety:        true,
	ReasonRefusal:       true,
}

// SensitiveTopicError is raised while draining a stream that was stopped by moderation.
type SensitiveTopicError struct {
	Reason  string
	Partial string
}

func (e *SensitiveTopicError) Error() string {
	return fmt.Sprintf("response stopped on a sensitive topic (%s)", e.Reason)
}

// IsModerationStop reports whether a finish reason signals a moderation stop.
func IsModerationStop(reason string) bool {
	return moderationReasons[reason]
}

// Thought is the tagged result of one model invocation.
type Thought struct {
	Type      Type
	Model     string
	ModelType string

	Actions []pilottypes.Action
	Message string
	Stream  ChunkStream
	Err     error
	Value   any

	mu        sync.Mutex
	drained   bool
	cached    string
	cachedErr error
}

// Option customizes a Thought at construction.
type Option func(*Thought)

// WithModel records which model and model type produced the thought.
func WithModel(model, modelType string) Option {
	return func(t *Thought) {
		t.Model = model
		t.ModelType = modelType
	}
}

func build(t *Thought, opts []Option) *Thought {
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewActions creates an actions thought. A nil or empty list means "answer directly".
func NewActions(actions []pilottypes.Action, opts ...Option) *Thought {
	if actions == nil {
		actions = []pilottypes.Action{}
	}
	return build(&Thought{Type: TypeActions, Actions: actions}, opts)
}

// NewMessage creates a message thought.
func NewMessage(message string, opts ...Option) *Thought {
	return build(&Thought{Type: TypeMessage, Message: message}, opts)
}

// NewStream creates a stream thought over a chunk sequence.
func NewStream(stream ChunkStream, opts ...Option) *Thought {
	return build(&Thought{Type: TypeStream, Stream: stream}, opts)
}

// NewError creates an error thought.
func NewError(err error, opts ...Option) *Thought {
	return build(&Thought{Type: TypeError, Err: err}, opts)
}

// NewFunctionReturn lifts a raw tool return value into a thought.
func NewFunctionReturn(value any, opts ...Option) *Thought {
	return build(&Thought{Type: TypeFunctionReturn, Value: value}, opts)
}

// IsMessage reports whether GetMessage is defined for this thought.
func (t *Thought) IsMessage() bool {
	return t.Type == TypeMessage || t.Type == TypeStream
}

// ErrorText returns the user-visible text of an error thought.
func (t *Thought) ErrorText() string {
	if t.Err == nil {
		return "unknown error"
	}
	return t.Err.Error()
}

// GetMessage returns the message carried by the thought.
//
// For stream thoughts the source is drained exactly once; onChunk, when non-nil, is called after every
// text delta with the delta and the text accumulated so far. The result, including a failure, is cached
// and returned by later calls without touching the source again.
func (t *Thought) GetMessage(ctx context.Context, onChunk func(delta, total string)) (string, error) {
	switch t.Type {
	case TypeMessage:
		return t.Message, nil
	case TypeStream:
		return t.drain(ctx, onChunk)
	default:
		return "", fmt.Errorf("%w: type %s", ErrNoMessage, t.Type)
	}
}

func (t *Thought) drain(ctx context.Context, onChunk func(delta, total string)) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.drained {
		return t.cached, t.cachedErr
	}
	t.drained = true

	if t.Stream == nil {
		return "", nil
	}
	defer func() { _ = t.Stream.Close() }()

	var sb strings.Builder
	for {
		chunk, err := t.Stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.cached, t.cachedErr = sb.String(), err
			return t.cached, t.cachedErr
		}

		if chunk.Content != "" {
			sb.WriteString(chunk.Content)
			if onChunk != nil {
				onChunk(chunk.Content, sb.String())
			}
		}

		if IsModerationStop(chunk.FinishReason) {
			t.cached = sb.String()
			t.cachedErr = &SensitiveTopicError{Reason: chunk.FinishReason, Partial: t.cached}
			return t.cached, t.cachedErr
		}
	}

	t.cached = sb.String()
	return t.cached, nil
}
