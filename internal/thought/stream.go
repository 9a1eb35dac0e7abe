package thought

import (
	"context"
	"io"
)

// ToolCallDelta is a fragment of a tool call emitted by a streaming provider.
// Index is -1 when the provider does not number its tool calls.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Chunk is one normalized element of a provider stream.
type Chunk struct {
	Content      string
	Reasoning    string
	ToolCalls    []ToolCallDelta
	FinishReason string
}

// HasToolCalls reports whether the chunk carries any tool-call fragment.
func (c Chunk) HasToolCalls() bool {
	return len(c.ToolCalls) > 0
}

// ChunkStream is a single-reader sequence of chunks.
// Next returns io.EOF once the sequence is exhausted. Close releases the underlying transport
// and is safe to call more than once.
type ChunkStream interface {
	Next(ctx context.Context) (Chunk, error)
	Close() error
}

// SliceStream is an in-memory ChunkStream, used for single-shot responses and tests.
type SliceStream struct {
	chunks []Chunk
	pos    int
	reads  int
	closed bool
}

// NewSliceStream creates a stream replaying the given chunks.
func NewSliceStream(chunks ...Chunk) *SliceStream {
	return &SliceStream{chunks: chunks}
}

// TextStream creates a stream that emits each string as a content delta.
func TextStream(deltas ...string) *SliceStream {
	chunks := make([]Chunk, len(deltas))
	for i, d := range deltas {
		chunks[i] = Chunk{Content: d}
	}
	return NewSliceStream(chunks...)
}

// Next implements ChunkStream.
func (s *SliceStream) Next(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	s.reads++
	if s.closed || s.pos >= len(s.chunks) {
		return Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

// Close implements ChunkStream.
func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// Reads returns how many times Next has been called.
func (s *SliceStream) Reads() int {
	return s.reads
}

// Closed reports whether Close has been called.
func (s *SliceStream) Closed() bool {
	return s.closed
}
