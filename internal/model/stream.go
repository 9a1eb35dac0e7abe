package model

import (
	"context"
	"errors"
	"io"

	"pagepilot/internal/thought"
)

// ReplayStream reads ahead from a source stream into a buffer, then replays the buffered prefix
// followed by the rest of the source.
type ReplayStream struct {
	source thought.ChunkStream
	buffer []thought.Chunk
	pos    int
	eof    bool
}

// NewReplayStream wraps a source stream.
func NewReplayStream(source thought.ChunkStream) *ReplayStream {
	return &ReplayStream{source: source}
}

// ReadAhead pulls one chunk from the source into the buffer.
// It returns io.EOF once the source is exhausted.
func (r *ReplayStream) ReadAhead(ctx context.Context) error {
	if r.eof {
		return io.EOF
	}
	chunk, err := r.source.Next(ctx)
	if errors.Is(err, io.EOF) {
		r.eof = true
		return io.EOF
	}
	if err != nil {
		return err
	}
	r.buffer = append(r.buffer, chunk)
	return nil
}

// Buffered returns the chunks read ahead so far.
func (r *ReplayStream) Buffered() []thought.Chunk {
	return r.buffer
}

// Drain feeds the buffered chunks and the rest of the source to fn.
func (r *ReplayStream) Drain(ctx context.Context, fn func(thought.Chunk)) error {
	for {
		chunk, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(chunk)
	}
}

// Next implements thought.ChunkStream.
func (r *ReplayStream) Next(ctx context.Context) (thought.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return thought.Chunk{}, err
	}
	if r.pos < len(r.buffer) {
		chunk := r.buffer[r.pos]
		r.pos++
		return chunk, nil
	}
	if r.eof {
		return thought.Chunk{}, io.EOF
	}
	chunk, err := r.source.Next(ctx)
	if errors.Is(err, io.EOF) {
		r.eof = true
	}
	return chunk, err
}

// Close implements thought.ChunkStream.
func (r *ReplayStream) Close() error {
	return r.source.Close()
}
