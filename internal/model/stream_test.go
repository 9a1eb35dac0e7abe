package model

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot/internal/thought"
)

func TestReplayStream_ReplaysBufferedPrefix(t *testing.T) {
	ctx := context.Background()
	source := thought.TextStream("a", "b", "c", "d")
	replay := NewReplayStream(source)

	require.NoError(t, replay.ReadAhead(ctx))
	require.NoError(t, replay.ReadAhead(ctx))
	assert.Len(t, replay.Buffered(), 2)

	var got string
	for {
		chunk, err := replay.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got += chunk.Content
	}
	assert.Equal(t, "abcd", got)

	_, err := replay.Next(ctx)
	assert.Equal(t, io.EOF, err)

	require.NoError(t, replay.Close())
	assert.True(t, source.Closed())
}

func TestReplayStream_ReadAheadToEOF(t *testing.T) {
	ctx := context.Background()
	replay := NewReplayStream(thought.TextStream("only"))

	require.NoError(t, replay.ReadAhead(ctx))
	assert.Equal(t, io.EOF, replay.ReadAhead(ctx))
	assert.Equal(t, io.EOF, replay.ReadAhead(ctx))

	var got []string
	require.NoError(t, replay.Drain(ctx, func(c thought.Chunk) { got = append(got, c.Content) }))
	assert.Equal(t, []string{"only"}, got)
}

func TestReplayStream_AsThoughtPayload(t *testing.T) {
	ctx := context.Background()
	replay := NewReplayStream(thought.TextStream("Hel", "lo"))
	require.NoError(t, replay.ReadAhead(ctx))

	msg, err := thought.NewStream(replay).GetMessage(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello", msg)
}
