package thought

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot/pkg/pilottypes"
)

func TestThought_GetMessage_Message(t *testing.T) {
	th := NewMessage("hello", WithModel("gpt-4o-mini", "chat"))

	msg, err := th.GetMessage(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg)
	assert.Equal(t, "gpt-4o-mini", th.Model)
	assert.Equal(t, "chat", th.ModelType)
}

func TestThought_GetMessage_StreamIsDrainedOnce(t *testing.T) {
	source := TextStream("a", "b", "c")
	th := NewStream(source)

	var deltas []string
	var totals []string
	msg, err := th.GetMessage(context.Background(), func(delta, total string) {
		deltas = append(deltas, delta)
		totals = append(totals, total)
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", msg)
	assert.Equal(t, []string{"a", "b", "c"}, deltas)
	assert.Equal(t, []string{"a", "ab", "abc"}, totals)
	assert.True(t, source.Closed())

	reads := source.Reads()
	again, err := th.GetMessage(context.Background(), func(string, string) {
		t.Fatal("onChunk must not be called for a cached message")
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", again)
	assert.Equal(t, reads, source.Reads(), "source must not be re-iterated")
}

func TestThought_GetMessage_SensitiveTopic(t *testing.T) {
	th := NewStream(NewSliceStream(
		Chunk{Content: "part"},
		Chunk{FinishReason: "content_filter"},
		Chunk{Content: "never read"},
	))

	_, err := th.GetMessage(context.Background(), nil)
	var sensitive *SensitiveTopicError
	require.ErrorAs(t, err, &sensitive)
	assert.Equal(t, "content_filter", sensitive.Reason)
	assert.Equal(t, "part", sensitive.Partial)

	_, err = th.GetMessage(context.Background(), nil)
	assert.ErrorAs(t, err, &sensitive, "the failure is cached too")
}

func TestThought_GetMessage_UndefinedTypes(t *testing.T) {
	tests := []struct {
		name    string
		thought *Thought
	}{
		{"actions", NewActions([]pilottypes.Action{pilottypes.NewAction("x", nil)})},
		{"error", NewError(errors.New("boom"))},
		{"function return", NewFunctionReturn(map[string]any{"ok": true})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.thought.GetMessage(context.Background(), nil)
			assert.ErrorIs(t, err, ErrNoMessage)
			assert.False(t, tt.thought.IsMessage())
		})
	}
}

func TestThought_GetMessage_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStream(TextStream("a")).GetMessage(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewActions_NilBecomesEmpty(t *testing.T) {
	th := NewActions(nil)
	assert.NotNil(t, th.Actions)
	assert.Empty(t, th.Actions)
	assert.Equal(t, TypeActions, th.Type)
}

func TestThought_ErrorText(t *testing.T) {
	assert.Equal(t, "boom", NewError(errors.New("boom")).ErrorText())
	assert.Equal(t, "unknown error", NewError(nil).ErrorText())
}
