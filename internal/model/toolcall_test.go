package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

func TestToolCallAccumulator_Indexed(t *testing.T) {
	acc := NewToolCallAccumulator(false)
	acc.Add(thought.ToolCallDelta{Index: 0, ID: "call_1", Name: "find_in_page"})
	acc.Add(thought.ToolCallDelta{Index: 1, ID: "call_2", Name: "page_outline"})
	acc.Add(thought.ToolCallDelta{Index: 0, Arguments: `{"keyword":`})
	acc.Add(thought.ToolCallDelta{Index: 1, Arguments: `{}`})
	acc.Add(thought.ToolCallDelta{Index: 0, Arguments: `"go"}`})

	calls := acc.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, ToolCall{ID: "call_1", Name: "find_in_page", Arguments: `{"keyword":"go"}`}, calls[0])
	assert.Equal(t, ToolCall{ID: "call_2", Name: "page_outline", Arguments: `{}`}, calls[1])

	actions, err := acc.Actions()
	require.NoError(t, err)
	assert.Equal(t, []pilottypes.Action{
		pilottypes.NewAction("find_in_page", map[string]any{"keyword": "go"}),
		pilottypes.NewAction("page_outline", map[string]any{}),
	}, actions)
}

func TestToolCallAccumulator_IndexlessNameAndArgumentsSplit(t *testing.T) {
	acc := NewToolCallAccumulator(false)
	acc.Add(thought.ToolCallDelta{Index: -1, ID: "a", Name: "translate"})
	acc.Add(thought.ToolCallDelta{Index: -1, Arguments: `{"text":"hola",`})
	acc.Add(thought.ToolCallDelta{Index: -1, Arguments: `"target_language":"en"}`})
	acc.Add(thought.ToolCallDelta{Index: -1, ID: "b", Name: "page_outline"})

	calls := acc.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "translate", calls[0].Name)
	assert.Equal(t, `{"text":"hola","target_language":"en"}`, calls[0].Arguments)
	assert.Equal(t, "page_outline", calls[1].Name)
}

func TestToolCallAccumulator_MergeByIDIgnoresRepeatedIndex(t *testing.T) {
	acc := NewToolCallAccumulator(true)
	acc.Add(thought.ToolCallDelta{Index: 0, ID: "a", Name: "first", Arguments: `{}`})
	acc.Add(thought.ToolCallDelta{Index: 0, ID: "b", Name: "second", Arguments: `{}`})

	calls := acc.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].Name)
	assert.Equal(t, "second", calls[1].Name)
}

func TestToActions_Errors(t *testing.T) {
	_, err := ToActions([]ToolCall{{ID: "x", Name: "find", Arguments: `{"keyword":`}})
	assert.ErrorContains(t, err, "invalid arguments for tool find")

	_, err = ToActions([]ToolCall{{ID: "x", Arguments: `{}`}})
	assert.ErrorContains(t, err, "has no name")
}

func TestToolCallDetector_Decide(t *testing.T) {
	detector := ToolCallDetector{Lookahead: 2}

	tests := []struct {
		name     string
		buffered []thought.Chunk
		eof      bool
		expected Decision
	}{
		{"nothing yet", nil, false, Undecided},
		{"whitespace does not count", []thought.Chunk{{Content: "\n"}}, false, Undecided},
		{"below lookahead", []thought.Chunk{{Content: "Hel"}}, false, Undecided},
		{"lookahead reached", []thought.Chunk{{Content: "Hel"}, {Content: "lo"}}, false, DecideMessage},
		{"tool call after content", []thought.Chunk{{Content: "Let me check"}, {ToolCalls: []thought.ToolCallDelta{{Index: 0}}}}, false, DecideTools},
		{"end of stream", []thought.Chunk{{Content: "Hi"}}, true, DecideMessage},
		{"empty stream", nil, true, DecideMessage},
		{"moderation stop", []thought.Chunk{{FinishReason: thought.ReasonContentFilter}}, false, DecideMessage},
		{"reasoning only", []thought.Chunk{{Reasoning: "thinking"}}, false, Undecided},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detector.Decide(tt.buffered, tt.eof))
		})
	}
}

func TestToolCallDetector_AwaitStopReason(t *testing.T) {
	detector := ToolCallDetector{Lookahead: 1, AwaitStopReason: true}
	preamble := thought.Chunk{Content: "Let me look that up."}

	tests := []struct {
		name     string
		buffered []thought.Chunk
		eof      bool
		expected Decision
	}{
		{"preamble only", []thought.Chunk{preamble, {Content: " One moment."}}, false, Undecided},
		{"tool call after preamble", []thought.Chunk{preamble, {ToolCalls: []thought.ToolCallDelta{{Index: 1, Name: "find_in_page"}}}}, false, DecideTools},
		{"tool use stop", []thought.Chunk{preamble, {FinishReason: "tool_use"}}, false, DecideTools},
		{"end turn", []thought.Chunk{preamble, {FinishReason: "end_turn"}}, false, DecideMessage},
		{"end of stream", []thought.Chunk{preamble}, true, DecideMessage},
		{"moderation stop", []thought.Chunk{{FinishReason: thought.ReasonRefusal}}, false, DecideMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detector.Decide(tt.buffered, tt.eof))
		})
	}
}
