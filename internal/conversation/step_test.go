package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStep_SetMessage(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		reasoning string
		content   string
	}{
		{"think block then content", "<think>R</think>\nC", "<think>R</think>", "C"},
		{"no think block", "just an answer", "", "just an answer"},
		{"unterminated think block", "<think>still thinking", "<think>still thinking", ""},
		{"text before the block", "Intro <think>R</think> outro", "<think>R</think>", "Intro  outro"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var step Step
			step.SetMessage(tt.raw)
			assert.Equal(t, tt.reasoning, step.Reasoning)
			assert.Equal(t, tt.content, step.Content)
		})
	}
}

func TestStep_SetActionResult(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"nil", nil, ""},
		{"string kept as is", "plain", "plain"},
		{"map serialized", map[string]int{"count": 3}, `{"count":3}`},
		{"slice serialized", []string{"a", "b"}, `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var step Step
			step.SetActionResult(tt.value)
			assert.Equal(t, tt.expected, step.ActionResult)
		})
	}
}
