package conversation

import (
	"encoding/json"
	"strings"
	"time"
)

// StepType classifies a step of the reasoning chain.
type StepType string

// Step types.
const (
	StepPlan    StepType = "plan"
	StepExecute StepType = "execute"
	StepReflect StepType = "reflect"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// Step is one entry of an interaction's append-only chain-of-thought log.
type Step struct {
	Type         StepType       `json:"type"`
	Action       string         `json:"action,omitempty"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	ActionResult string         `json:"action_result,omitempty"`
	Reasoning    string         `json:"reasoning,omitempty"`
	Content      string         `json:"content,omitempty"`
	Result       string         `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// NewStep creates a step of the given type stamped with the current time.
func NewStep(stepType StepType, action string, arguments map[string]any) Step {
	return Step{
		Type:      stepType,
		Action:    action,
		Arguments: arguments,
		Timestamp: time.Now().UTC(),
	}
}

// SetMessage splits a raw model message into its <think> reasoning block and the remaining content.
// An unterminated think block leaves the open fragment as reasoning and the content empty.
func (s *Step) SetMessage(raw string) {
	s.Reasoning, s.Content = SplitReasoning(raw)
}

// SetActionResult stores the JSON serialization of a tool return value.
func (s *Step) SetActionResult(value any) {
	if value == nil {
		s.ActionResult = ""
		return
	}
	if str, ok := value.(string); ok {
		s.ActionResult = str
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.ActionResult = err.Error()
		return
	}
	s.ActionResult = string(data)
}

// SplitReasoning separates a leading <think>...</think> block from the message content.
func SplitReasoning(raw string) (reasoning, content string) {
	open := strings.Index(raw, thinkOpen)
	if open < 0 {
		return "", raw
	}

	rest := raw[open:]
	end := strings.Index(rest, thinkClose)
	if end < 0 {
		return rest, ""
	}

	end += len(thinkClose)
	reasoning = rest[:end]
	content = strings.TrimSpace(raw[:open] + rest[end:])
	return reasoning, content
}
