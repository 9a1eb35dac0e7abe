package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"pagepilot/internal/thought"
	"pagepilot/pkg/pilottypes"
)

// ToolCallAccumulator merges streamed tool-call fragments into complete calls.
// Numbered fragments are merged by index. Unnumbered fragments, or every fragment when mergeByID
// is set, start a new call when they carry an ID different from the last call's and are appended
// to the last call otherwise.
type ToolCallAccumulator struct {
	mergeByID bool
	calls     []*ToolCall
	byIndex   map[int]*ToolCall
}

// NewToolCallAccumulator creates an empty accumulator.
func NewToolCallAccumulator(mergeByID bool) *ToolCallAccumulator {
	return &ToolCallAccumulator{
		mergeByID: mergeByID,
		byIndex:   make(map[int]*ToolCall),
	}
}

// AddChunk merges every tool-call fragment of a chunk.
func (a *ToolCallAccumulator) AddChunk(chunk thought.Chunk) {
	for _, delta := range chunk.ToolCalls {
		a.Add(delta)
	}
}

// Add merges one fragment.
func (a *ToolCallAccumulator) Add(delta thought.ToolCallDelta) {
	call := a.target(delta)
	if delta.ID != "" {
		call.ID = delta.ID
	}
	if delta.Name != "" {
		if call.Name == "" || call.Name == delta.Name {
			call.Name = delta.Name
		} else {
			call.Name += delta.Name
		}
	}
	call.Arguments += delta.Arguments
}

func (a *ToolCallAccumulator) target(delta thought.ToolCallDelta) *ToolCall {
	if delta.Index >= 0 && !a.mergeByID {
		if call, ok := a.byIndex[delta.Index]; ok {
			return call
		}
		call := a.start()
		a.byIndex[delta.Index] = call
		return call
	}

	last := a.last()
	if last == nil || (delta.ID != "" && last.ID != "" && delta.ID != last.ID) {
		return a.start()
	}
	return last
}

func (a *ToolCallAccumulator) start() *ToolCall {
	call := &ToolCall{}
	a.calls = append(a.calls, call)
	return call
}

func (a *ToolCallAccumulator) last() *ToolCall {
	if len(a.calls) == 0 {
		return nil
	}
	return a.calls[len(a.calls)-1]
}

// Calls returns the accumulated calls in arrival order.
func (a *ToolCallAccumulator) Calls() []ToolCall {
	out := make([]ToolCall, 0, len(a.calls))
	for _, c := range a.calls {
		out = append(out, *c)
	}
	return out
}

// Actions converts the accumulated calls to actions.
func (a *ToolCallAccumulator) Actions() ([]pilottypes.Action, error) {
	return ToActions(a.Calls())
}

// ToActions parses the JSON arguments of complete tool calls. Empty arguments become an empty map.
func ToActions(calls []ToolCall) ([]pilottypes.Action, error) {
	actions := make([]pilottypes.Action, 0, len(calls))
	for _, call := range calls {
		if call.Name == "" {
			return nil, fmt.Errorf("tool call %q has no name", call.ID)
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("invalid arguments for tool %s: %w", call.Name, err)
			}
		}
		actions = append(actions, pilottypes.NewAction(call.Name, args))
	}
	return actions, nil
}

// Decision is the outcome of inspecting the head of a stream.
type Decision int

// Detector decisions.
const (
	Undecided Decision = iota
	DecideTools
	DecideMessage
)

// toolStopReasons are finish reasons that announce tool use.
var toolStopReasons = map[string]bool{
	"tool_use":   true,
	"tool_calls": true,
}

// ToolCallDetector decides from the buffered head of a stream whether the answer is a tool call.
type ToolCallDetector struct {
	Lookahead int
	// AwaitStopReason ignores Lookahead and keeps buffering until a tool-call fragment, a finish
	// reason or the end of the stream. Providers that open with a text block before tool use need it.
	AwaitStopReason bool
}

// Decide inspects the chunks read so far. eof reports that the source is exhausted.
// Any tool-call fragment means tools. Otherwise the answer is a message once Lookahead chunks with
// visible content were seen, at a finish reason when awaiting one, or at the end of the stream.
func (d ToolCallDetector) Decide(buffered []thought.Chunk, eof bool) Decision {
	lookahead := d.Lookahead
	if lookahead <= 0 {
		lookahead = 1
	}

	content := 0
	for _, c := range buffered {
		if c.HasToolCalls() {
			return DecideTools
		}
		if strings.TrimSpace(c.Content) != "" {
			content++
		}
		if thought.IsModerationStop(c.FinishReason) {
			return DecideMessage
		}
		if d.AwaitStopReason && c.FinishReason != "" {
			if toolStopReasons[c.FinishReason] {
				return DecideTools
			}
			return DecideMessage
		}
	}
	if eof || (!d.AwaitStopReason && content >= lookahead) {
		return DecideMessage
	}
	return Undecided
}
