package agent

import (
	"context"
	"fmt"

	"pagepilot/pkg/pilottypes"
)

// delegation forwards every action to a single member.
type delegation struct {
	to Member
}

func (d delegation) Tools() []pilottypes.ToolDefinition {
	return d.to.Tools()
}

func (d delegation) ExecuteAction(ctx context.Context, action pilottypes.Action) (any, error) {
	return d.to.InvokeTool(ctx, action.Name, action.Arguments)
}

// DelegateAgent runs its own loop and hands every action its toolset does not match to one
// delegate agent.
type DelegateAgent struct {
	*ThoughtAgent
	delegate Member
}

// NewDelegateAgent creates an agent that falls back to delegate. opts.Executor is replaced.
func NewDelegateAgent(opts Options, delegate Member) (*DelegateAgent, error) {
	if delegate == nil {
		return nil, fmt.Errorf("delegate agent %q: delegate is required", opts.Name)
	}
	opts.Executor = delegation{to: delegate}

	base, err := NewThoughtAgent(opts)
	if err != nil {
		return nil, err
	}
	return &DelegateAgent{ThoughtAgent: base, delegate: delegate}, nil
}

// Delegate returns the agent unmatched actions are forwarded to.
func (d *DelegateAgent) Delegate() Member {
	return d.delegate
}

// ExecuteAction forwards an action to the delegate.
func (d *DelegateAgent) ExecuteAction(ctx context.Context, action pilottypes.Action) (any, error) {
	return d.delegate.InvokeTool(ctx, action.Name, action.Arguments)
}
