package agent

import (
	"context"
	"fmt"

	"pagepilot/internal/logger"
	"pagepilot/pkg/pilottypes"
)

// router maps tool names to the member that owns them.
// The table is built once; when two members declare the same tool the first one keeps it.
type router struct {
	owners      map[string]Member
	definitions []pilottypes.ToolDefinition
}

func newRouter(members []Member) *router {
	r := &router{owners: make(map[string]Member)}
	for _, member := range members {
		for _, def := range member.Tools() {
			if owner, taken := r.owners[def.Name]; taken {
				logger.Debug("Tool already registered", "tool", def.Name, "owner", owner.Name(), "skipped", member.Name())
				continue
			}
			r.owners[def.Name] = member
			r.definitions = append(r.definitions, def)
		}
	}
	return r
}

func (r *router) Tools() []pilottypes.ToolDefinition {
	out := make([]pilottypes.ToolDefinition, len(r.definitions))
	copy(out, r.definitions)
	return out
}

func (r *router) ExecuteAction(ctx context.Context, action pilottypes.Action) (any, error) {
	owner, ok := r.owners[action.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnimplementedAction, action.Name)
	}
	return owner.InvokeTool(ctx, action.Name, action.Arguments)
}

// Owner returns the member that handles a tool.
func (r *router) Owner(name string) (Member, bool) {
	owner, ok := r.owners[name]
	return owner, ok
}

// CompositeAgent aggregates the tools of several member agents and runs them in its own loop.
// Actions its own toolset does not know are forwarded to the member that registered the tool first.
type CompositeAgent struct {
	*ThoughtAgent
	members []Member
	router  *router
}

// NewCompositeAgent creates a composite over members. opts.Executor is replaced by the router.
func NewCompositeAgent(opts Options, members ...Member) (*CompositeAgent, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("composite agent %q needs at least one member", opts.Name)
	}
	r := newRouter(members)
	opts.Executor = r

	base, err := NewThoughtAgent(opts)
	if err != nil {
		return nil, err
	}
	return &CompositeAgent{ThoughtAgent: base, members: members, router: r}, nil
}

// Members returns the member agents in registration order.
func (c *CompositeAgent) Members() []Member {
	return append([]Member(nil), c.members...)
}

// Owner returns the member agent that executes a tool.
func (c *CompositeAgent) Owner(tool string) (Member, bool) {
	return c.router.Owner(tool)
}

// ExecuteAction forwards an action to the member that owns it.
func (c *CompositeAgent) ExecuteAction(ctx context.Context, action pilottypes.Action) (any, error) {
	return c.router.ExecuteAction(ctx, action)
}
