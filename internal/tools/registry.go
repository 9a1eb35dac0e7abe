// Package tools provides the per-agent capability table: tool definitions bound to handlers,
// argument validation and positional dispatch.
package tools

import (
	"context"
	"fmt"

	"pagepilot/pkg/pilottypes"
)

// Handler implements a tool for receivers of type A.
// Args holds the arguments in declared property order, with nil for absent optional parameters.
// A handler may return a plain value or a *thought.Thought.
type Handler[A any] func(ctx context.Context, recv A, args Args) (any, error)

type entry[A any] struct {
	definition pilottypes.ToolDefinition
	handler    Handler[A]
}

// Builder collects tool registrations for one agent type.
type Builder[A any] struct {
	entries []entry[A]
	err     error
}

// NewBuilder starts an empty registration list.
func NewBuilder[A any]() *Builder[A] {
	return &Builder[A]{}
}

// Add registers a tool. The first error encountered is reported by Build.
func (b *Builder[A]) Add(definition pilottypes.ToolDefinition, handler Handler[A]) *Builder[A] {
	if b.err != nil {
		return b
	}
	if handler == nil {
		b.err = fmt.Errorf("tool %q has no handler", definition.Name)
		return b
	}
	if err := definition.Validate(); err != nil {
		b.err = fmt.Errorf("invalid tool %q: %w", definition.Name, err)
		return b
	}
	for _, e := range b.entries {
		if e.definition.Name == definition.Name {
			b.err = fmt.Errorf("tool %s already registered", definition.Name)
			return b
		}
	}
	b.entries = append(b.entries, entry[A]{definition: definition, handler: handler})
	return b
}

// Build freezes the registrations into a Registry.
func (b *Builder[A]) Build() (*Registry[A], error) {
	if b.err != nil {
		return nil, b.err
	}
	r := &Registry[A]{
		order:   make([]string, 0, len(b.entries)),
		entries: make(map[string]entry[A], len(b.entries)),
	}
	for _, e := range b.entries {
		r.order = append(r.order, e.definition.Name)
		r.entries[e.definition.Name] = e
	}
	return r, nil
}

// MustBuild is Build for package-level registries; it panics on an invalid registration.
func (b *Builder[A]) MustBuild() *Registry[A] {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}

// Registry is an immutable name to tool table, safe for concurrent reads.
type Registry[A any] struct {
	order   []string
	entries map[string]entry[A]
}

// Definitions returns the tool definitions in registration order.
func (r *Registry[A]) Definitions() []pilottypes.ToolDefinition {
	defs := make([]pilottypes.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.entries[name].definition)
	}
	return defs
}

// Get returns the definition registered under name.
func (r *Registry[A]) Get(name string) (pilottypes.ToolDefinition, bool) {
	e, ok := r.entries[name]
	return e.definition, ok
}

// Has reports whether a tool is registered under name.
func (r *Registry[A]) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Invoke validates the arguments against the tool definition and calls its handler on recv.
func (r *Registry[A]) Invoke(ctx context.Context, recv A, name string, args map[string]any) (any, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &ToolNotFoundError{Name: name}
	}
	if err := ValidateArguments(e.definition, args); err != nil {
		return nil, err
	}
	return e.handler(ctx, recv, Positional(e.definition, args))
}

// Bound is a registry bound to one receiver.
type Bound[A any] struct {
	registry *Registry[A]
	recv     A
}

// Bind attaches a receiver to a registry so the pair can be used without knowing A.
func Bind[A any](registry *Registry[A], recv A) *Bound[A] {
	return &Bound[A]{registry: registry, recv: recv}
}

// Definitions returns the tool definitions of the bound registry.
func (b *Bound[A]) Definitions() []pilottypes.ToolDefinition {
	return b.registry.Definitions()
}

// Invoke dispatches a tool call to the bound receiver.
func (b *Bound[A]) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	return b.registry.Invoke(ctx, b.recv, name, args)
}
