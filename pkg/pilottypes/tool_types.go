// Tool definitions describe callable capabilities. Actions are the wire shape of a chosen call.

package pilottypes

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Parameter types understood by tool definitions.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Property describes a single tool parameter.
type Property struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// ToolDefinition describes a capability an agent exposes to the model.
// Properties is ordered: the declaration order is the positional order used at dispatch time.
type ToolDefinition struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Required    []string   `json:"required,omitempty" yaml:"required,omitempty"`
	Properties  []Property `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Property returns the declared property with the given name.
func (t ToolDefinition) Property(name string) (Property, bool) {
	for _, p := range t.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// IsRequired reports whether the named parameter is required.
func (t ToolDefinition) IsRequired(name string) bool {
	for _, r := range t.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Validate checks that the definition is well formed: a name is present, property names are unique
// and typed, and every required name exists in the properties.
func (t ToolDefinition) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.Properties, validation.By(uniqueProperties), validation.Each(validation.By(validProperty))),
		validation.Field(&t.Required, validation.Each(validation.By(func(value interface{}) error {
			name, _ := value.(string)
			if _, ok := t.Property(name); !ok {
				return fmt.Errorf("required parameter %q is not declared in properties", name)
			}
			return nil
		}))),
	)
}

func uniqueProperties(value interface{}) error {
	props, _ := value.([]Property)
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		if seen[p.Name] {
			return fmt.Errorf("duplicate property %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

func validProperty(value interface{}) error {
	p, _ := value.(Property)
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Type, validation.Required,
			validation.In(TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray, TypeObject)),
	)
}

// JSONSchema renders the parameters as a JSON-schema object, the shape providers expect.
func (t ToolDefinition) JSONSchema() map[string]any {
	properties := make(map[string]any, len(t.Properties))
	for _, p := range t.Properties {
		properties[p.Name] = p.Schema()
	}

	schema := map[string]any{
		"type":       TypeObject,
		"properties": properties,
	}
	if len(t.Required) > 0 {
		required := make([]string, len(t.Required))
		copy(required, t.Required)
		schema["required"] = required
	}
	return schema
}

// Schema renders a single property as a JSON-schema fragment.
func (p Property) Schema() map[string]any {
	s := map[string]any{"type": p.Type}
	if p.Description != "" {
		s["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		enum := make([]string, len(p.Enum))
		copy(enum, p.Enum)
		s["enum"] = enum
	}
	if p.Type == TypeArray {
		s["items"] = map[string]any{"type": TypeString}
	}
	return s
}

// Action is the wire shape between planning and execution: a decided tool invocation
// or one of the built-in pseudo-actions.
type Action struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// NewAction creates an action, normalising nil arguments to an empty map.
func NewAction(name string, arguments map[string]any) Action {
	if arguments == nil {
		arguments = map[string]any{}
	}
	return Action{Name: name, Arguments: arguments}
}
