package tools

import (
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"

	"pagepilot/pkg/pilottypes"
)

var reflector = &jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
	ExpandedStruct:            true,
}

// DefinitionFromStruct derives a tool definition from the fields of a struct.
// Field order becomes the positional argument order. Fields without omitempty are required;
// descriptions and enums come from jsonschema struct tags.
func DefinitionFromStruct(name, description string, v any) (pilottypes.ToolDefinition, error) {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct || t.Name() == "" {
		return pilottypes.ToolDefinition{}, fmt.Errorf("tool %q: parameters must be a named struct", name)
	}

	schema := reflector.ReflectFromType(t)

	def := pilottypes.ToolDefinition{
		Name:        name,
		Description: description,
		Required:    append([]string{}, schema.Required...),
		Properties:  []pilottypes.Property{},
	}
	if schema.Properties != nil {
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			prop := pilottypes.Property{
				Name:        pair.Key,
				Type:        pair.Value.Type,
				Description: pair.Value.Description,
			}
			for _, e := range pair.Value.Enum {
				prop.Enum = append(prop.Enum, fmt.Sprint(e))
			}
			def.Properties = append(def.Properties, prop)
		}
	}

	if err := def.Validate(); err != nil {
		return pilottypes.ToolDefinition{}, fmt.Errorf("invalid tool %q: %w", name, err)
	}
	return def, nil
}

// MustDefinitionFromStruct is DefinitionFromStruct for package-level registrations.
func MustDefinitionFromStruct(name, description string, v any) pilottypes.ToolDefinition {
	def, err := DefinitionFromStruct(name, description, v)
	if err != nil {
		panic(err)
	}
	return def
}
