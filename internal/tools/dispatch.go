package tools

import (
	"encoding/json"
	"sort"
	"strconv"

	"pagepilot/pkg/pilottypes"
)

// MessagesParameter is accepted by every tool without being declared.
// Agents use it to pass the conversation context alongside model-chosen arguments.
const MessagesParameter = "messages"

// ValidateArguments checks args against a definition: required parameters are present,
// no undeclared parameter is passed and string parameters hold strings.
// Other declared types are passed through unchecked.
func ValidateArguments(definition pilottypes.ToolDefinition, args map[string]any) error {
	for _, name := range definition.Required {
		if v, ok := args[name]; !ok || v == nil {
			return &RequiredParameterMissedError{Tool: definition.Name, Parameter: name}
		}
	}

	// sorted so the reported parameter does not depend on map order
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		if name == MessagesParameter {
			continue
		}
		prop, ok := definition.Property(name)
		if !ok {
			return &InvalidToolParameterError{Tool: definition.Name, Parameter: name}
		}
		value := args[name]
		if value == nil {
			continue
		}
		if prop.Type == pilottypes.TypeString {
			if _, ok := value.(string); !ok {
				return &ToolParameterTypeError{Tool: definition.Name, Parameter: name, Expected: prop.Type, Value: value}
			}
		}
	}
	return nil
}

// Positional orders args by the definition's property declaration.
func Positional(definition pilottypes.ToolDefinition, args map[string]any) Args {
	out := make(Args, len(definition.Properties))
	for i, p := range definition.Properties {
		out[i] = args[p.Name]
	}
	return out
}

// Args are tool arguments in declared order. Absent optional parameters are nil.
type Args []any

// Present reports whether argument i was supplied.
func (a Args) Present(i int) bool {
	return i >= 0 && i < len(a) && a[i] != nil
}

// String returns argument i as a string, or "" when absent.
func (a Args) String(i int) string {
	if !a.Present(i) {
		return ""
	}
	switch v := a[i].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Float returns argument i as a float64, or 0 when absent or not numeric.
func (a Args) Float(i int) float64 {
	if !a.Present(i) {
		return 0
	}
	switch v := a[i].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// Int returns argument i truncated to an int.
func (a Args) Int(i int) int {
	return int(a.Float(i))
}

// Bool returns argument i as a bool, or false when absent.
func (a Args) Bool(i int) bool {
	if !a.Present(i) {
		return false
	}
	switch v := a[i].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}
