package tools

import (
	"errors"
	"fmt"
)

// ErrToolNotFound matches every *ToolNotFoundError through errors.Is.
var ErrToolNotFound = errors.New("tool not found")

// ToolNotFoundError is returned when no registered tool carries the requested name.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}

// Is makes errors.Is(err, ErrToolNotFound) hold.
func (e *ToolNotFoundError) Is(target error) bool {
	return target == ErrToolNotFound
}

// RequiredParameterMissedError is returned when a required argument is absent.
type RequiredParameterMissedError struct {
	Tool      string
	Parameter string
}

func (e *RequiredParameterMissedError) Error() string {
	return fmt.Sprintf("tool %q: required parameter %q is missing", e.Tool, e.Parameter)
}

// InvalidToolParameterError is returned when an argument is not declared by the tool.
type InvalidToolParameterError struct {
	Tool      string
	Parameter string
}

func (e *InvalidToolParameterError) Error() string {
	return fmt.Sprintf("tool %q: parameter %q is not declared", e.Tool, e.Parameter)
}

// ToolParameterTypeError is returned when an argument does not match its declared type.
type ToolParameterTypeError struct {
	Tool      string
	Parameter string
	Expected  string
	Value     any
}

func (e *ToolParameterTypeError) Error() string {
	return fmt.Sprintf("tool %q: parameter %q must be %s, got %T", e.Tool, e.Parameter, e.Expected, e.Value)
}
