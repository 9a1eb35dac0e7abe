package model

import (
	"errors"
	"fmt"
)

// ErrTimeout is reported when a provider does not start answering within the configured timeout.
var ErrTimeout = errors.New("model request timed out")

// ErrNotConfigured is returned by backends created without credentials.
var ErrNotConfigured = errors.New("model backend not configured")

// ProviderError wraps a failure of a provider call with the provider and model involved.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s request failed (model %s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
