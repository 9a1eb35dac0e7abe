package pilottypes

// Environment is a snapshot of external context captured once per turn.
// SystemPrompt is a builder so that agents can render the prompt lazily from the snapshot.
type Environment struct {
	SystemPrompt func() string `json:"-"`
	Content      string        `json:"content,omitempty"`
	Screenshot   string        `json:"screenshot,omitempty"`
}

// Prompt returns the rendered system prompt, or an empty string when no builder is set.
func (e Environment) Prompt() string {
	if e.SystemPrompt == nil {
		return ""
	}
	return e.SystemPrompt()
}

// StaticEnvironment returns an environment whose system prompt is a fixed string.
func StaticEnvironment(systemPrompt string) Environment {
	return Environment{SystemPrompt: func() string { return systemPrompt }}
}
