package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot/internal/conversation"
)

// SamplePage is a small markdown page used by page agent and CLI tests.
const SamplePage = `# Go Concurrency

Goroutines are lightweight threads managed by the Go runtime.

## Channels

Channels connect goroutines. A send blocks until a receiver is ready.

## Select

The select statement waits on multiple channel operations.
`

// AssertionHelpers provides common assertion patterns for interactions.
type AssertionHelpers struct {
	t *testing.T
}

// NewAssertionHelpers creates assertion helpers for a test
func NewAssertionHelpers(t *testing.T) *AssertionHelpers {
	return &AssertionHelpers{t: t}
}

// AssertCompleted checks that an interaction finished with the expected answer.
func (h *AssertionHelpers) AssertCompleted(interaction *conversation.Interaction, answer string) {
	require.NotNil(h.t, interaction, "Interaction should not be nil")
	assert.True(h.t, interaction.IsCompleted(), "Interaction should be completed, got %s", interaction.Status)
	assert.Equal(h.t, answer, interaction.OutputMessage.Text(), "Interaction output should match")
}

// AssertStepTypes checks the sequence of step types recorded on an interaction.
func (h *AssertionHelpers) AssertStepTypes(interaction *conversation.Interaction, expected ...conversation.StepType) {
	actual := make([]conversation.StepType, 0, len(interaction.Steps))
	for _, step := range interaction.Steps {
		actual = append(actual, step.Type)
	}
	assert.Equal(h.t, expected, actual, "Step types should match")
}

// FileHelpers provides utilities for working with test files
type FileHelpers struct{}

// NewFileHelpers creates a new file helpers instance
func NewFileHelpers() *FileHelpers {
	return &FileHelpers{}
}

// CreateTempFile creates a temporary file with given content
func (f *FileHelpers) CreateTempFile(t *testing.T, filename, content string) string {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, filename)

	err := os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(t, err, "Should create temp file successfully")

	return filePath
}

// CreateTempDir creates a temporary directory structure
func (f *FileHelpers) CreateTempDir(t *testing.T, files map[string]string) string {
	tmpDir := t.TempDir()

	for filename, content := range files {
		filePath := filepath.Join(tmpDir, filename)

		dir := filepath.Dir(filePath)
		if dir != tmpDir {
			err := os.MkdirAll(dir, 0755)
			require.NoError(t, err, "Should create directory %s", dir)
		}

		err := os.WriteFile(filePath, []byte(content), 0644)
		require.NoError(t, err, "Should create file %s", filename)
	}

	return tmpDir
}
