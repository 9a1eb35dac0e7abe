// Package storage persists conversations so that past sessions can be listed and resumed.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pagepilot/internal/conversation"
)

// Supported drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

const titleLength = 60

// ErrNotFound is returned when a conversation id is unknown to a repository.
var ErrNotFound = errors.New("conversation not found")

// Summary describes a stored conversation without loading it.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Interactions int       `json:"interactions"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Repository stores whole conversations keyed by their id.
type Repository interface {
	Save(ctx context.Context, conv *conversation.Conversation) (string, error)
	Load(ctx context.Context, id string) (*conversation.Conversation, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open creates the repository for a driver. path is a directory for json and a database file for sqlite.
func Open(driver, path string) (Repository, error) {
	switch driver {
	case DriverJSON:
		return NewJSONRepository(path)
	case DriverSQLite:
		return NewSQLiteRepository(path)
	default:
		return nil, fmt.Errorf("unsupported store driver '%s'", driver)
	}
}

// Title returns a one line title for a conversation: its first user message, shortened.
func Title(conv *conversation.Conversation) string {
	for _, interaction := range conv.GetInteractions() {
		text := strings.Join(strings.Fields(interaction.InputMessage.Text()), " ")
		if text == "" {
			continue
		}
		if len([]rune(text)) > titleLength {
			return string([]rune(text)[:titleLength]) + "..."
		}
		return text
	}
	return "(empty)"
}

func summarize(conv *conversation.Conversation, updated time.Time) Summary {
	return Summary{
		ID:           conv.ID,
		Title:        Title(conv),
		Interactions: len(conv.GetInteractions()),
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    updated,
	}
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return fmt.Errorf("invalid conversation id %q", id)
	}
	return nil
}
