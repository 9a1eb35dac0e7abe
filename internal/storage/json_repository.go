package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pagepilot/internal/conversation"
	"pagepilot/internal/logger"
)

// jsonRecord is the on-disk layout of one conversation file.
type jsonRecord struct {
	Summary      Summary                    `json:"summary"`
	Conversation *conversation.Conversation `json:"conversation"`
}

// JSONRepository stores each conversation as <id>.json in a directory.
type JSONRepository struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewJSONRepository creates the directory if needed and returns a repository over it.
func NewJSONRepository(dir string) (*JSONRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &JSONRepository{dir: dir, now: time.Now}, nil
}

// Save writes the conversation, replacing an earlier version.
func (r *JSONRepository) Save(_ context.Context, conv *conversation.Conversation) (string, error) {
	if err := validID(conv.ID); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(jsonRecord{
		Summary:      summarize(conv, r.now().UTC()),
		Conversation: conv,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode conversation: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, conv.ID+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to save conversation: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to save conversation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to save conversation: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path(conv.ID)); err != nil {
		return "", fmt.Errorf("failed to save conversation: %w", err)
	}

	logger.Debug("Conversation saved", "driver", DriverJSON, "id", conv.ID)
	return conv.ID, nil
}

// Load reads a conversation by id.
func (r *JSONRepository) Load(_ context.Context, id string) (*conversation.Conversation, error) {
	record, err := r.read(id)
	if err != nil {
		return nil, err
	}
	return record.Conversation, nil
}

// List returns the stored conversations, most recently updated first.
func (r *JSONRepository) List(_ context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		record, err := r.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			logger.Warn("Skipping unreadable conversation", "file", entry.Name(), "error", err)
			continue
		}
		summaries = append(summaries, record.Summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Delete removes a conversation file.
func (r *JSONRepository) Delete(_ context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	err := os.Remove(r.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// Close implements Repository.
func (r *JSONRepository) Close() error {
	return nil
}

func (r *JSONRepository) read(id string) (*jsonRecord, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}

	var record jsonRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	if record.Conversation == nil {
		return nil, fmt.Errorf("failed to decode conversation %s: empty record", id)
	}
	return &record, nil
}

func (r *JSONRepository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}
